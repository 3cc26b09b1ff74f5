// Package report files a tracking issue describing a dataset diff.
package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v75/github"

	"odwatch/internal/logging"
	"odwatch/internal/transform"
)

const NoContent = "No Content"

// IssueType is the GitHub issue type every diff issue is filed under.
const IssueType = "Data"

type Issue struct {
	Project   string
	Owner     string
	Repo      string
	Labels    []string
	Assignees []string
}

type Reporter struct {
	gh *github.Client
}

// New builds a reporter authenticated with token. apiURL replaces the
// api.github.com base, e.g. for an Enterprise instance.
func New(token, apiURL string, hc *http.Client) (*Reporter, error) {
	gh := github.NewClient(hc)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		base, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("report: api url: %w", err)
		}
		gh.BaseURL = base
	}
	return &Reporter{gh: gh}, nil
}

func Title(project string) string {
	return fmt.Sprintf("[%s] New entries in open data", project)
}

// Report opens an issue when diff carries a difference. It reports whether
// an issue was created; failures are logged and returned.
func (r *Reporter) Report(ctx context.Context, diff *transform.DiffResult, is Issue) (bool, error) {
	log := logging.L()
	if diff == nil || !diff.HasDiff {
		log.Info("no difference, no issue", "project", is.Project)
		return false, nil
	}

	req := &github.IssueRequest{
		Title: github.Ptr(Title(is.Project)),
		Body:  github.Ptr(Markdown(diff.Rows)),
		Type:  github.Ptr(IssueType),
	}
	if len(is.Labels) > 0 {
		req.Labels = &is.Labels
	}
	if len(is.Assignees) > 0 {
		req.Assignees = &is.Assignees
	}
	created, resp, err := r.gh.Issues.Create(ctx, is.Owner, is.Repo, req)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			log.Error("issue creation failed", "status", ghErr.Response.StatusCode, "message", ghErr.Message, "errors", ghErr.Errors)
		} else {
			log.Error("issue creation failed", "err", err)
		}
		return false, fmt.Errorf("report: create issue: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		log.Error("issue creation not acknowledged", "status", resp.StatusCode)
		return false, fmt.Errorf("report: create issue: status %d", resp.StatusCode)
	}
	log.Info("issue created", "url", created.GetHTMLURL(), "number", created.GetNumber())
	return true, nil
}
