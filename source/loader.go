// Package source fetches the remote open-data file, stages it under the
// data directory and parses it into a sorted dataset.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"odwatch/internal/dataset"
	"odwatch/internal/logging"
)

type Request struct {
	URL       string
	Project   string
	Format    string // csv|xlsx|json, default csv
	Separator rune   // csv only, default ','
}

type Loader struct {
	DataDir string
	Client  *http.Client
}

func NewLoader(dataDir string, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{DataDir: dataDir, Client: client}
}

// StagedPath is where the raw download for project is kept.
func (l *Loader) StagedPath(project, format string) string {
	return filepath.Join(l.DataDir, fmt.Sprintf("all.%s.%s", project, format))
}

// Load downloads, stages and parses the source. On any error the returned
// dataset is empty (never nil) so a caller may carry on with it.
func (l *Loader) Load(ctx context.Context, req Request) (*dataset.Dataset, error) {
	if req.Format == "" {
		req.Format = "csv"
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return dataset.Empty(), fmt.Errorf("%w: %q", ErrInvalidSource, req.URL)
	}
	parse, err := ParserFor(req.Format)
	if err != nil {
		return dataset.Empty(), err
	}

	log := logging.L()
	log.Info("downloading dataset", "url", req.URL)
	body, err := l.fetch(ctx, req.URL)
	if err != nil {
		return dataset.Empty(), err
	}

	path := l.StagedPath(req.Project, req.Format)
	if err := os.MkdirAll(l.DataDir, 0o755); err != nil {
		return dataset.Empty(), fmt.Errorf("source: data dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return dataset.Empty(), fmt.Errorf("source: stage %s: %w", path, err)
	}
	log.Info("dataset staged", "path", path, "bytes", len(body))

	f, err := os.Open(path)
	if err != nil {
		return dataset.Empty(), fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	ds, err := parse(f, ParseOptions{Separator: req.Separator})
	if err != nil {
		return dataset.Empty(), fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return ds.Sorted(), nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	resp, err := l.Client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s: status %d", ErrDownload, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}
	return body, nil
}

// Delete removes the staged file. A missing file is only worth a warning.
func (l *Loader) Delete(project, format string) {
	if format == "" {
		format = "csv"
	}
	path := l.StagedPath(project, format)
	err := os.Remove(path)
	switch {
	case err == nil:
		logging.L().Info("staged source deleted", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		logging.L().Warn("staged source already gone", "path", path)
	default:
		logging.L().Error("delete staged source", "path", path, "err", err)
	}
}

// ReadSnapshot parses a local delimited file, typically an earlier export.
func ReadSnapshot(path string, separator rune) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := parseCSV(f, ParseOptions{Separator: separator})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return ds, nil
}
