package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"odwatch/internal/config"
	"odwatch/internal/logging"
	"odwatch/internal/pipeline"
	"odwatch/internal/report"
	"odwatch/internal/telemetry"
	"odwatch/source"
)

type Config struct {
	Settings     config.Settings
	PipelinePath string
}

// Bootstrap wires one pipeline run: logging, the HTTP source, the issue
// reporter, metrics and the compiled steps. Nothing is downloaded yet.
func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	s := cfg.Settings
	logging.Configure(logging.Options{Level: s.LogLevel, JSON: s.LogJSON})

	// 1. pipeline file
	file, err := config.LoadPipelineSpec(cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	runID := uuid.NewString()
	logging.Set(logging.L().With("run_id", runID, "project", file.ProjectName))
	log := logging.L()

	// 2. collaborators
	hc := &http.Client{Timeout: s.HTTPTimeout}
	var rep pipeline.Reporter
	if file.Report.Issue != nil {
		if s.GitHubToken == "" {
			log.Warn("report.issue is set but ODWATCH_GITHUB_TOKEN is empty, issue creation will likely fail")
		}
		r, err := report.New(s.GitHubToken, s.GitHubAPIURL, hc)
		if err != nil {
			return nil, err
		}
		rep = r
	}

	// 3. metrics
	metrics := telemetry.New()
	srv, err := metrics.Expose(s.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// 4. steps
	runner, err := pipeline.Build(file, pipeline.Options{
		Source:   source.NewLoader(s.DataDir, hc),
		DataDir:  s.DataDir,
		Metrics:  metrics,
		Reporter: rep,
		RunID:    runID,
	})
	if err != nil {
		if srv != nil {
			_ = srv.Shutdown(ctx)
		}
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("pipeline compiled", "steps", len(runner.Steps()), "data_dir", s.DataDir)

	return &Engine{
		runner:   runner,
		metrics:  metrics,
		server:   srv,
		textfile: s.MetricsTextfile,
		runID:    runID,
	}, nil
}
