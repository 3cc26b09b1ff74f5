package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"odwatch/internal/logging"
	"odwatch/internal/pipeline"
	"odwatch/internal/telemetry"
)

type Engine struct {
	runner   *pipeline.Runner
	metrics  *telemetry.Metrics
	server   *http.Server
	textfile string
	runID    string
}

func (e *Engine) RunID() string { return e.runID }

// Run executes the pipeline once and releases sinks and the metrics
// listener, whatever the outcome.
func (e *Engine) Run(ctx context.Context) (*pipeline.Result, error) {
	log := logging.L()
	start := time.Now()

	res, runErr := e.runner.Run(ctx)
	if runErr == nil {
		log.Info("run finished", "elapsed", time.Since(start))
	}

	errs := []error{runErr}
	if err := e.metrics.WriteTextfile(e.textfile); err != nil {
		log.Warn("metrics textfile not written", "path", e.textfile, "err", err)
	}
	errs = append(errs, e.runner.Close())
	if e.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, e.server.Shutdown(shutdownCtx))
	}
	return res, errors.Join(errs...)
}
