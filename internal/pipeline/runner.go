package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"odwatch/internal/dataset"
	"odwatch/internal/logging"
	"odwatch/internal/report"
	"odwatch/internal/spec"
	"odwatch/internal/telemetry"
	"odwatch/internal/transform"
	"odwatch/sink"
	"odwatch/source"
)

// Source is the part of source.Loader the runner needs.
type Source interface {
	Load(ctx context.Context, req source.Request) (*dataset.Dataset, error)
	Delete(project, format string)
}

type Reporter interface {
	Report(ctx context.Context, diff *transform.DiffResult, is report.Issue) (bool, error)
}

type Options struct {
	Source  Source
	DataDir string
	Metrics *telemetry.Metrics
	// Reporter is only used when the pipeline file has a report.issue block.
	Reporter Reporter
	RunID    string
}

type Step struct {
	Group    int
	Index    int
	ID       string
	Function Kind
	op       operation
}

type namedSink struct {
	name string
	sink.Adapter
}

type Runner struct {
	request  source.Request
	issue    *spec.Issue
	src      Source
	env      env
	metrics  *telemetry.Metrics
	reporter Reporter
	runID    string

	steps []Step
	sinks []namedSink
}

// Result is what a completed run leaves behind.
type Result struct {
	Final   *dataset.Dataset
	Diff    *transform.DiffResult
	Outputs map[string]*dataset.Dataset
}

func NewRunner(cfg spec.File, opts Options) *Runner {
	m := opts.Metrics
	if m == nil {
		m = telemetry.New()
	}
	return &Runner{
		request:  sourceRequest(cfg),
		issue:    cfg.Report.Issue,
		src:      opts.Source,
		env:      env{dataDir: opts.DataDir},
		metrics:  m,
		reporter: opts.Reporter,
		runID:    opts.RunID,
	}
}

func (r *Runner) AddStep(s Step)                      { r.steps = append(r.steps, s) }
func (r *Runner) AddSink(name string, a sink.Adapter) { r.sinks = append(r.sinks, namedSink{name, a}) }
func (r *Runner) Steps() []Step                       { return append([]Step(nil), r.steps...) }

// Run loads the source once, threads it through every step of every group
// and deletes the staged source file. Only ErrMissingDataset (or a
// cancelled ctx) stops a run early, in which case the staged file stays.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.src == nil {
		return nil, errors.New("runner: no source configured")
	}
	log := logging.L()

	ds, err := r.src.Load(ctx, r.request)
	if err != nil {
		log.Error("source unavailable, continuing with an empty dataset", "url", r.request.URL, "err", err)
	}
	if ds == nil {
		ds = dataset.Empty()
	}
	r.metrics.SourceRows.Set(float64(ds.Len()))
	log.Info("source loaded", "rows", ds.Len(), "columns", len(ds.Columns()))

	st := state{current: ds, outputs: map[string]*dataset.Dataset{}}
	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := r.exec(step, st)
		if err != nil {
			log.Error("run aborted", "group", step.Group, "step", step.Index, "function", step.Function, "err", err)
			return nil, err
		}
		st = next
	}

	r.src.Delete(r.request.Project, r.request.Format)

	r.report(ctx, st.diff)
	return &Result{Final: st.current, Diff: st.diff, Outputs: st.outputs}, nil
}

func (r *Runner) exec(step Step, st state) (state, error) {
	start := time.Now()
	o, err := step.op.apply(r.env, st)
	if err != nil {
		return st, err
	}
	r.metrics.ObserveStep(string(step.Function), o.anomaly != nil, time.Since(start))

	log := logging.L().With("group", step.Group, "step", step.Index, "function", step.Function)
	if o.anomaly != nil {
		lvl := slog.LevelError
		if o.warn {
			lvl = slog.LevelWarn
		}
		log.Log(context.Background(), lvl, "step anomaly, keeping its output", "err", o.anomaly)
	}
	switch {
	case o.diff != nil && o.diff.HasDiff:
		log.Info("datasets differ", "rows", o.diff.Rows.Len())
	case o.diff != nil:
		log.Info("no difference between datasets")
	case o.out != nil:
		log.Info("step done", "rows", o.out.Len())
	}
	return st.advance(step.ID, o), nil
}

// report hands the last diff to the issue reporter and the sinks. Nothing
// here can fail the run.
func (r *Runner) report(ctx context.Context, diff *transform.DiffResult) {
	if diff == nil {
		return
	}
	r.metrics.DiffRows.Set(float64(diff.Rows.Len()))

	if r.issue != nil && r.reporter != nil {
		created, err := r.reporter.Report(ctx, diff, report.Issue{
			Project:   r.request.Project,
			Owner:     r.issue.Owner,
			Repo:      r.issue.Repo,
			Labels:    r.issue.Labels,
			Assignees: r.issue.Assignees,
		})
		outcome := "skipped"
		switch {
		case err != nil:
			outcome = "failed"
		case created:
			outcome = "created"
		}
		r.metrics.Issues.WithLabelValues(outcome).Inc()
	}

	if !diff.HasDiff {
		return
	}
	batch := sink.Batch{Project: r.request.Project, RunID: r.runID, Rows: diff.Rows}
	for _, s := range r.sinks {
		outcome := "ok"
		if err := s.Push(ctx, batch); err != nil {
			outcome = "failed"
			logging.L().Error("sink push failed", "sink", s.name, "err", err)
		}
		r.metrics.SinkPushes.WithLabelValues(s.name, outcome).Inc()
	}
}

func (r *Runner) Close() error {
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
