package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odwatch/internal/dataset"
	"odwatch/internal/report"
	"odwatch/internal/spec"
	"odwatch/internal/telemetry"
	"odwatch/internal/transform"
	"odwatch/sink"
	"odwatch/source"
)

const statusCSV = "id,status\n3,open\n1,open\n2,closed\n"

type captureSink struct {
	pushed []sink.Batch
	closed bool
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(_ context.Context, b sink.Batch) error {
	c.pushed = append(c.pushed, b)
	return nil
}
func (c *captureSink) Close() error { c.closed = true; return nil }

var lastCapture *captureSink

func init() {
	sink.Register("capture", func() sink.Adapter {
		lastCapture = &captureSink{}
		return lastCapture
	})
}

type fakeReporter struct {
	calls []report.Issue
	diffs []*transform.DiffResult
}

func (f *fakeReporter) Report(_ context.Context, d *transform.DiffResult, is report.Issue) (bool, error) {
	f.calls = append(f.calls, is)
	f.diffs = append(f.diffs, d)
	return d.HasDiff, nil
}

type fixture struct {
	dataDir string
	url     string
	metrics *telemetry.Metrics
	rep     *fakeReporter
	opts    Options
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	f := &fixture{dataDir: t.TempDir(), url: srv.URL, metrics: telemetry.New(), rep: &fakeReporter{}}
	f.opts = Options{
		Source:   source.NewLoader(f.dataDir, srv.Client()),
		DataDir:  f.dataDir,
		Metrics:  f.metrics,
		Reporter: f.rep,
		RunID:    "run-1",
	}
	return f
}

func (f *fixture) file(groups ...[]spec.Step) spec.File {
	cfg := spec.File{ProjectName: "proj", Source: spec.Source{URL: f.url, Format: "csv"}}
	for _, g := range groups {
		cfg.Transformations = append(cfg.Transformations, spec.Transformation{Steps: g})
	}
	return cfg
}

func step(fn string, args map[string]any) spec.Step {
	return spec.Step{Function: fn, Args: args}
}

func TestBuild_UnknownTransformProducesNothing(t *testing.T) {
	f := newFixture(t, statusCSV)
	cfg := f.file([]spec.Step{
		step("keep_columns", map[string]any{"columns": []any{"id"}, "export_name": "out.csv"}),
		step("nonexistent_fn", nil),
	})

	r, err := Build(cfg, f.opts)
	require.ErrorIs(t, err, ErrUnknownTransform)
	assert.Nil(t, r)

	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_ArgumentErrors(t *testing.T) {
	f := newFixture(t, statusCSV)
	cases := map[string][]spec.Step{
		"unknown arg":      {step("filter_by_column_values", map[string]any{"column": "status", "value_list": []any{"open"}, "colour": "red"})},
		"missing arg":      {step("keep_columns", map[string]any{"columns": []any{"id"}})},
		"diff both sides":  {{ID: "a", Function: "keep_columns", Args: map[string]any{"columns": []any{"id"}, "export_name": "x.csv"}}, step("diff_datasets", map[string]any{"dataset2": "a", "snapshot": "old.csv"})},
		"diff no side":     {step("diff_datasets", map[string]any{})},
		"bad dataset ref":  {step("keep_columns", map[string]any{"dataset": 3, "columns": []any{"id"}, "export_name": "x.csv"})},
		"bad geometry arg": {step("filter_by_geometry", map[string]any{"longitude_column": "lon"})},
	}
	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(f.file(steps), f.opts)
			require.ErrorIs(t, err, ErrInvalidArgs)
		})
	}
}

func TestBuild_ReferenceErrors(t *testing.T) {
	f := newFixture(t, statusCSV)

	_, err := Build(f.file([]spec.Step{
		step("filter_by_column_values", map[string]any{"dataset": "later", "column": "status", "value_list": []any{"open"}}),
		{ID: "later", Function: "keep_columns", Args: map[string]any{"columns": []any{"id"}, "export_name": "x.csv"}},
	}), f.opts)
	require.ErrorIs(t, err, ErrMissingDataset)

	_, err = Build(f.file([]spec.Step{
		{ID: "a", Function: "keep_columns", Args: map[string]any{"columns": []any{"id"}, "export_name": "x.csv"}},
		{ID: "a", Function: "keep_columns", Args: map[string]any{"columns": []any{"id"}, "export_name": "y.csv"}},
	}), f.opts)
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestRun_FilterThenExport(t *testing.T) {
	f := newFixture(t, statusCSV)
	r, err := Build(f.file([]spec.Step{
		step("filter_by_column_values", map[string]any{"column": "status", "value_list": []any{"open"}}),
		step("keep_columns", map[string]any{"columns": []any{"id", "missing"}, "export_name": "open.csv"}),
	}), f.opts)
	require.NoError(t, err)
	require.Len(t, r.Steps(), 2)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	want := dataset.MustNew([]string{"id"},
		[]dataset.Value{dataset.Number(1)},
		[]dataset.Value{dataset.Number(3)},
	)
	assert.True(t, want.Equal(res.Final))
	assert.Nil(t, res.Diff)

	raw, err := os.ReadFile(filepath.Join(f.dataDir, "open.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n3\n", string(raw))
	assert.NoFileExists(t, filepath.Join(f.dataDir, "all.proj.csv"))

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SourceRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StepRuns.WithLabelValues("keep_columns", "anomaly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StepRuns.WithLabelValues("filter_by_column_values", "ok")))
	assert.Empty(t, f.rep.calls)
}

func TestRun_GroupsShareAccumulatorAndUnknownColumnIsAbsorbed(t *testing.T) {
	f := newFixture(t, statusCSV)
	r, err := Build(f.file(
		[]spec.Step{step("inverted_filter_by_column_values", map[string]any{"column": "status", "value_list": []any{"closed"}})},
		[]spec.Step{step("filter_by_column_values", map[string]any{"column": "nope", "value_list": []any{"x"}})},
	), f.opts)
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Final.Len())
}

func TestRun_DiffAgainstEarlierStepReportsAndPublishes(t *testing.T) {
	f := newFixture(t, statusCSV)
	cfg := f.file(
		[]spec.Step{
			{ID: "all", Function: "keep_columns", Args: map[string]any{"columns": []any{"id", "status"}, "export_name": "all.csv"}},
			{ID: "open", Function: "filter_by_column_values", Args: map[string]any{"column": "status", "value_list": []any{"open"}}},
		},
		[]spec.Step{
			step("diff_datasets", map[string]any{"dataset1": "open", "dataset2": "all"}),
		},
	)
	cfg.Report = spec.Report{
		Issue: &spec.Issue{Owner: "acme", Repo: "data", Labels: []string{"l"}},
		Sinks: []spec.SinkSpec{{Kind: "capture"}},
	}
	r, err := Build(cfg, f.opts)
	require.NoError(t, err)
	capture := lastCapture

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.NotNil(t, res.Diff)
	assert.True(t, res.Diff.HasDiff)
	want := dataset.MustNew([]string{"id", "status"}, []dataset.Value{dataset.Number(2), dataset.String("closed")})
	assert.True(t, want.Equal(res.Diff.Rows))
	assert.Same(t, res.Diff.Rows, res.Final)
	assert.Contains(t, res.Outputs, "open")

	require.Len(t, f.rep.calls, 1)
	assert.Equal(t, report.Issue{Project: "proj", Owner: "acme", Repo: "data", Labels: []string{"l"}}, f.rep.calls[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Issues.WithLabelValues("created")))

	require.Len(t, capture.pushed, 1)
	assert.Equal(t, "run-1", capture.pushed[0].RunID)
	assert.True(t, capture.closed)
}

func TestRun_DiffAgainstSnapshot(t *testing.T) {
	f := newFixture(t, statusCSV)
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "previous.csv"), []byte("id,status\n1,open\n2,closed\n"), 0o644))

	r, err := Build(f.file([]spec.Step{
		step("diff_datasets", map[string]any{"snapshot": "previous.csv"}),
	}), f.opts)
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	want := dataset.MustNew([]string{"id", "status"}, []dataset.Value{dataset.Number(3), dataset.String("open")})
	assert.True(t, want.Equal(res.Diff.Rows))
}

func TestRun_MissingDatasetIsFatalAndKeepsStagedFile(t *testing.T) {
	f := newFixture(t, statusCSV)
	r, err := Build(f.file([]spec.Step{
		step("diff_datasets", map[string]any{"snapshot": "does-not-exist.csv"}),
		step("filter_by_column_values", map[string]any{"column": "status", "value_list": []any{"open"}}),
	}), f.opts)
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrMissingDataset)
	assert.Nil(t, res)
	assert.FileExists(t, filepath.Join(f.dataDir, "all.proj.csv"))
}

func TestRun_SourceFailureContinuesOnEmptyDataset(t *testing.T) {
	f := newFixture(t, statusCSV)
	cfg := f.file([]spec.Step{
		step("filter_by_column_values", map[string]any{"column": "status", "value_list": []any{"open"}}),
	})
	cfg.Source.URL = "not-a-url"

	r, err := Build(cfg, f.opts)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Final.Len())
}

func TestRun_NoDiffSkipsSinks(t *testing.T) {
	f := newFixture(t, statusCSV)
	cfg := f.file([]spec.Step{
		{ID: "a", Function: "keep_columns", Args: map[string]any{"columns": []any{"id"}, "export_name": "a.csv"}},
		step("diff_datasets", map[string]any{"dataset2": "a"}),
	})
	cfg.Report.Sinks = []spec.SinkSpec{{Kind: "capture"}}
	r, err := Build(cfg, f.opts)
	require.NoError(t, err)
	capture := lastCapture

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Diff.HasDiff)
	assert.Empty(t, capture.pushed)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.DiffRows))
}

func TestCompile_FromFile(t *testing.T) {
	f := newFixture(t, statusCSV)
	path := filepath.Join(t.TempDir(), "pipeline.json")
	body := `{"project_name": "p", "source": {"url": "` + f.url + `"},
 "transformations": [{"steps": [{"function": "filter_by_column_values", "args": {"column": "id", "value_list": [1, 2]}}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	r, err := Compile(path, f.opts)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Final.Len())
}
