package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{{"odwatch"}, {"odwatch", "a.yaml", "b.yaml"}} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(context.Background(), args, &stderr))
		assert.Contains(t, stderr.String(), "usage: odwatch")
	}
}

func TestRun_BadConfigExitsOne(t *testing.T) {
	t.Setenv("ODWATCH_DATA_DIR", t.TempDir())
	t.Setenv("ODWATCH_LOG_LEVEL", "error")
	path := pipelineFile(t, `
source: {url: "http://127.0.0.1:1/x.csv"}
transformations:
  - steps:
      - function: nonexistent_fn
`)
	assert.Equal(t, 1, run(context.Background(), []string{"odwatch", path}, &bytes.Buffer{}))
}

func TestRun_FatalPipelineErrorExitsZero(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ODWATCH_DATA_DIR", dataDir)
	t.Setenv("ODWATCH_LOG_LEVEL", "error")
	// The source is unreachable, the snapshot is missing, so the filter step
	// after the diff has no dataset and the run stops early.
	path := pipelineFile(t, `
source: {url: "http://127.0.0.1:1/x.csv"}
transformations:
  - steps:
      - function: diff_datasets
        args: {snapshot: missing.csv}
      - function: filter_by_column_values
        args: {column: status, value_list: [open]}
`)
	assert.Equal(t, 0, run(context.Background(), []string{"odwatch", path}, &bytes.Buffer{}))
}
