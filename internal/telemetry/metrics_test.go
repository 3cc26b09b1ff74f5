package telemetry

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStep(t *testing.T) {
	m := New()
	m.ObserveStep("keep_columns", false, 10*time.Millisecond)
	m.ObserveStep("keep_columns", true, time.Millisecond)
	m.ObserveStep("keep_columns", true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepRuns.WithLabelValues("keep_columns", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepRuns.WithLabelValues("keep_columns", "anomaly")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SourceRows.Set(3)
	path := filepath.Join(t.TempDir(), "odwatch.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "odwatch_source_rows 3")

	require.NoError(t, m.WriteTextfile(""))
}

func TestExpose_EmptyAddr(t *testing.T) {
	srv, err := New().Expose("")
	require.NoError(t, err)
	assert.Nil(t, srv)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.DiffRows.Set(7)

	srv, err := m.Expose("127.0.0.1:18977")
	if err != nil {
		t.Skipf("port unavailable: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18977/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "odwatch_diff_rows 7"))
}
