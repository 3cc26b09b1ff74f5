package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odwatch/internal/dataset"
	"odwatch/internal/transform"
)

func diffOf(rows ...[]dataset.Value) *transform.DiffResult {
	ds := dataset.MustNew([]string{"id", "name"}, rows...)
	return &transform.DiffResult{Rows: ds, HasDiff: ds.Len() > 0}
}

func TestReport_NoDiffIsNoop(t *testing.T) {
	r, err := New("tok", "http://127.0.0.1:1/", nil)
	require.NoError(t, err)

	created, err := r.Report(context.Background(), diffOf(), Issue{Project: "p"})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = r.Report(context.Background(), nil, Issue{Project: "p"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestReport_CreatesIssue(t *testing.T) {
	var got map[string]any
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 7, "html_url": "https://github.example/acme/data/issues/7"}`))
	}))
	defer srv.Close()

	r, err := New("tok", srv.URL, srv.Client())
	require.NoError(t, err)

	created, err := r.Report(context.Background(),
		diffOf([]dataset.Value{dataset.Number(2), dataset.String("y|z")}),
		Issue{Project: "bornes", Owner: "acme", Repo: "data", Labels: []string{"open-data"}, Assignees: []string{"octo"}})
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "/repos/acme/data/issues", path)
	assert.Equal(t, "[bornes] New entries in open data", got["title"])
	assert.Equal(t, []any{"open-data"}, got["labels"])
	assert.Equal(t, []any{"octo"}, got["assignees"])
	assert.Equal(t, "Data", got["type"])
	assert.Contains(t, got["body"], `| 2 | y\|z |`)
}

func TestReport_FailureIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "Validation Failed"}`))
	}))
	defer srv.Close()

	r, err := New("tok", srv.URL, srv.Client())
	require.NoError(t, err)
	created, err := r.Report(context.Background(),
		diffOf([]dataset.Value{dataset.Number(1), dataset.String("x")}),
		Issue{Project: "p", Owner: "o", Repo: "r"})
	require.Error(t, err)
	assert.False(t, created)
	assert.Contains(t, err.Error(), "Validation Failed")
}

func TestMarkdown(t *testing.T) {
	assert.Equal(t, NoContent, Markdown(nil))

	md := Markdown(dataset.MustNew([]string{"a", "b"},
		[]dataset.Value{dataset.Number(1), dataset.Null()},
	))
	assert.Equal(t, "1 rows differ.\n\n| a | b |\n| --- | --- |\n| 1 |  |\n", md)
}

func TestMarkdown_Truncates(t *testing.T) {
	long := strings.Repeat("x", 1000)
	rows := make([][]dataset.Value, 100)
	for i := range rows {
		rows[i] = []dataset.Value{dataset.Number(float64(i)), dataset.String(long)}
	}
	ds, err := dataset.New([]string{"id", "v"}, rows)
	require.NoError(t, err)

	md := Markdown(ds)
	assert.LessOrEqual(t, len(md), maxBody+100)
	assert.Contains(t, md, "more rows not shown")
}
