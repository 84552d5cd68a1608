package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hringest/internal/config"
	"hringest/internal/errs"
	"hringest/internal/ingest"
	"hringest/internal/storage"
	_ "hringest/internal/storage/sqlite"
)

func newServer(tb testing.TB, opts Options) http.Handler {
	tb.Helper()
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(tb, err)
	tb.Cleanup(repo.Close)
	require.NoError(tb, storage.EnsureSchema(ctx, repo))

	svc, err := ingest.NewService(repo, ingest.Config{
		HeaderMap: config.HeaderMap{"departments": {"name": {"Department Name"}}},
		Settings:  config.DefaultSettings(),
	}, ingest.Options{})
	require.NoError(tb, err)
	return New(svc, opts).Handler()
}

func multipartBody(tb testing.TB, fields map[string]string, file string) (*bytes.Buffer, string) {
	tb.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(tb, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "upload.csv")
		require.NoError(tb, err)
		_, err = fw.Write([]byte(file))
		require.NoError(tb, err)
	}
	require.NoError(tb, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(tb testing.TB, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	tb.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postForm(tb testing.TB, h http.Handler, path string, fields map[string]string, file string) *httptest.ResponseRecorder {
	tb.Helper()
	body, ct := multipartBody(tb, fields, file)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	return do(tb, h, req)
}

func postJSON(tb testing.TB, h http.Handler, path, body string) *httptest.ResponseRecorder {
	tb.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(tb, h, req)
}

func decode[T any](tb testing.TB, rr *httptest.ResponseRecorder) T {
	tb.Helper()
	var v T
	require.NoError(tb, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rr := do(t, newServer(t, Options{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestIngestCSV_Upload(t *testing.T) {
	t.Parallel()

	h := newServer(t, Options{})
	rr := postForm(t, h, "/ingest/csv", map[string]string{"table": "departments"}, "id,Department Name\n1,Engineering\n2,Sales\n")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decode[map[string]any](t, rr)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "departments", got["table"])
	assert.EqualValues(t, 2, got["inserted"])
	assert.EqualValues(t, 0, got["skipped"])
	assert.Len(t, got["fingerprint"], 16)
}

func TestIngestCSV_SourcePathAndSkip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,title\n1,Engineer\nx,Broken\n"), 0o600))

	h := newServer(t, Options{})
	rr := postForm(t, h, "/ingest/csv", map[string]string{
		"table":             "jobs",
		"source_path":       path,
		"skip_invalid_rows": "true",
		"mode":              "upsert",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[map[string]any](t, rr)
	assert.EqualValues(t, 1, got["inserted"])
	assert.EqualValues(t, 1, got["skipped"])
}

func TestIngestCSV_Errors(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	h := newServer(t, Options{})
	tests := []struct {
		name     string
		fields   map[string]string
		file     string
		wantCode int
		wantKind string
	}{
		{"no file or source", map[string]string{"table": "jobs"}, "", http.StatusBadRequest, errs.KindConfiguration},
		{"unknown table", map[string]string{"table": "payroll"}, "id\n1\n", http.StatusBadRequest, errs.KindConfiguration},
		{"bad mode", map[string]string{"table": "jobs", "mode": "merge"}, "id,title\n1,a\n", http.StatusBadRequest, errs.KindConfiguration},
		{"bad skip flag", map[string]string{"table": "jobs", "skip_invalid_rows": "maybe"}, "id,title\n1,a\n", http.StatusBadRequest, errs.KindConfiguration},
		{"invalid row", map[string]string{"table": "jobs"}, "id,title\nx,a\n", http.StatusBadRequest, errs.KindRowValidation},
		{"empty upload", map[string]string{"table": "jobs"}, "\n", http.StatusBadRequest, errs.KindHeaderMismatch},
		{"upstream failure", map[string]string{"table": "jobs", "source_path": upstream.URL + "/jobs.csv"}, "", http.StatusBadGateway, errs.KindSourceFetch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(t, h, "/ingest/csv", tt.fields, tt.file)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantKind, decode[errorBody](t, rr).Kind)
		})
	}
}

func TestEmployeesUpload(t *testing.T) {
	t.Parallel()

	h := newServer(t, Options{})
	require.Equal(t, http.StatusOK, postJSON(t, h, "/departments/batch", `[{"id":1,"name":"Engineering"}]`).Code)
	require.Equal(t, http.StatusOK, postJSON(t, h, "/jobs/batch", `[{"id":1,"title":"Engineer"}]`).Code)

	rr := postForm(t, h, "/employees/upload", nil, "id,name,hire_date,department_id,job_id\n1,Ada,2021-01-01T00:00:00Z,1,1\n")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, rr)["inserted"])
}

func TestBatch(t *testing.T) {
	t.Parallel()

	h := newServer(t, Options{})

	rr := postJSON(t, h, "/departments/batch", `[{"id":1,"name":"Engineering"},{"id":2,"name":"Sales"}]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"inserted":2}`, rr.Body.String())

	rr = postJSON(t, h, "/jobs/batch", `[{"id":1,"title":"Engineer"}]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = postJSON(t, h, "/employees/batch", `[{"id":1,"name":" Ada ","department_id":1,"job_id":1,"hire_date":"2021-02-01"}]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"empty batch", "/jobs/batch", `[]`, http.StatusBadRequest},
		{"not json", "/jobs/batch", `{`, http.StatusBadRequest},
		{"unknown field", "/jobs/batch", `[{"id":2,"title":"x","salary":1}]`, http.StatusBadRequest},
		{"missing id", "/departments/batch", `[{"name":"Ops"}]`, http.StatusBadRequest},
		{"name too long", "/departments/batch", `[{"id":9,"name":"` + strings.Repeat("x", 121) + `"}]`, http.StatusBadRequest},
		{"future hire date", "/employees/batch", `[{"id":2,"name":"Bo","department_id":1,"job_id":1,"hire_date":"2999-01-01"}]`, http.StatusBadRequest},
		{"duplicate id", "/departments/batch", `[{"id":1,"name":"Platform"}]`, http.StatusConflict},
		{"unknown department", "/employees/batch", `[{"id":3,"name":"Cy","department_id":42,"job_id":1,"hire_date":"2021-02-01"}]`, http.StatusConflict},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestReports(t *testing.T) {
	t.Parallel()

	h := newServer(t, Options{})
	require.Equal(t, http.StatusOK, postJSON(t, h, "/departments/batch", `[{"id":1,"name":"Engineering"},{"id":2,"name":"Sales"}]`).Code)
	require.Equal(t, http.StatusOK, postJSON(t, h, "/jobs/batch", `[{"id":1,"title":"Engineer"}]`).Code)
	require.Equal(t, http.StatusOK, postJSON(t, h, "/employees/batch", `[
		{"id":1,"name":"a","department_id":1,"job_id":1,"hire_date":"2021-01-10T00:00:00Z"},
		{"id":2,"name":"b","department_id":1,"job_id":1,"hire_date":"2021-04-10T00:00:00Z"},
		{"id":3,"name":"c","department_id":2,"job_id":1,"hire_date":"2021-07-10T00:00:00Z"}
	]`).Code)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics/hiring_by_quarter?year=2021", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `[
		{"department":"Engineering","job":"Engineer","Q1":1,"Q2":1,"Q3":0,"Q4":0},
		{"department":"Sales","job":"Engineer","Q1":0,"Q2":0,"Q3":1,"Q4":0}
	]`, rr.Body.String())

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/metrics/departments_above_mean?format=csv", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "id,department,hired\n1,Engineering,2\n", rr.Body.String())
	assert.Equal(t, "1.50", rr.Header().Get("X-Hires-Mean"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "departments_above_mean_2021.csv")

	for _, q := range []string{"year=1800", "year=abc", "format=xml", "include_unknown=perhaps"} {
		rr := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics/hiring_by_quarter?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestPrometheusRoute(t *testing.T) {
	t.Parallel()

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ingest_rows_total 1\n"))
	})
	rr := do(t, newServer(t, Options{Metrics: metricsHandler}), httptest.NewRequest(http.MethodGet, "/prometheus", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ingest_rows_total")

	rr = do(t, newServer(t, Options{}), httptest.NewRequest(http.MethodGet, "/prometheus", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{errs.Configf("bad"), http.StatusBadRequest},
		{&errs.HeaderMismatchError{Kind: "jobs"}, http.StatusBadRequest},
		{&errs.RowValidationError{Row: 2}, http.StatusBadRequest},
		{&errs.DateParseError{Input: "x"}, http.StatusBadRequest},
		{&errs.DecimalParseError{Input: "x"}, http.StatusBadRequest},
		{&errs.SourceFetchError{URL: "http://x"}, http.StatusBadGateway},
		{errs.BulkLoad("jobs", "insert", errors.New("dup")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
