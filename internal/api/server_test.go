package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/catalogd/internal/api/mocks"
	"github.com/mattjoyce/catalogd/internal/auth"
	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/janitor"
	"github.com/mattjoyce/catalogd/internal/log"
	"github.com/mattjoyce/catalogd/internal/scan"
)

const adminKey = "test-key-123"

type testServer struct {
	server  *Server
	handler http.Handler
	scans   *mocks.MockScanService
	janitor *mocks.MockJanitorService
	catalog *mocks.MockCatalogReader
	hub     *events.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	ts := &testServer{
		scans:   mocks.NewMockScanService(ctrl),
		janitor: mocks.NewMockJanitorService(ctrl),
		catalog: mocks.NewMockCatalogReader(ctrl),
		hub:     events.NewHub(10),
	}
	cfg := Config{
		Listen: "localhost:8080",
		APIKey: adminKey,
		Tokens: []auth.TokenConfig{
			{Token: "scans-ro", Scopes: []string{auth.ScopeScansRead}},
			{Token: "janitor-ro", Scopes: []string{auth.ScopeJanitorRead}},
			{Token: "janitor-rw", Scopes: []string{auth.ScopeJanitorWrite}},
		},
		Scanner: config.ScannerConfig{ComputeHashes: true, ReuseHashes: true},
	}
	ts.server = New(cfg, ts.scans, ts.janitor, ts.catalog, ts.hub, log.Discard())
	ts.handler = ts.server.Handler()
	return ts
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleHealthz_NoAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.EXPECT().Count(gomock.Any()).Return(int64(42), nil)
	ts.scans.EXPECT().LiveCount().Return(2)

	rr := ts.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(42), resp.CatalogFiles)
	assert.Equal(t, 2, resp.LiveScans)
}

func TestAuthRejections(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/scans", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/scans", "nope", http.StatusUnauthorized},
		{"read token cannot start scans", http.MethodPost, "/scans", "scans-ro", http.StatusForbidden},
		{"read token cannot stop scans", http.MethodPost, "/scans/abc/stop", "scans-ro", http.StatusForbidden},
		{"janitor read cannot execute", http.MethodPost, "/janitor/execute", "janitor-ro", http.StatusForbidden},
		{"janitor token cannot list scans", http.MethodGet, "/scans", "janitor-rw", http.StatusForbidden},
		{"scans token cannot stream events", http.MethodGet, "/events", "scans-ro", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "insufficient scope", decodeError(t, rr))
			}
		})
	}
}

func TestHandleStartScan_AppliesDefaults(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cfg scan.Config) (string, error) {
			assert.Equal(t, []string{"/data/photos"}, cfg.Roots)
			assert.True(t, cfg.ComputeHashes)
			assert.True(t, cfg.ReuseHashes)
			assert.Equal(t, 10, cfg.BatchSize)
			return "scan-1", nil
		})

	rr := ts.do(http.MethodPost, "/scans", adminKey, `{"roots":["/data/photos"],"batch_size":10}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp StartScanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "scan-1", resp.ScanID)
	assert.Equal(t, scan.StatusRunning, resp.Status)
}

func TestHandleStartScan_ExplicitOverrides(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cfg scan.Config) (string, error) {
			assert.Equal(t, "pinned", cfg.ID)
			assert.False(t, cfg.ComputeHashes)
			assert.False(t, cfg.ReuseHashes)
			assert.Equal(t, []string{"jpg"}, cfg.IncludeExt)
			return cfg.ID, nil
		})

	body := `{"scan_id":"pinned","roots":["/srv"],"include_ext":["jpg"],"compute_hashes":false,"reuse_hashes":false}`
	rr := ts.do(http.MethodPost, "/scans", adminKey, body)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestHandleStartScan_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		startFn func(ts *testServer)
		wantErr string
	}{
		{name: "relative root", body: `{"roots":["photos"]}`, wantErr: "not an absolute path"},
		{name: "negative batch", body: `{"roots":["/a"],"batch_size":-1}`, wantErr: "batch_size"},
		{name: "malformed json", body: `{"roots":`, wantErr: "invalid JSON body"},
		{
			name: "no roots anywhere",
			body: `{}`,
			startFn: func(ts *testServer) {
				ts.scans.EXPECT().Start(gomock.Any(), gomock.Any()).Return("", scan.ErrNoRoots)
			},
			wantErr: "no roots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.startFn != nil {
				tt.startFn(ts)
			}
			rr := ts.do(http.MethodPost, "/scans", adminKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decodeError(t, rr), tt.wantErr)
		})
	}
}

func TestHandleGetScan(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.EXPECT().Status(gomock.Any(), "scan-1").Return(&scan.Job{
		ID:     "scan-1",
		Status: scan.StatusComplete,
		Counts: scan.Counts{FilesSeen: 25, Upserts: 25, Batches: 7},
	}, nil)
	ts.scans.EXPECT().Status(gomock.Any(), "missing").Return(nil, scan.ErrScanNotFound)

	rr := ts.do(http.MethodGet, "/scans/scan-1", "scans-ro", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var job scan.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.Equal(t, scan.StatusComplete, job.Status)
	assert.Equal(t, int64(7), job.Counts.Batches)

	rr = ts.do(http.MethodGet, "/scans/missing", "scans-ro", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "scan not found", decodeError(t, rr))
}

func TestHandleListScans(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.EXPECT().List(gomock.Any(), 5).Return(nil, nil)

	rr := ts.do(http.MethodGet, "/scans?limit=5", "scans-ro", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"scans":[]}`, rr.Body.String())

	rr = ts.do(http.MethodGet, "/scans?limit=zero", "scans-ro", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleStopScan(t *testing.T) {
	ts := newTestServer(t)
	ts.scans.EXPECT().Stop("scan-1").Return(true)
	ts.scans.EXPECT().Stop("done-already").Return(false)

	rr := ts.do(http.MethodPost, "/scans/scan-1/stop", adminKey, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"scan_id":"scan-1","accepted":true}`, rr.Body.String())

	rr = ts.do(http.MethodPost, "/scans/done-already/stop", adminKey, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"scan_id":"done-already","accepted":false}`, rr.Body.String())
}

func TestHandleGetCatalogRecord(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.EXPECT().Get(gomock.Any(), "/data/a.jpg").Return(&catalog.Record{
		Path:     "/data/a.jpg",
		Dirname:  "/data",
		Filename: "a.jpg",
		Ext:      "jpg",
		Size:     26,
	}, nil)
	ts.catalog.EXPECT().Get(gomock.Any(), "/data/b.jpg").Return(nil, catalog.ErrRecordNotFound)

	rr := ts.do(http.MethodGet, "/catalog?path=/data/a.jpg", "scans-ro", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec catalog.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, int64(26), rec.Size)

	rr = ts.do(http.MethodGet, "/catalog?path=/data/b.jpg", "scans-ro", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "file not cataloged", decodeError(t, rr))

	rr = ts.do(http.MethodGet, "/catalog", "scans-ro", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleListPolicies(t *testing.T) {
	ts := newTestServer(t)
	ts.janitor.EXPECT().Policies().Return([]janitor.Policy{
		{ID: janitor.PolicyDeleteDuplicates, Enabled: true},
	})

	rr := ts.do(http.MethodGet, "/janitor/policies", "janitor-ro", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp PoliciesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Policies, 1)
	assert.Equal(t, janitor.PolicyDeleteDuplicates, resp.Policies[0].ID)
}

func TestHandleAnalyze(t *testing.T) {
	ts := newTestServer(t)
	ts.janitor.EXPECT().Analyze(gomock.Any(), "/data").Return(&janitor.Analysis{
		Path:            "/data",
		TotalFiles:      3,
		DuplicatesCount: 1,
		WastedSpace:     26,
	}, nil)

	rr := ts.do(http.MethodPost, "/janitor/analyze", "janitor-ro", `{"path":"/data"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var res janitor.Analysis
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, int64(26), res.WastedSpace)

	rr = ts.do(http.MethodPost, "/janitor/analyze", "janitor-ro", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "path required", decodeError(t, rr))
}

func TestHandleJanitor_RejectsRelativePath(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{"/janitor/analyze", "/janitor/suggest"} {
		rr := ts.do(http.MethodPost, target, "janitor-ro", `{"path":"data"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, `path "data" is not an absolute path`, decodeError(t, rr), target)
	}
}

func TestHandleSuggest_PolicyFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.janitor.EXPECT().Policies().Return([]janitor.Policy{
		{ID: janitor.PolicyDeleteDuplicates, Enabled: true},
		{ID: janitor.PolicyRemoveTempFiles, Enabled: true},
	})
	ts.janitor.EXPECT().Suggest(gomock.Any(), "/data", nil).Return(&janitor.SuggestResult{
		Path:             "/data",
		SuggestionsCount: 2,
		TotalSpaceSaved:  36,
		Suggestions: []janitor.Suggestion{
			{Policy: janitor.PolicyDeleteDuplicates, Files: []string{"/data/b"}, SpaceSaved: 26},
			{Policy: janitor.PolicyRemoveTempFiles, Files: []string{"/data/x.tmp"}, SpaceSaved: 10},
		},
		PoliciesApplied: []string{janitor.PolicyDeleteDuplicates, janitor.PolicyRemoveTempFiles},
	}, nil)

	body := `{"path":"/data","policy":"remove_temp_files"}`
	rr := ts.do(http.MethodPost, "/janitor/suggest", "janitor-ro", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var res janitor.SuggestResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, janitor.PolicyRemoveTempFiles, res.Suggestions[0].Policy)
	assert.Equal(t, int64(10), res.TotalSpaceSaved)
	assert.Equal(t, 1, res.SuggestionsCount)
}

func TestHandleSuggest_UnknownPolicy(t *testing.T) {
	ts := newTestServer(t)
	ts.janitor.EXPECT().Suggest(gomock.Any(), "/data", []string{"bogus"}).
		Return(nil, janitor.ErrUnknownPolicy)

	rr := ts.do(http.MethodPost, "/janitor/suggest", "janitor-ro", `{"path":"/data","policies":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSuggest_UnknownPolicyFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.janitor.EXPECT().Policies().Return([]janitor.Policy{
		{ID: janitor.PolicyDeleteDuplicates, Enabled: true},
	})

	rr := ts.do(http.MethodPost, "/janitor/suggest", "janitor-ro", `{"path":"/data","policy":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `unknown policy: "bogus"`, decodeError(t, rr))
}

func TestHandleExecute(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDryRun bool
	}{
		{name: "dry run by default", body: `{"files":["/data/b"]}`, wantDryRun: true},
		{name: "explicit dry run", body: `{"files":["/data/b"],"dry_run":true}`, wantDryRun: true},
		{name: "apply", body: `{"files":["/data/b"],"dry_run":false}`, wantDryRun: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.janitor.EXPECT().Execute(gomock.Any(), []string{"/data/b"}, tt.wantDryRun).
				Return(&janitor.ExecuteResult{DryRun: tt.wantDryRun, TotalFiles: 1})

			rr := ts.do(http.MethodPost, "/janitor/execute", "janitor-rw", tt.body)
			require.Equal(t, http.StatusOK, rr.Code)
			var res janitor.ExecuteResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.Equal(t, tt.wantDryRun, res.DryRun)
		})
	}
}

func TestHandleExecute_FilesRequired(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodPost, "/janitor/execute", "janitor-rw", `{"dry_run":false}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "files array required", decodeError(t, rr))
}

// streamWriter is a goroutine-safe ResponseWriter for SSE tests.
type streamWriter struct {
	mu     sync.Mutex
	header http.Header
	status int
	buf    bytes.Buffer
}

func newStreamWriter() *streamWriter {
	return &streamWriter{header: make(http.Header)}
}

func (w *streamWriter) Header() http.Header { return w.header }

func (w *streamWriter) WriteHeader(statusCode int) {
	w.mu.Lock()
	w.status = statusCode
	w.mu.Unlock()
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *streamWriter) Flush() {}

func (w *streamWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func streamEvents(t *testing.T, ts *testServer, target, lastEventID, until string) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	w := newStreamWriter()
	done := make(chan struct{})
	go func() {
		ts.handler.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(w.String(), until)
	}, time.Second, 10*time.Millisecond, "stream so far: %q", w.String())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not exit after context cancel")
	}
	return w.String()
}

func TestHandleEvents_ReplaysBufferedEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Publish(events.ScanStarted, map[string]any{"scan_id": "s1"})

	out := streamEvents(t, ts, "/events", "", "event: scan.started\n")
	assert.Contains(t, out, "id: 1\n")
	assert.Contains(t, out, `data: {"scan_id":"s1"}`)
}

func TestHandleEvents_ResumesAfterLastEventID(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Publish(events.ScanStarted, map[string]any{"scan_id": "s1"})
	ts.hub.Publish(events.ScanProgress, map[string]any{"scan_id": "s1"})
	ts.hub.Publish(events.ScanDone, map[string]any{"scan_id": "s1"})

	out := streamEvents(t, ts, "/events", "2", "event: scan.done\n")
	assert.NotContains(t, out, "event: scan.started\n")
	assert.NotContains(t, out, "event: scan.progress\n")
	assert.Contains(t, out, "id: 3\n")
}

func TestHandleEvents_DeliversLiveEvents(t *testing.T) {
	ts := newTestServer(t)

	go func() {
		deadline := time.Now().Add(time.Second)
		for ts.hub.Subscribers() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		ts.hub.Publish(events.JanitorExecuted, map[string]any{"deleted": 1})
	}()

	out := streamEvents(t, ts, "/events", "", "event: janitor.executed\n")
	assert.Equal(t, 1, strings.Count(out, "event: janitor.executed\n"))
}

func TestHandleEvents_TypeFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Publish(events.ScanStarted, map[string]any{"scan_id": "s1"})
	ts.hub.Publish(events.ScanProgress, map[string]any{"scan_id": "s1"})
	ts.hub.Publish(events.ScanDone, map[string]any{"scan_id": "s1"})

	out := streamEvents(t, ts, "/events?types=scan.started,scan.done", "", "event: scan.done\n")
	assert.Contains(t, out, "event: scan.started\n")
	assert.NotContains(t, out, "event: scan.progress\n")
	assert.Contains(t, out, "id: 3\n")
}

func TestParseTypeFilter(t *testing.T) {
	f := parseTypeFilter(" scan.done, ,janitor.executed")
	assert.Len(t, f, 2)
	assert.True(t, f.match("scan.done"))
	assert.False(t, f.match("scan.progress"))
	assert.True(t, parseTypeFilter("").match("anything"))
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(17), parseLastEventID("17"))
}
