package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/monitoring"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/queue"
	"github.com/sells-group/leadscan/internal/sink"
	"github.com/sells-group/leadscan/internal/store"
)

type switchSink struct{ outcome sink.Outcome }

func (s *switchSink) Submit(context.Context, model.Lead) sink.Outcome { return s.outcome }

type textRecognizer string

func (t textRecognizer) Recognize(context.Context, image.Image) (ocr.Result, error) {
	return ocr.Result{Text: string(t)}, nil
}

type testEnv struct {
	handler http.Handler
	store   *store.SQLiteStore
	sink    *switchSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	m := metrics.New()
	sk := &switchSink{outcome: sink.Delivered}
	q := queue.NewManager(st, sk, nil, queue.WithMetrics(m))
	p := capture.New(st, sk, q, textRecognizer("JANE DOE\nAcme Corp\n"), capture.WithMetrics(m))

	h := NewRouter(Deps{
		Capture: p,
		Queue:   q,
		Records: st,
		Status:  monitoring.NewCollector(st, nil, true),
		Metrics: m,
	})
	return &testEnv{handler: h, store: st, sink: sk}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRequestIDPassthrough(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "leadscan_")
}

func TestIdentity(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/api/identity", map[string]string{"name": "  alice "})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"alice"}`, rr.Body.String())

	rr = env.do(t, http.MethodPut, "/api/identity", map[string]string{"name": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPostLead(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveIdentity(context.Background(), "alice"))

	rr := env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "Jane Doe", Company: "Acme"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp leadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Delivered)
	assert.NotEmpty(t, resp.Timestamp)

	env.sink.outcome = sink.Failed
	rr = env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "John Roe"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Delivered)

	rr = env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap monitoring.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "alice", snap.Identity)
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, 2, snap.HistorySize)
	assert.Equal(t, 1, snap.Undelivered)

	rr = env.do(t, http.MethodGet, "/api/history?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var hist []model.HistoryEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, "John Roe", hist[0].Name)
}

func TestPostLead_Validation(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveIdentity(context.Background(), "alice"))

	rr := env.do(t, http.MethodPost, "/api/leads", model.Fields{Company: "Acme"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "name is required")

	rr = env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "Jane", Rating: 9})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// The flow is free again after a rejected submit.
	rr = env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "Jane"})
	assert.Equal(t, http.StatusCreated, rr.Code)

	hist, err := env.store.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestPostLead_NoIdentity(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "Jane"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "staff identity")
}

func TestPostLead_BadBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistory_BadLimit(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/history?limit=-2", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHistoryXLSX(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/history.xlsx", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "leads.xlsx")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")), "zip container")
}

func TestScan(t *testing.T) {
	env := newTestEnv(t)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 20, 10))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "badge.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp scanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Jane Doe", resp.Fields.Name)
	assert.Equal(t, "Acme Corp", resp.Fields.Company)
	assert.False(t, resp.Fallback)

	// Scanning never writes a lead.
	hist, err := env.store.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestScan_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRetryQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.SaveIdentity(ctx, "alice"))

	env.sink.outcome = sink.Failed
	rr := env.do(t, http.MethodPost, "/api/leads", model.Fields{Name: "Jane"})
	require.Equal(t, http.StatusCreated, rr.Code)

	env.sink.outcome = sink.Delivered
	rr = env.do(t, http.MethodPost, "/api/queue/retry", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res queue.DrainResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 0, res.Remaining)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
