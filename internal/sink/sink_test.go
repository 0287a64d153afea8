package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/pkg/appscript"
)

type staticNet bool

func (n staticNet) Online() bool { return bool(n) }

func testLead() model.Lead {
	return model.Lead{
		Timestamp: "2026-10-19T09:00:00.000Z",
		Name:      "Jane Doe",
		Company:   "Acme",
		ScannedBy: "alice",
	}
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSubmit_Delivered(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)
	m := metrics.New()

	s := New(appscript.NewClient(srv.URL), staticNet(true), WithMetrics(m))
	assert.Equal(t, Delivered, s.Submit(context.Background(), testLead()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_UnconfiguredMakesNoRequest(t *testing.T) {
	s := New(nil, staticNet(true))
	assert.False(t, s.Configured())
	assert.Equal(t, Failed, s.Submit(context.Background(), testLead()))

	s = New(appscript.NewClient(""), staticNet(true))
	assert.False(t, s.Configured())
	assert.Equal(t, Failed, s.Submit(context.Background(), testLead()))
}

func TestSubmit_OfflineMakesNoRequest(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)

	s := New(appscript.NewClient(srv.URL), staticNet(false))
	assert.Equal(t, Failed, s.Submit(context.Background(), testLead()))
	assert.Equal(t, int32(0), hits.Load())
}

func TestSubmit_ServerErrorStillDelivered(t *testing.T) {
	srv, hits := countingServer(t, http.StatusInternalServerError)

	s := New(appscript.NewClient(srv.URL), staticNet(true))
	assert.Equal(t, Delivered, s.Submit(context.Background(), testLead()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_TransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := New(appscript.NewClient(url), staticNet(true))
	assert.Equal(t, Failed, s.Submit(context.Background(), testLead()))
}

func TestSubmit_NilReachabilityCountsAsOnline(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)

	s := New(appscript.NewClient(srv.URL), nil)
	assert.Equal(t, Delivered, s.Submit(context.Background(), testLead()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_RateLimitWaitCancelled(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)

	s := New(appscript.NewClient(srv.URL), staticNet(true), WithRateLimit(0.001))
	require.Equal(t, Delivered, s.Submit(context.Background(), testLead()))

	// The single burst token is spent; the next wait would exceed the deadline.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Failed, s.Submit(ctx, testLead()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_PayloadSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lead := testLead()
	lead.Rating = 4
	lead.Products = []string{"widgets"}

	s := New(appscript.NewClient(srv.URL), staticNet(true))
	require.Equal(t, Delivered, s.Submit(context.Background(), lead))

	assert.Equal(t, "Jane Doe", got["name"])
	assert.Equal(t, "Acme", got["company"])
	assert.Equal(t, "", got["notes"])
	assert.Equal(t, "alice", got["scannedBy"])
	assert.Equal(t, "2026-10-19T09:00:00.000Z", got["timestamp"])
	assert.InDelta(t, 4, got["rating"], 0.001)
	assert.Equal(t, []any{"widgets"}, got["products"])
	assert.NotContains(t, got, "email")
	assert.NotContains(t, got, "phone")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "failed", Failed.String())
}
