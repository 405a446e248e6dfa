package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayJSON = `{
  "total_workers": 2,
  "circuit_breakers": [
    {"node": "worker1", "state": "CLOSED", "failures": 0, "successes": 12},
    {"node": "worker2", "state": "OPEN", "failures": 5, "successes": 0}
  ]
}`

const workerJSON = `{
  "healthy": true,
  "node_id": "worker1",
  "total_requests": 340,
  "cache_size": 10,
  "cache_hits": 330,
  "cache_hit_rate": 0.97,
  "batch_processor": {"avg_batch_size": 3.5, "total_batches": 97, "full_batches": 40, "timeout_batches": 57}
}`

func jsonServer(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayStats(t *testing.T) {
	srv := jsonServer(t, "/stats", gatewayJSON)

	s, err := New(time.Second).GatewayStats(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalWorkers)
	require.Len(t, s.CircuitBreakers, 2)
	assert.Equal(t, CircuitBreaker{Node: "worker2", State: "OPEN", Failures: 5}, s.CircuitBreakers[1])
}

func TestWorkerHealth(t *testing.T) {
	srv := jsonServer(t, "/health", workerJSON)

	h, err := New(time.Second).WorkerHealth(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "worker1", h.NodeID)
	assert.Equal(t, int64(330), h.CacheHits)
	assert.InDelta(t, 0.97, h.CacheHitRate, 1e-9)
	assert.Equal(t, int64(57), h.BatchProcessor.TimeoutBatches)
}

func TestGetJSON_Errors(t *testing.T) {
	p := New(time.Second)

	notFound := jsonServer(t, "/elsewhere", "{}")
	_, err := p.WorkerHealth(context.Background(), notFound.URL)
	assert.ErrorContains(t, err, "unexpected status 404")

	garbage := jsonServer(t, "/health", "not json")
	_, err = p.WorkerHealth(context.Background(), garbage.URL)
	assert.ErrorContains(t, err, "decode")
}

func TestCollect_PartialFailure(t *testing.T) {
	gw := jsonServer(t, "/stats", gatewayJSON)
	w1 := jsonServer(t, "/health", workerJSON)
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	snap := New(time.Second).Collect(context.Background(), gw.URL, []string{downURL, w1.URL})

	require.NotNil(t, snap.Gateway)
	require.Len(t, snap.Workers, 2)
	assert.Equal(t, downURL, snap.Workers[0].URL)
	assert.Error(t, snap.Workers[0].Err)
	assert.Nil(t, snap.Workers[0].Health)
	assert.Equal(t, w1.URL, snap.Workers[1].URL)
	require.NotNil(t, snap.Workers[1].Health)

	var buf bytes.Buffer
	Render(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "SYSTEM STATISTICS")
	assert.Contains(t, out, "worker2: OPEN (failures: 5, successes: 0)")
	assert.Contains(t, out, "Worker worker1 ("+w1.URL+"):")
	assert.Contains(t, out, "Cache hit rate:    97.00%")
	assert.Contains(t, out, "Avg batch size:    3.50")
	assert.NotContains(t, out, downURL)
}

func TestCollect_BoundedAndIndependent(t *testing.T) {
	var active, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/stats":
			w.Write([]byte(gatewayJSON))
		case "/w0/health":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(workerJSON))
		}
	}))
	defer srv.Close()

	workers := make([]string, 3*MaxConcurrent)
	for i := range workers {
		workers[i] = fmt.Sprintf("%s/w%d", srv.URL, i)
	}

	snap := New(time.Second).Collect(context.Background(), srv.URL, workers)

	require.NotNil(t, snap.Gateway)
	require.Len(t, snap.Workers, len(workers))
	assert.Error(t, snap.Workers[0].Err, "a failing worker is reported, not fatal")
	for i, wr := range snap.Workers[1:] {
		assert.Equal(t, workers[i+1], wr.URL)
		assert.NoError(t, wr.Err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(MaxConcurrent))
}

func TestCollect_GatewayDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	snap := New(time.Second).Collect(context.Background(), url, nil)
	assert.Nil(t, snap.Gateway)
	assert.Error(t, snap.GatewayErr)

	var buf bytes.Buffer
	Render(&buf, snap)
	assert.NotContains(t, buf.String(), "Gateway Circuit Breakers")
}

func TestRender_UnknownNode(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Snapshot{Workers: []WorkerResult{{URL: "http://w", Health: &WorkerHealth{}}}})
	assert.Contains(t, buf.String(), "Worker unknown (http://w):")
}
