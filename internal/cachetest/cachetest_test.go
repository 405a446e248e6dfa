package cachetest

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

	"infbench/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cachingGateway is slow the first time it sees an input vector.
type cachingGateway struct {
	mu   sync.Mutex
	seen map[string]bool
	ids  []string
}

func (g *cachingGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p runner.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key, _ := json.Marshal(p.InputData)

	g.mu.Lock()
	hit := g.seen[string(key)]
	g.seen[string(key)] = true
	g.ids = append(g.ids, p.RequestID)
	g.mu.Unlock()

	if !hit {
		time.Sleep(20 * time.Millisecond)
	}
	w.WriteHeader(http.StatusOK)
}

func TestRun_MeasuresSpeedup(t *testing.T) {
	gw := &cachingGateway{seen: map[string]bool{}}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	is := runner.NewIssuer(runner.NewHTTPClient(time.Second), srv.URL, "", nil)
	res, err := Run(context.Background(), is, Config{Requests: 10, Pause: time.Millisecond})
	require.NoError(t, err)

	assert.Len(t, res.Miss.LatenciesMs, 10)
	assert.Len(t, res.Hit.LatenciesMs, 10)
	assert.Zero(t, res.Miss.Failures)
	require.NoError(t, res.Err)
	assert.Greater(t, res.Miss.MeanMs, res.Hit.MeanMs)
	assert.Greater(t, res.Speedup, 1.0)

	gw.mu.Lock()
	ids := append([]string(nil), gw.ids...)
	gw.mu.Unlock()
	require.Len(t, ids, 20)
	assert.Equal(t, "cache_miss_0", ids[0])
	assert.Equal(t, "cache_hit_0", ids[10])
	assert.Equal(t, "cache_hit_9", ids[19])

	var buf bytes.Buffer
	Render(&buf, res)
	assert.Contains(t, buf.String(), "CACHE EFFECTIVENESS TEST")
	assert.Contains(t, buf.String(), "Cache speedup: ")
	assert.True(t, strings.Contains(buf.String(), "x\n"))
}

func TestRun_FailuresCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	is := runner.NewIssuer(runner.NewHTTPClient(time.Second), srv.URL, "", nil)
	res, err := Run(context.Background(), is, Config{Requests: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Miss.Failures)
	assert.Equal(t, 3, res.Hit.Failures)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	is := runner.NewIssuer(runner.NewHTTPClient(time.Second), "http://127.0.0.1:1", "", nil)
	_, err := Run(ctx, is, Config{Requests: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpeedup(t *testing.T) {
	s, err := Speedup(50, 10)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s)

	_, err = Speedup(50, 0)
	assert.ErrorIs(t, err, ErrUndefinedSpeedup)

	_, err = Speedup(0, 10)
	assert.ErrorIs(t, err, ErrUndefinedSpeedup)
}

func TestRender_UndefinedSpeedup(t *testing.T) {
	_, err := Speedup(1, 0)
	var buf bytes.Buffer
	Render(&buf, Result{Err: err})
	assert.Contains(t, buf.String(), "Cache speedup: n/a")
}
