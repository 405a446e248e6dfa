package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway answers /infer and remembers every request index it saw.
type recordingGateway struct {
	mu     sync.Mutex
	seen   []int
	status func(index int) int
}

func (g *recordingGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(p.RequestID, "req_"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	g.seen = append(g.seen, idx)
	g.mu.Unlock()

	code := http.StatusOK
	if g.status != nil {
		code = g.status(idx)
	}
	w.WriteHeader(code)
	w.Write([]byte(`{"ok":true}`))
}

func (g *recordingGateway) indices() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]int(nil), g.seen...)
	sort.Ints(out)
	return out
}

func newTestRunner(t *testing.T, url string, requests, workers int) *Runner {
	t.Helper()
	r, err := NewRunner(Config{
		GatewayURL: url,
		Requests:   requests,
		Workers:    workers,
		Timeout:    2 * time.Second,
	}, nil)
	require.NoError(t, err)
	return r
}

func TestRun_RecordsEveryDispatchedRequest(t *testing.T) {
	tests := []struct {
		requests, workers, want int
	}{
		{100, 1, 100},
		{100, 10, 100},
		{100, 7, 98},
		{10, 3, 9},
		{5, 8, 0},
		{1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.requests, tt.workers), func(t *testing.T) {
			gw := &recordingGateway{}
			srv := httptest.NewServer(gw)
			defer srv.Close()

			res := newTestRunner(t, srv.URL, tt.requests, tt.workers).Run(context.Background())

			assert.Len(t, res.Outcomes, tt.want)
			assert.Equal(t, tt.want, res.Dispatched)
			assert.Equal(t, tt.requests, res.Requested)
			assert.Empty(t, res.Failures)

			want := make([]int, tt.want)
			for i := range want {
				want[i] = i
			}
			assert.Equal(t, want, append([]int{}, gw.indices()...), "each id in [0, dispatched) sent exactly once")
		})
	}
}

func TestRun_TruncatesRemainder(t *testing.T) {
	gw := &recordingGateway{}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	res := newTestRunner(t, srv.URL, 10, 3).Run(context.Background())

	require.Len(t, res.Outcomes, 9)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, gw.indices())
}

func TestRun_FailedRequestsDoNotAbortWorker(t *testing.T) {
	gw := &recordingGateway{status: func(idx int) int {
		if idx%2 == 0 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	res := newTestRunner(t, srv.URL, 40, 4).Run(context.Background())

	require.Len(t, res.Outcomes, 40)
	success := 0
	for _, o := range res.Outcomes {
		if o.Success {
			success++
			assert.Equal(t, 200, o.StatusCode)
		} else {
			assert.Equal(t, 500, o.StatusCode)
		}
	}
	assert.Equal(t, 20, success)
	assert.Empty(t, res.Failures, "HTTP errors are not tallied")
}

func TestRun_TransportFailuresTallied(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := newTestRunner(t, url, 12, 4).Run(context.Background())

	require.Len(t, res.Outcomes, 12)
	for _, o := range res.Outcomes {
		assert.False(t, o.Success)
		assert.Equal(t, 0, o.StatusCode)
	}
	assert.Equal(t, FailureTally{"ConnectionError": 12}, res.Failures)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	gw := &recordingGateway{}
	srv := httptest.NewServer(gw)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestRunner(t, srv.URL, 50, 5).Run(ctx)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, gw.indices())
}

func TestRun_PublishesFinalSnapshot(t *testing.T) {
	srv := httptest.NewServer(&recordingGateway{})
	defer srv.Close()

	updates := make(StatsUpdateChan, 100)
	r, err := NewRunner(Config{GatewayURL: srv.URL, Requests: 20, Workers: 2}, updates)
	require.NoError(t, err)

	r.Run(context.Background())

	var last StatsSnapshot
drain:
	for {
		select {
		case s := <-updates:
			last = s
		default:
			break drain
		}
	}
	assert.Equal(t, uint64(20), last.Requests)
	assert.Equal(t, uint64(20), last.Success)
	assert.Equal(t, uint64(20), last.Target)
	assert.Equal(t, 1.0, last.Progress())
	assert.Greater(t, last.MeanServiceMs, 0.0)
	assert.LessOrEqual(t, last.MeanServiceMs, last.MaxServiceMs)
	assert.Equal(t, int64(0), r.GetInflight())
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{GatewayURL: "http://x", Requests: 10, Workers: 0}, nil)
	assert.Error(t, err)

	_, err = NewRunner(Config{GatewayURL: "http://x", Requests: -1, Workers: 1}, nil)
	assert.Error(t, err)

	_, err = NewRunner(Config{GatewayURL: "http://x", Requests: 1, Workers: 1, PayloadTemplate: "{{"}, nil)
	assert.Error(t, err)

	r, err := NewRunner(Config{GatewayURL: "http://x", Requests: 1, Workers: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, r.Client.Timeout)
	assert.NotEmpty(t, r.ID)
}
