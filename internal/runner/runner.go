package runner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"infbench/internal/metrics"
	"infbench/internal/stats"

	"github.com/google/uuid"
)

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Target    uint64
	Requests  uint64
	Success   uint64
	Fail      uint64
	Transport uint64
	Inflight  int64
	Elapsed   time.Duration

	// Pre-calculated percentiles for the UI (cheap copy)
	MeanServiceMs float64
	P50ServiceMs  float64
	P90ServiceMs  float64
	P99ServiceMs  float64
	MaxServiceMs  float64
}

// Progress returns the completed share of the run in [0, 1].
func (s StatsSnapshot) Progress() float64 {
	if s.Target == 0 {
		return 1
	}
	pct := float64(s.Requests) / float64(s.Target)
	if pct > 1 {
		pct = 1
	}
	return pct
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type Runner struct {
	ID      string
	Cfg     Config
	Stats   *stats.Stats
	Client  *http.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	issuer    *Issuer
	collector *Collector
	inflight  int64
	startedAt atomic.Int64

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, updates StatsUpdateChan) (*Runner, error) {
	if cfg.Workers < 1 {
		return nil, errors.New("worker count must be at least 1")
	}
	if cfg.Requests < 0 {
		return nil, errors.New("request count must not be negative")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	body, err := NewBodyBuilder(cfg.PayloadTemplate)
	if err != nil {
		return nil, err
	}

	client := NewHTTPClient(cfg.Timeout)

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		ID:      uuid.New().String(),
		Cfg:     cfg,
		Stats:   stats.NewStats(),
		Client:  client,
		Logger:  slog.Default(),
		issuer:  NewIssuer(client, cfg.GatewayURL, DefaultPrefix, body),
		Updates: updates,
	}, nil
}

// Issuer exposes the runner's request issuer for sequential experiments
// that share its client and payload settings.
func (r *Runner) Issuer() *Issuer {
	return r.issuer
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) Snapshot() StatsSnapshot {
	var elapsed time.Duration
	if started := r.startedAt.Load(); started != 0 {
		elapsed = time.Since(time.Unix(0, started))
	}

	return StatsSnapshot{
		Target:        uint64(r.Cfg.Dispatched()),
		Requests:      atomic.LoadUint64(&r.Stats.Requests),
		Success:       atomic.LoadUint64(&r.Stats.Success),
		Fail:          atomic.LoadUint64(&r.Stats.Fail),
		Transport:     atomic.LoadUint64(&r.Stats.TransportErrors),
		Inflight:      atomic.LoadInt64(&r.inflight),
		Elapsed:       elapsed,
		MeanServiceMs: r.Stats.MeanServiceMs(),
		P50ServiceMs:  r.Stats.GetP50Service(),
		P90ServiceMs:  r.Stats.GetP90Service(),
		P99ServiceMs:  r.Stats.GetP99Service(),
		MaxServiceMs:  r.Stats.MaxServiceMs(),
	}
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run splits Cfg.Requests evenly across Cfg.Workers goroutines and blocks
// until all of them finish. Each worker issues Requests/Workers requests in
// sequence; the remainder of the division is not sent.
//
// Cancelling ctx stops workers before their next request. Requests already
// in flight are still recorded.
func (r *Runner) Run(ctx context.Context) Result {
	perWorker := r.Cfg.PerWorker()
	r.collector = NewCollector(r.Cfg.Dispatched())

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	r.Logger.Info("starting benchmark",
		"run_id", r.ID,
		"gateway", r.Cfg.GatewayURL,
		"requests", r.Cfg.Requests,
		"workers", r.Cfg.Workers,
		"per_worker", perWorker,
	)

	start := time.Now()
	r.startedAt.Store(start.UnixNano())

	var wg sync.WaitGroup
	for w := 0; w < r.Cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if ctx.Err() != nil {
					return
				}
				r.executeRequest(ctx, w*perWorker+i)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	stopTicks()
	r.sendUpdate()

	outcomes, failures := r.collector.Snapshot()

	r.Logger.Info("benchmark finished",
		"run_id", r.ID,
		"dispatched", len(outcomes),
		"transport_errors", failures.Total(),
		"elapsed", elapsed,
	)

	return Result{
		RunID:      r.ID,
		Requested:  r.Cfg.Requests,
		Dispatched: len(outcomes),
		Outcomes:   outcomes,
		Failures:   failures,
		Elapsed:    elapsed,
	}
}

func (r *Runner) executeRequest(ctx context.Context, index int) {
	atomic.AddInt64(&r.inflight, 1)
	r.Metrics.IncInflight()
	defer func() {
		atomic.AddInt64(&r.inflight, -1)
		r.Metrics.DecInflight()
	}()

	a := r.issuer.Issue(ctx, index)
	r.collector.Add(a)

	latency := time.Duration(a.Outcome.LatencyMs * float64(time.Millisecond))
	r.Stats.Add(a.Outcome.Success, a.TransportFailure(), latency)
	r.Metrics.Observe(a.Outcome.StatusCode, a.Outcome.Success, a.Category, latency)

	if a.TransportFailure() {
		r.Logger.Debug("request failed",
			"run_id", r.ID,
			"index", index,
			"category", a.Category,
			"latency_ms", a.Outcome.LatencyMs,
		)
	}
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
