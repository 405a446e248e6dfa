// Package probe reads the operational counters the gateway and workers
// publish on /stats and /health.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout = 5 * time.Second

	// MaxConcurrent bounds the number of targets read at once.
	MaxConcurrent = 8
)

type CircuitBreaker struct {
	Node      string `json:"node"`
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

type GatewayStats struct {
	TotalWorkers    int              `json:"total_workers"`
	CircuitBreakers []CircuitBreaker `json:"circuit_breakers"`
}

type BatchProcessor struct {
	AvgBatchSize   float64 `json:"avg_batch_size"`
	TotalBatches   int64   `json:"total_batches"`
	FullBatches    int64   `json:"full_batches"`
	TimeoutBatches int64   `json:"timeout_batches"`
}

type WorkerHealth struct {
	Healthy        bool           `json:"healthy"`
	NodeID         string         `json:"node_id"`
	TotalRequests  int64          `json:"total_requests"`
	CacheSize      int64          `json:"cache_size"`
	CacheHits      int64          `json:"cache_hits"`
	CacheHitRate   float64        `json:"cache_hit_rate"`
	BatchProcessor BatchProcessor `json:"batch_processor"`
}

// WorkerResult pairs a worker URL with its health, or the reason it could
// not be read.
type WorkerResult struct {
	URL    string
	Health *WorkerHealth
	Err    error
}

type Snapshot struct {
	Gateway    *GatewayStats
	GatewayErr error
	Workers    []WorkerResult
}

type Prober struct {
	Client *http.Client
	Logger *slog.Logger
}

func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		Client: &http.Client{Timeout: timeout},
		Logger: slog.Default(),
	}
}

func (p *Prober) GatewayStats(ctx context.Context, gateway string) (*GatewayStats, error) {
	var s GatewayStats
	if err := p.getJSON(ctx, join(gateway, "/stats"), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Prober) WorkerHealth(ctx context.Context, worker string) (*WorkerHealth, error) {
	var h WorkerHealth
	if err := p.getJSON(ctx, join(worker, "/health"), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Collect queries the gateway and every worker concurrently. Individual
// failures are recorded in the snapshot and never returned as an error;
// results keep the order of workers.
func (p *Prober) Collect(ctx context.Context, gateway string, workers []string) Snapshot {
	snap := Snapshot{Workers: make([]WorkerResult, len(workers))}

	// Every target is read regardless of the others, so the goroutines
	// report through snap and never fail the group.
	var g errgroup.Group
	g.SetLimit(MaxConcurrent)

	g.Go(func() error {
		snap.Gateway, snap.GatewayErr = p.GatewayStats(ctx, gateway)
		if snap.GatewayErr != nil {
			p.Logger.Debug("gateway stats unavailable", "gateway", gateway, "error", snap.GatewayErr)
		}
		return nil
	})

	for i, w := range workers {
		g.Go(func() error {
			h, err := p.WorkerHealth(ctx, w)
			if err != nil {
				p.Logger.Debug("worker health unavailable", "worker", w, "error", err)
			}
			snap.Workers[i] = WorkerResult{URL: w, Health: h, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return snap
}

func (p *Prober) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", url, err)
	}
	return nil
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
