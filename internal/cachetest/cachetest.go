// Package cachetest measures how much the serving system's result cache
// speeds up repeated inputs.
//
// Phase one sends a fixed number of requests whose feature vectors cycle
// through index%10; phase two, after a short pause, sends the same vectors
// again. The speedup is mean(phase one) / mean(phase two).
package cachetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"infbench/internal/report"
	"infbench/internal/runner"
)

const (
	DefaultRequests = 100
	DefaultPause    = time.Second

	MissPrefix = "cache_miss"
	HitPrefix  = "cache_hit"
)

// ErrUndefinedSpeedup is returned when either phase has no usable mean.
var ErrUndefinedSpeedup = errors.New("speedup undefined")

type Config struct {
	Requests int
	Pause    time.Duration
}

type Phase struct {
	Name        string
	LatenciesMs []float64
	Failures    int
	MeanMs      float64
}

type Result struct {
	Miss    Phase
	Hit     Phase
	Speedup float64
	Err     error
}

// Run executes both phases sequentially with is. Request failures are
// counted but their latency still contributes to the phase mean. Only a
// cancelled ctx aborts the experiment.
func Run(ctx context.Context, is *runner.Issuer, cfg Config) (Result, error) {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}

	var res Result
	var err error

	slog.Info("cache test phase", "phase", MissPrefix, "requests", cfg.Requests)
	if res.Miss, err = runPhase(ctx, is.WithPrefix(MissPrefix), "Initial requests (cache misses expected)", cfg.Requests); err != nil {
		return res, err
	}

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case <-time.After(cfg.Pause):
	}

	slog.Info("cache test phase", "phase", HitPrefix, "requests", cfg.Requests)
	if res.Hit, err = runPhase(ctx, is.WithPrefix(HitPrefix), "Repeated requests (cache hits expected)", cfg.Requests); err != nil {
		return res, err
	}

	res.Speedup, res.Err = Speedup(res.Miss.MeanMs, res.Hit.MeanMs)
	return res, nil
}

func runPhase(ctx context.Context, is *runner.Issuer, name string, n int) (Phase, error) {
	p := Phase{Name: name, LatenciesMs: make([]float64, 0, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		a := is.Issue(ctx, i)
		p.LatenciesMs = append(p.LatenciesMs, a.Outcome.LatencyMs)
		if !a.Outcome.Success {
			p.Failures++
		}
	}
	p.MeanMs = report.Mean(p.LatenciesMs)
	return p, nil
}

// Speedup is the ratio of the cold mean to the warm mean.
func Speedup(missMeanMs, hitMeanMs float64) (float64, error) {
	if hitMeanMs <= 0 || missMeanMs <= 0 {
		return 0, fmt.Errorf("%w: miss mean %.3fms, hit mean %.3fms", ErrUndefinedSpeedup, missMeanMs, hitMeanMs)
	}
	return missMeanMs / hitMeanMs, nil
}

func Render(w io.Writer, r Result) {
	rule := strings.Repeat("=", 70)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "CACHE EFFECTIVENESS TEST")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	for i, p := range []Phase{r.Miss, r.Hit} {
		fmt.Fprintf(w, "Phase %d: %s\n", i+1, p.Name)
		fmt.Fprintf(w, "  Mean latency: %.2fms\n", p.MeanMs)
		if p.Failures > 0 {
			fmt.Fprintf(w, "  Failed requests: %d/%d\n", p.Failures, len(p.LatenciesMs))
		}
		fmt.Fprintln(w)
	}

	if r.Err != nil {
		fmt.Fprintf(w, "Cache speedup: n/a (%v)\n", r.Err)
	} else {
		fmt.Fprintf(w, "Cache speedup: %.2fx\n", r.Speedup)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}
