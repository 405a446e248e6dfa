package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"infbench/internal/cachetest"
	"infbench/internal/cli"
	"infbench/internal/config"
	"infbench/internal/metrics"
	"infbench/internal/probe"
	"infbench/internal/report"
	"infbench/internal/runner"
	"infbench/internal/tui"
)

// runBenchmark runs the optional cache test, the benchmark itself and the
// optional statistics probe, in that order.
func runBenchmark(ctx context.Context, cfg *config.Config, out, errOut io.Writer) error {
	r, err := runner.NewRunner(cfg.Runner(), make(runner.StatsUpdateChan, 100))
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		r.Metrics = metrics.New(reg, r.ID)

		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				slog.Error("metrics endpoint failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	if cfg.CacheTest.Enabled {
		res, err := cachetest.Run(ctx, r.Issuer(), cachetest.Config{
			Requests: cfg.CacheTest.Requests,
			Pause:    cfg.CacheTest.Pause,
		})
		if err != nil {
			return fmt.Errorf("cache test: %w", err)
		}
		cachetest.Render(out, res)
	}

	if cfg.TUI {
		res, err := tui.Run(ctx, r, tea.WithOutput(errOut))
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cli.PrintHeader(out, r.Cfg)
		cli.RenderReport(out, report.FromResult(res))
	} else {
		cli.Start(ctx, r, out, progressWriter(errOut))
	}

	// An interrupted run still gets its report, but not the probe.
	if !cfg.Probe.Disabled && ctx.Err() == nil {
		p := probe.New(cfg.Probe.Timeout)
		probe.Render(out, p.Collect(ctx, cfg.Gateway, cfg.Workers))
	}
	return nil
}

// progressWriter returns w when it is a terminal, nil otherwise.
func progressWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	return w
}
