package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"infbench/internal/report"
	"infbench/internal/runner"
)

// Start runs r to completion, drawing a progress line on progress (if not
// nil) and the final report on out.
func Start(ctx context.Context, r *runner.Runner, out, progress io.Writer) report.Report {
	PrintHeader(out, r.Cfg)

	done := make(chan runner.Result, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	ticker := time.NewTicker(200 * time.Millisecond) // Faster updates for progress bar
	defer ticker.Stop()

	for {
		select {
		case <-r.Updates:
			// Drain updates
		case <-ticker.C:
			if progress != nil {
				printProgress(progress, r.Snapshot())
			}
		case res := <-done:
			if progress != nil {
				printProgress(progress, r.Snapshot())
				fmt.Fprintln(progress)
			}
			rep := report.FromResult(res)
			RenderReport(out, rep)
			return rep
		}
	}
}

func printProgress(w io.Writer, s runner.StatsSnapshot) {
	pct := s.Progress()
	rps := 0.0
	if s.Elapsed.Seconds() > 0 {
		rps = float64(s.Requests) / s.Elapsed.Seconds()
	}

	fmt.Fprintf(w, "\r%s %3.0f%% | %d/%d | Inf: %3d | RPS: %.1f | OK: %d | Err: %d | P90: %.1fms",
		progressBar(pct, 20), pct*100,
		s.Requests, s.Target,
		s.Inflight,
		rps,
		s.Success,
		s.Fail,
		s.P90ServiceMs,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
