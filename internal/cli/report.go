package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"infbench/internal/report"
	"infbench/internal/runner"
	"infbench/internal/tui/styles"
)

const ruleWidth = 70

// palette holds styles bound to one output. Writers that are not terminals
// get plain text.
type palette struct {
	title   lipgloss.Style
	section lipgloss.Style
	value   lipgloss.Style
	err     lipgloss.Style
	subtle  lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		title:   r.NewStyle().Foreground(styles.ColorPrimary).Bold(true),
		section: r.NewStyle().Foreground(styles.ColorText).Bold(true),
		value:   r.NewStyle().Foreground(styles.ColorSecondary),
		err:     r.NewStyle().Foreground(styles.ColorError).Bold(true),
		subtle:  r.NewStyle().Foreground(styles.ColorSubtle),
	}
}

func rule() string {
	return strings.Repeat("=", ruleWidth)
}

// PrintHeader announces the run about to start.
func PrintHeader(w io.Writer, cfg runner.Config) {
	p := newPalette(w)
	fmt.Fprintln(w, p.title.Render("Starting benchmark:"))
	fmt.Fprintf(w, "  Gateway: %s\n", cfg.GatewayURL)
	fmt.Fprintf(w, "  Requests: %d\n", cfg.Requests)
	fmt.Fprintf(w, "  Threads: %d\n", cfg.Workers)
	fmt.Fprintln(w)
}

// RenderReport prints a finished report. A run without any success only
// gets the error notice and the breakdown.
func RenderReport(w io.Writer, rep report.Report) {
	p := newPalette(w)

	if rep.AllFailed() {
		fmt.Fprintln(w, p.err.Render("ERROR: All requests failed"))
		if len(rep.Failures) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Error breakdown:")
			writeTally(w, p, rep.Failures)
		}
		return
	}

	line := func(label, value string) {
		fmt.Fprintf(w, "  %-20s%s\n", label+":", p.value.Render(value))
	}
	ms := func(v float64) string { return fmt.Sprintf("%.2f", v) }

	fmt.Fprintln(w, p.subtle.Render(rule()))
	fmt.Fprintln(w, p.title.Render("BENCHMARK RESULTS"))
	fmt.Fprintln(w, p.subtle.Render(rule()))
	fmt.Fprintln(w)

	fmt.Fprintln(w, p.section.Render("Throughput"))
	line("Total requests", fmt.Sprintf("%d", rep.Requested))
	line("Successful", fmt.Sprintf("%d", rep.Successful))
	line("Failed", fmt.Sprintf("%d", rep.Failed))
	line("Success rate", fmt.Sprintf("%.2f%%", rep.SuccessRate*100))
	line("Total time", fmt.Sprintf("%.2fs", rep.Elapsed.Seconds()))
	line("Requests/sec", fmt.Sprintf("%.2f", rep.Throughput))
	fmt.Fprintln(w)

	lat := rep.Latency
	fmt.Fprintln(w, p.section.Render("Latency (ms):"))
	line("Mean", ms(lat.MeanMs))
	line("Median", ms(lat.MedianMs))
	if lat.HasStdDev {
		line("Stddev", ms(lat.StdDevMs))
	} else {
		line("Stddev", "n/a (single sample)")
	}
	line("Min", ms(lat.MinMs))
	line("Max", ms(lat.MaxMs))
	fmt.Fprintln(w)

	fmt.Fprintln(w, p.section.Render("Percentiles (ms):"))
	for _, pc := range lat.Percentiles {
		line(fmt.Sprintf("p%d", pc.P), ms(pc.ValueMs))
	}
	fmt.Fprintln(w)

	if len(rep.Failures) > 0 {
		fmt.Fprintln(w, p.err.Render("Errors:"))
		writeTally(w, p, rep.Failures)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, p.subtle.Render(rule()))
}

// writeTally prints categories by descending count, then by name.
func writeTally(w io.Writer, p palette, tally runner.FailureTally) {
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if tally[keys[i]] != tally[keys[j]] {
			return tally[keys[i]] > tally[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, tally[k])
	}
}
