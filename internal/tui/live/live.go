package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"infbench/internal/runner"
	"infbench/internal/tui/components"
	"infbench/internal/tui/styles"
)

// Model shows a run while it is in progress.
type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	LastElapsed time.Duration
	LastReqs    uint64

	Width  int
	Height int
}

func NewModel() Model {
	return Model{
		Progress: progress.New(
			progress.WithGradient(string(styles.ColorPrimary), string(styles.ColorSecondary)),
		),
		RpsLine:     components.NewSparkline(40, "Throughput (req/s)", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		// Rates come from the run's own clock so that dropped snapshots
		// do not distort them.
		dt := (msg.Elapsed - m.LastElapsed).Seconds()
		if dt > 0 && msg.Requests >= m.LastReqs {
			m.RpsLine.Add(float64(msg.Requests-m.LastReqs) / dt)
			m.LatencyLine.Add(msg.P90ServiceMs)
		}

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastElapsed = msg.Elapsed

		return m, m.Progress.SetPercent(msg.Progress())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-4, 10)

		half := max(msg.Width/2-6, 10)
		m.RpsLine.Resize(half)
		m.LatencyLine.Resize(half)
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	reqs := m.Stats.Requests
	errRate := 0.0
	if reqs > 0 {
		errRate = float64(m.Stats.Fail) / float64(reqs) * 100
	}

	col1 := fmt.Sprintf("REQ: %d/%d\nINF: %d", reqs, m.Stats.Target, m.Stats.Inflight)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("NET: %d\nTIME: %s", m.Stats.Transport, m.Stats.Elapsed.Round(100*time.Millisecond))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRate(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"Mean: %.2f ms  |  P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		m.Stats.MeanServiceMs,
		m.Stats.P50ServiceMs,
		m.Stats.P90ServiceMs,
		m.Stats.P99ServiceMs,
		m.Stats.MaxServiceMs,
	)
	box := styles.Box
	if m.Width > 4 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())

	return s.String()
}
