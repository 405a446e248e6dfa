package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"infbench/internal/report"
	"infbench/internal/tui/styles"
)

// Model is the closing frame of a run.
type Model struct {
	Report report.Report

	Width  int
	Height int
}

func NewModel(rep report.Report) Model {
	return Model{Report: rep}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	rep := m.Report

	s.WriteString(styles.Title.Render("Run Complete"))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	overview := fmt.Sprintf(
		"Total Requests: %d\nSuccessful:     %d\nFailed:         %d\nSuccess Rate:   %.2f%%\nThroughput:     %.2f req/s",
		rep.Total, rep.Successful, rep.Failed, rep.SuccessRate, rep.Throughput,
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Latency (successful requests)"))
	s.WriteString("\n")
	if rep.AllFailed() {
		s.WriteString(styles.Box.Render(styles.Error.Render("All requests failed")))
	} else {
		lat := rep.Latency
		var b strings.Builder
		fmt.Fprintf(&b, "Mean: %.2f ms\nMin:  %.2f ms\nMax:  %.2f ms", lat.MeanMs, lat.MinMs, lat.MaxMs)
		for _, p := range lat.Percentiles {
			fmt.Fprintf(&b, "\nP%d:  %.2f ms", p.P, p.ValueMs)
		}
		s.WriteString(styles.Box.Render(b.String()))
	}

	return s.String()
}
