package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"infbench/internal/report"
	"infbench/internal/runner"
	"infbench/internal/tui/live"
	"infbench/internal/tui/result"
	"infbench/internal/tui/styles"
)

type StatsMsg runner.StatsSnapshot

// DoneMsg carries the finished run.
type DoneMsg struct {
	Result runner.Result
}

type Model struct {
	Cfg     runner.Config
	Updates runner.StatsUpdateChan

	Live   live.Model
	Result result.Model

	cancel   context.CancelFunc
	Stopping bool
	Done     bool

	Width  int
	Height int
}

func NewModel(r *runner.Runner, cancel context.CancelFunc) Model {
	return Model{
		Cfg:     r.Cfg,
		Updates: r.Updates,
		Live:    live.NewModel(),
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		return StatsMsg(<-sub)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Live, _ = m.Live.Update(msg)
		m.Result, _ = m.Result.Update(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.Done {
				return m, tea.Quit
			}
			// Workers stop before their next request; DoneMsg follows.
			if !m.Stopping {
				m.Stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case StatsMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(runner.StatsSnapshot(msg))
		if m.Done {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case DoneMsg:
		m.Done = true
		m.Result = result.NewModel(report.FromResult(msg.Result))
		m.Result.Width = m.Width
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("infbench"))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"Gateway: %s | Requests: %d | Threads: %d",
		m.Cfg.GatewayURL, m.Cfg.Requests, m.Cfg.Workers,
	)))
	s.WriteString("\n\n")

	if m.Done {
		s.WriteString(m.Result.View())
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(m.Live.View())
	s.WriteString("\n\n")
	if m.Stopping {
		s.WriteString(styles.Warn.Render("Stopping: waiting for in-flight requests..."))
	} else {
		s.WriteString(styles.RenderKey("q", "stop run"))
	}
	return s.String()
}

// Run executes r under an interactive dashboard and returns the run's
// result. The run is cancelled if the program exits early.
func Run(ctx context.Context, r *runner.Runner, opts ...tea.ProgramOption) (runner.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(r, cancel), opts...)

	results := make(chan runner.Result, 1)
	go func() {
		res := r.Run(ctx)
		results <- res
		p.Send(DoneMsg{Result: res})
	}()

	_, err := p.Run()
	cancel()
	return <-results, err
}
