// Package tui provides the Bubble Tea terminal UI for grecurl,
// displaying live retrieval progress and a styled summary of run
// statistics once the Engine has drained. Non-interactive output
// (piped/redirected stdout) uses plain.go's line-oriented fallback
// instead; see IsInteractive.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corvaxen/grecurl/engine"
	"github.com/corvaxen/grecurl/result"
)

// Model is the Bubble Tea model for the retrieval run.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	eng    *engine.Engine
	events <-chan engine.Event

	spinner spinner.Model

	queued   int
	active   int
	current  string
	quitting bool
	done     bool
	snapshot result.Snapshot
	haveSnap bool
	err      error
	width    int
}

// NewModel creates a TUI model wired to an already-constructed Engine
// and the Event channel Engine.New was given.
func NewModel(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine, events <-chan engine.Event) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:     ctx,
		cancel:  cancel,
		eng:     eng,
		spinner: spin,
		events:  events,
	}
}

// Init starts the spinner, the run itself, and the progress listener
// concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), waitForEvent(m.events))
}

// startRun returns a tea.Cmd that drives Engine.Run to completion and
// reports a snapshot of the final statistics.
func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		err := m.eng.Run(m.ctx)
		if err != nil {
			err = fmt.Errorf("run: %w", err)
		}
		return RunDoneMsg{Snapshot: m.eng.Stats.Snapshot(m.eng.Exit), Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ProgressMsg:
		m.queued = msg.Queued
		m.active = msg.Active
		m.current = msg.URL
		return m, waitForEvent(m.events)

	case RunDoneMsg:
		m.done = true
		m.snapshot = msg.Snapshot
		m.haveSnap = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.done && m.haveSnap {
		return RenderSummary(m.snapshot)
	}
	return fmt.Sprintf("%s Retrieving... queued %d, active %d\n%s\n",
		m.spinner.View(), m.queued, m.active,
		dimStyle.Render("  "+m.current))
}

// ExitCode returns the process exit code implied by the final
// snapshot, or 1 if the run never completed (startup failure).
func (m Model) ExitCode() int {
	if !m.haveSnap {
		return 1
	}
	return m.snapshot.ExitCode
}

// Snapshot returns the final statistics snapshot, if the run completed.
func (m Model) Snapshot() (result.Snapshot, bool) {
	return m.snapshot, m.haveSnap
}
