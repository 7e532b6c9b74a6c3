package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/corvaxen/grecurl/engine"
	"github.com/corvaxen/grecurl/result"
)

// ProgressMsg reports the latest admitted Job for the live view.
type ProgressMsg struct {
	Queued int
	Active int
	URL    string
}

// RunDoneMsg signals that Engine.Run has returned.
type RunDoneMsg struct {
	Snapshot result.Snapshot
	Err      error
}

// waitForEvent returns a tea.Cmd that reads one Event from ch. When
// the channel closes (Engine.Run closes it once the worker pool
// drains), it returns nil: the final RunDoneMsg comes from the
// separate startRun command, not from this one.
func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return ProgressMsg{
			Queued: evt.Queued,
			Active: evt.Active,
			URL:    evt.URL,
		}
	}
}
