package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/corvaxen/grecurl/engine"
	"github.com/corvaxen/grecurl/result"
)

func TestNewModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan engine.Event, 10)
	var eng *engine.Engine // zero value is fine: Init/startRun are not invoked in this test

	model := NewModel(ctx, cancel, eng, events)

	if model.ctx != ctx {
		t.Error("expected ctx to be stored in model")
	}
	if model.cancel == nil {
		t.Error("expected cancel to be stored in model")
	}
	if model.eng != eng {
		t.Error("expected engine to be stored in model")
	}
	if model.events == nil {
		t.Error("expected events channel to be stored in model")
	}
	if model.queued != 0 || model.active != 0 {
		t.Error("expected initial counters to be zero")
	}
	if model.done {
		t.Error("expected done to be false initially")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		model    Model
		wantCode int
	}{
		{name: "no snapshot yet", model: Model{}, wantCode: 1},
		{name: "clean exit", model: Model{haveSnap: true, snapshot: result.Snapshot{ExitCode: 0}}, wantCode: 0},
		{name: "error exit", model: Model{haveSnap: true, snapshot: result.Snapshot{ExitCode: 4}}, wantCode: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.ExitCode(); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	snap := result.Snapshot{Downloads: 3, ExitCode: 0}
	model := Model{haveSnap: true, snapshot: snap}

	got, ok := model.Snapshot()
	if !ok {
		t.Fatal("expected ok=true when a snapshot is present")
	}
	if got != snap {
		t.Errorf("Snapshot() = %+v, want %+v", got, snap)
	}

	empty := Model{}
	if _, ok := empty.Snapshot(); ok {
		t.Error("expected ok=false when no snapshot has been recorded")
	}
}

func TestRenderSummary_Success(t *testing.T) {
	snap := result.Snapshot{
		Downloads:  10,
		TotalBytes: 2048,
		Duration:   2 * time.Second,
		ExitCode:   0,
	}
	output := RenderSummary(snap)
	if !strings.Contains(output, "Run complete") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "10") {
		t.Errorf("expected download count in output, got: %s", output)
	}
}

func TestRenderSummary_WithErrors(t *testing.T) {
	snap := result.Snapshot{
		Downloads: 5,
		Errors:    2,
		ExitCode:  4,
	}
	output := RenderSummary(snap)
	if !strings.Contains(output, "exit code 4") {
		t.Errorf("expected exit code in summary, got: %s", output)
	}
	if !strings.Contains(output, "Errors: 2") {
		t.Errorf("expected error count in output, got: %s", output)
	}
}

func TestUpdate_ProgressMsg(t *testing.T) {
	model := Model{
		events: make(chan engine.Event, 10),
	}

	msg := ProgressMsg{Queued: 5, Active: 2, URL: "https://example.com/page"}
	updatedModel, cmd := model.Update(msg)
	updated := updatedModel.(Model)

	if updated.queued != 5 {
		t.Errorf("expected queued=5, got %d", updated.queued)
	}
	if updated.active != 2 {
		t.Errorf("expected active=2, got %d", updated.active)
	}
	if updated.current != "https://example.com/page" {
		t.Errorf("expected current URL to be set, got %s", updated.current)
	}
	if cmd == nil {
		t.Error("expected non-nil cmd to re-subscribe to the event channel")
	}
}

func TestUpdate_RunDoneMsg(t *testing.T) {
	model := Model{}
	snap := result.Snapshot{Downloads: 10, ExitCode: 0}

	updatedModel, _ := model.Update(RunDoneMsg{Snapshot: snap})
	updated := updatedModel.(Model)

	if !updated.done {
		t.Error("expected done=true after RunDoneMsg")
	}
	if !updated.haveSnap {
		t.Error("expected haveSnap=true after RunDoneMsg")
	}
	if updated.snapshot != snap {
		t.Error("expected snapshot to be stored")
	}
}

func TestUpdate_SpinnerTickMsg(t *testing.T) {
	model := Model{}
	// Send a spinner tick -- should not panic and should return a command.
	updatedModel, _ := model.Update(spinner.TickMsg{})
	_ = updatedModel.(Model) // should not panic
}

func TestUpdate_WindowSizeMsg(t *testing.T) {
	model := Model{}
	updatedModel, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	updated := updatedModel.(Model)

	if updated.width != 120 {
		t.Errorf("expected width=120, got %d", updated.width)
	}
}

func TestView_InProgress(t *testing.T) {
	model := Model{
		queued:  3,
		active:  1,
		current: "https://example.com/checking",
	}
	output := model.View()
	if !strings.Contains(output, "Retrieving") {
		t.Errorf("expected 'Retrieving' in progress view, got: %s", output)
	}
	if !strings.Contains(output, "3") {
		t.Errorf("expected queued count in view, got: %s", output)
	}
}

func TestView_DoneWithResult(t *testing.T) {
	model := Model{
		done:     true,
		haveSnap: true,
		snapshot: result.Snapshot{Downloads: 5, Duration: time.Second},
	}
	output := model.View()
	if !strings.Contains(output, "Run complete") {
		t.Errorf("expected success message in done view, got: %s", output)
	}
}

func TestView_DoneWithError(t *testing.T) {
	model := Model{
		done: true,
		err:  context.Canceled,
	}
	output := model.View()
	if !strings.Contains(output, "Error") {
		t.Errorf("expected error message in done view, got: %s", output)
	}
}
