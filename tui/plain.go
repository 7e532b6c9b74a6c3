package tui

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/corvaxen/grecurl/engine"
	"github.com/corvaxen/grecurl/result"
)

// IsInteractive reports whether stdout is a terminal capable of
// hosting the full-screen Bubble Tea program. Non-interactive runs
// (CI logs, redirected output, a piped -O -) fall back to RunPlain's
// line-oriented progress bar instead of drawing over a terminal that
// isn't there.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// RunPlain drives eng.Run to completion, rendering a single spinner
// line to stderr instead of the full-screen Bubble Tea program, for
// pipes and non-TTY terminals.
func RunPlain(ctx context.Context, eng *engine.Engine, events <-chan engine.Event) (result.Snapshot, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("retrieving"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range events {
			_ = bar.Add(1)
		}
	}()

	runErr := eng.Run(ctx)
	<-drained
	_ = bar.Finish()

	snap := eng.Stats.Snapshot(eng.Exit)
	printPlainSummary(snap)
	return snap, runErr
}

// printPlainSummary writes a single colored summary line to stderr,
// green on a clean exit and red otherwise.
func printPlainSummary(snap result.Snapshot) {
	c := color.New(color.FgGreen)
	if snap.ExitCode != 0 {
		c = color.New(color.FgRed, color.Bold)
	}
	_, _ = c.Fprintf(os.Stderr, "done: %d downloaded, %d redirects, %d errors, %d bytes, exit %d\n",
		snap.Downloads, snap.Redirects, snap.Errors, snap.TotalBytes, snap.ExitCode)
}
