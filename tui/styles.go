package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/corvaxen/grecurl/result"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// RenderSummary produces a Lip Gloss styled end-of-run report from a
// run's final statistics Snapshot.
func RenderSummary(snap result.Snapshot) string {
	var b strings.Builder

	if snap.ExitCode == 0 {
		b.WriteString(successStyle.Render("Run complete"))
	} else {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Run complete, exit code %d", snap.ExitCode)))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Downloaded"))
	b.WriteString(fmt.Sprintf(" %d files, %d bytes\n", snap.Downloads, snap.TotalBytes))
	b.WriteString(fmt.Sprintf("Redirects: %d (skipped %d)\n", snap.Redirects, snap.RedirectSkip))
	b.WriteString(fmt.Sprintf("Not modified: %d\n", snap.NotModified))
	b.WriteString(fmt.Sprintf("Chunks: %d\n", snap.Chunks))

	if snap.Errors > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Errors: %d", snap.Errors)))
		b.WriteString("\n")
	} else {
		b.WriteString("Errors: 0\n")
	}

	b.WriteString(fmt.Sprintf("Skipped: %d robots, %d pattern\n", snap.RobotsSkip, snap.PatternSkip))
	b.WriteString(titleStyle.Render(fmt.Sprintf("Elapsed: %s", snap.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	return b.String()
}
