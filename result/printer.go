package result

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// PrintJobLine writes a single debug line for one job outcome,
// covering robots/pattern rejections and the general per-job log. The outcome
// tag is colored unless fatih/color has turned color off; that package
// decides from whether stdout is a terminal, not from w.
func PrintJobLine(w io.Writer, res JobResult) {
	switch res.Outcome {
	case OutcomeError:
		color.New(color.FgRed, color.Bold).Fprint(w, "ERROR ")
		fmt.Fprintf(w, "%s: %s (%s)\n", res.URL, res.Error, res.ErrorKind)
	case OutcomeRobotsSkip:
		color.New(color.FgYellow).Fprint(w, "SKIP  ")
		fmt.Fprintf(w, "%s: disallowed by robots.txt\n", res.URL)
	case OutcomePatternSkip:
		color.New(color.FgYellow).Fprint(w, "SKIP  ")
		fmt.Fprintf(w, "%s: rejected by accept/reject pattern\n", res.URL)
	case OutcomeRedirectSkip:
		color.New(color.FgYellow).Fprint(w, "SKIP  ")
		fmt.Fprintf(w, "%s: redirect target rejected by host policy\n", res.URL)
	case OutcomeNotModified:
		color.New(color.FgCyan).Fprint(w, "304   ")
		fmt.Fprintf(w, "%s\n", res.URL)
	case OutcomeRedirect:
		color.New(color.FgBlue).Fprint(w, "REDIR ")
		fmt.Fprintf(w, "%s -> %d\n", res.URL, res.StatusCode)
	default:
		color.New(color.FgGreen).Fprint(w, "OK    ")
		fmt.Fprintf(w, "%s (%d bytes)\n", res.URL, res.Bytes)
	}
}
