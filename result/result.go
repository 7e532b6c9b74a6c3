// Package result provides types and output writers for a retrieval
// run's per-job outcomes and aggregate statistics, plus the process
// exit-status cell (severity.go, exitstatus.go).
package result

// Outcome classifies how a single Job concluded, for the per-job
// debug line and optional outcome log. Per-Job failure is reported
// via statistics and log; it never terminates the worker or other
// Jobs.
type Outcome string

const (
	OutcomeDownload     Outcome = "download"
	OutcomeChunk        Outcome = "chunk"
	OutcomeRedirect     Outcome = "redirect"
	OutcomeNotModified  Outcome = "not_modified"
	OutcomeError        Outcome = "error"
	OutcomeRobotsSkip   Outcome = "robots_skip"
	OutcomePatternSkip  Outcome = "pattern_skip"
	OutcomeRedirectSkip Outcome = "redirect_skip"
)

// JobResult is the result of processing a single Job, recorded into
// Stats and optionally surfaced in a per-job log.
type JobResult struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
}

// Record folds res into the run's aggregate Stats and, if res carries
// a reportable ErrorKind, into the exit-status cell.
func Record(stats *Stats, exit *ExitStatus, res JobResult) {
	switch res.Outcome {
	case OutcomeDownload:
		stats.Downloads.Add(1)
		stats.TotalBytes.Add(res.Bytes)
	case OutcomeChunk:
		stats.Chunks.Add(1)
		stats.TotalBytes.Add(res.Bytes)
	case OutcomeRedirect:
		stats.Redirects.Add(1)
	case OutcomeNotModified:
		stats.NotModified.Add(1)
	case OutcomeError:
		stats.Errors.Add(1)
		exit.ReportKind(res.ErrorKind)
	case OutcomeRobotsSkip:
		stats.RobotsSkip.Add(1)
	case OutcomePatternSkip:
		stats.PatternSkip.Add(1)
	case OutcomeRedirectSkip:
		stats.RedirectSkip.Add(1)
	}
}
