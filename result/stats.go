package result

import (
	"sync/atomic"
	"time"
)

// Stats holds the run's aggregate statistics counters, updated via
// atomic add from worker goroutines and read once at shutdown for
// the --stats report.
type Stats struct {
	Downloads    atomic.Int64
	Redirects    atomic.Int64
	NotModified  atomic.Int64
	Errors       atomic.Int64
	Chunks       atomic.Int64
	TotalBytes   atomic.Int64
	RedirectSkip atomic.Int64 // dropped redirects (span-hosts/domains policy)
	RobotsSkip   atomic.Int64
	PatternSkip  atomic.Int64

	Started time.Time
}

// NewStats returns a zeroed Stats with Started set to now.
func NewStats() *Stats {
	return &Stats{Started: time.Now()}
}

// Snapshot is the JSON/CSV/YAML-serializable view of Stats taken at a
// point in time.
type Snapshot struct {
	Downloads    int64         `json:"downloads" yaml:"downloads"`
	Redirects    int64         `json:"redirects" yaml:"redirects"`
	NotModified  int64         `json:"not_modified" yaml:"not_modified"`
	Errors       int64         `json:"errors" yaml:"errors"`
	Chunks       int64         `json:"nchunks" yaml:"nchunks"`
	TotalBytes   int64         `json:"total_bytes" yaml:"total_bytes"`
	RedirectSkip int64         `json:"redirect_skipped" yaml:"redirect_skipped"`
	RobotsSkip   int64         `json:"robots_skipped" yaml:"robots_skipped"`
	PatternSkip  int64         `json:"pattern_skipped" yaml:"pattern_skipped"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	ExitCode     int           `json:"exit_code" yaml:"exit_code"`
}

// Snapshot takes a consistent-enough read of the counters for
// reporting purposes; individual fields may still be advancing
// concurrently but each field read is itself atomic.
func (s *Stats) Snapshot(exit *ExitStatus) Snapshot {
	return Snapshot{
		Downloads:    s.Downloads.Load(),
		Redirects:    s.Redirects.Load(),
		NotModified:  s.NotModified.Load(),
		Errors:       s.Errors.Load(),
		Chunks:       s.Chunks.Load(),
		TotalBytes:   s.TotalBytes.Load(),
		RedirectSkip: s.RedirectSkip.Load(),
		RobotsSkip:   s.RobotsSkip.Load(),
		PatternSkip:  s.PatternSkip.Load(),
		Duration:     time.Since(s.Started),
		ExitCode:     exit.Code(),
	}
}
