// Package hostreg implements the Host Registry: the canonical unit of
// network scheduling, keyed by (scheme, host, port). One global mutex
// guards the registry and every Host's queue, matching the package's
// concurrency model (workers acquire it only around queue
// manipulation, never during network I/O).
package hostreg

import (
	"time"

	"github.com/corvaxen/grecurl/job"
)

// RobotsPolicy holds the parsed robots.txt rules for a Host: a
// matcher function (backed by temoto/robotstxt's longest-match Group
// resolution in package parse) plus any sitemap URLs it advertised.
type RobotsPolicy struct {
	test     func(path string) bool
	Sitemaps []string
	Loaded   bool
}

// NewRobotsPolicy wraps a compiled robots.txt group-test function
// (e.g. (*robotstxt.Group).Test) into a RobotsPolicy.
func NewRobotsPolicy(test func(path string) bool, sitemaps []string) RobotsPolicy {
	return RobotsPolicy{test: test, Sitemaps: sitemaps, Loaded: true}
}

// Allowed reports whether path is permitted. An unloaded policy (no
// robots.txt fetched yet, or the fetch failed and was treated as
// allow-all) permits everything.
func (p *RobotsPolicy) Allowed(path string) bool {
	if p == nil || !p.Loaded || p.test == nil {
		return true
	}
	return p.test(path)
}

// Host is the canonical per-host entry: a FIFO of ready Jobs, the
// robots policy, failure/back-off bookkeeping, and a reference to the
// in-flight robots Job while it is pending.
type Host struct {
	Key job.HostKey

	Robots RobotsPolicy

	queue []*job.Job

	robotsJob *job.Job // non-nil while the synthetic /robots.txt Job is in flight

	failures      int
	nextEligible  time.Time
	finalFailed   bool
	activeWorkers int // workers currently bound to this Host
}

// newHost constructs an idle Host for key.
func newHost(key job.HostKey) *Host {
	return &Host{Key: key}
}

// Idle reports whether the Host has no queued work and no bound
// worker — the per-Host component of the global quiescence test.
func (h *Host) Idle() bool {
	return len(h.queue) == 0 && h.activeWorkers == 0 && h.robotsJob == nil
}

// FinalFailed reports whether the Host has been marked as permanently
// failed (tries consecutive failures reached) and will accept no more
// dispatches.
func (h *Host) FinalFailed() bool { return h.finalFailed }

// Failures returns the current consecutive-failure count.
func (h *Host) Failures() int { return h.failures }
