// Package job defines the typed records for a pending retrieval.
//
// A Job represents one resource retrieval (possibly multi-part). Jobs
// never hold an owning pointer back to their Host; they carry a HostKey
// value and the owner looks the Host up through a registry. This keeps
// the Job/Host/Downloader reference graph acyclic.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HostKey identifies a Host by (scheme, host, port) — the canonical
// scheduling unit. It is a plain value, never a pointer, so Jobs can
// reference their owner without creating a cycle.
type HostKey struct {
	Scheme string
	Host   string
	Port   string
}

// Challenge records a server or proxy auth challenge seen on a prior
// response, cached on the Job so a retry can answer it.
type Challenge struct {
	Scheme string // "Basic" or "Digest"
	Realm  string
	Nonce  string // Digest only
	Opaque string // Digest only
	QOP    string // Digest only
}

// Job represents one resource retrieval.
type Job struct {
	// UUID correlates this Job across stats, TUI events, and the
	// conversion recorder without sharing a pointer across goroutines.
	UUID uuid.UUID

	TargetURL   string // resolved target URL
	OriginalURL string // pre-redirect URL, stable across a redirect chain
	RefererURL  string

	LocalFilename string // "" or a sentinel (e.g. "-") for stdout/discard

	RedirectionDepth int
	RecursionDepth   int

	HeadFirst     bool // issue HEAD before GET
	IsSitemap     bool
	IsRobots      bool
	IgnorePattern bool // bypass accept/reject filters (robots/sitemap jobs)

	ServerChallenge *Challenge
	ProxyChallenge  *Challenge

	Metalink *Metalink // non-nil if this Job is a multi-part retrieval
	Parts    []*Part

	Host HostKey // owning host, looked up through a Registry

	mu     sync.Mutex
	inUse  bool // a worker currently owns this Job ("dequeue on completion")
	queued time.Time
}

// InUse reports whether a worker currently owns this Job. The registry
// sets the flag while holding its global mutex; the flag also has its
// own lock, so it can be read safely without that mutex.
func (j *Job) InUse() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inUse
}

// SetInUse sets the in-use flag.
func (j *Job) SetInUse(v bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inUse = v
}

// New creates a Job for targetURL, queued now.
func New(host HostKey, targetURL string) *Job {
	return &Job{
		UUID:        uuid.New(),
		TargetURL:   targetURL,
		OriginalURL: targetURL,
		Host:        host,
		queued:      time.Now(),
	}
}

// IsMultiPart reports whether this Job has a Metalink descriptor.
func (j *Job) IsMultiPart() bool { return j.Metalink != nil }

// AllPartsDone reports whether every Part of a multi-part Job has
// completed. A Job with no Parts is trivially "done" by this
// definition; callers must check IsMultiPart first.
func (j *Job) AllPartsDone() bool {
	for _, p := range j.Parts {
		if !p.Done() {
			return false
		}
	}
	return true
}
