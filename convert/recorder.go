package convert

import "sync"

// Recorder accumulates conversion Entries across the whole run. It is
// written to from many worker goroutines during parsing and read once
// from the single-threaded terminal rewrite phase, so it keeps its
// own mutex rather than relying on a caller-provided lock.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends e. Entries with no offsets are still recorded (e.g.
// a page with no links at all); Rewrite skips them.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns a snapshot copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports how many documents have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
