package job

import "sync"

// Part is a byte range of a multi-part Job. Parts share their Job's
// integrity descriptor; the Job completes only once every Part is
// Done and the whole-file checksum verifies.
type Part struct {
	ID       int
	Position int64
	Length   int64

	mu    sync.Mutex
	done  bool
	inUse bool // a worker currently owns this Part

	MirrorURL string // which mirror most recently served this part
}

// Done reports whether this Part has completed successfully.
func (p *Part) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// MarkDone transitions the Part to done:true. It clears InUse as part
// of the same transition so callers never observe inUse:true,done:true.
func (p *Part) MarkDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.inUse = false
}

// TryAcquire attempts the inuse:false -> true transition a worker
// performs on pickup. Returns false if the part is already in use or
// already done.
func (p *Part) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || p.inUse {
		return false
	}
	p.inUse = true
	return true
}

// Release performs the inuse:true -> false transition on a retryable
// failure, returning the part to the pool without marking it done.
func (p *Part) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse = false
}

// InUse reports whether a worker currently owns this Part.
func (p *Part) InUse() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
