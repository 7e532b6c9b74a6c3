package hostreg

import (
	"sync"
	"time"

	"github.com/corvaxen/grecurl/job"
)

// JobStatus is the three-way result of GetJob: a ready Job, a
// "come back later" wait, or nothing left for this Host.
type JobStatus int

const (
	// StatusNone means the Host's queue is empty.
	StatusNone JobStatus = iota
	// StatusJob means Job is ready to dispatch.
	StatusJob
	// StatusWait means the caller should wait WaitFor before asking
	// again (the Host is in a retry back-off window).
	StatusWait
)

// JobResult is the return value of Registry.GetJob.
type JobResult struct {
	Status  JobStatus
	Job     *job.Job
	WaitFor time.Duration
}

// Registry maps (scheme, host, port) to a Host. All operations are
// guarded by one mutex: readers and writers serialize on it, but it
// is held only around queue manipulation, never during network I/O.
type Registry struct {
	mu    sync.Mutex
	hosts map[job.HostKey]*Host

	// WaitRetry/MaxBackoffMul/Tries configure IncreaseFailure's back-off
	// and final-failure policy.
	WaitRetry     time.Duration
	MaxBackoffMul int // failures are capped at this multiplier
	Tries         int // consecutive failures before final-failed
}

// NewRegistry creates an empty Registry with the given back-off
// policy.
func NewRegistry(waitRetry time.Duration, maxBackoffMul, tries int) *Registry {
	return &Registry{
		hosts:         make(map[job.HostKey]*Host),
		WaitRetry:     waitRetry,
		MaxBackoffMul: maxBackoffMul,
		Tries:         tries,
	}
}

// GetOrCreate returns the Host for key, creating it if absent. created
// reports whether this call created the Host — the caller uses this to
// decide whether to enqueue a synthetic robots.txt Job first.
func (r *Registry) GetOrCreate(key job.HostKey) (h *Host, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hosts[key]; ok {
		return h, false
	}
	h = newHost(key)
	r.hosts[key] = h
	return h, true
}

// Lookup returns the Host for key without creating it.
func (r *Registry) Lookup(key job.HostKey) (*Host, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[key]
	return h, ok
}

// SetRobotsJob records j as the in-flight robots.txt Job for h,
// blocking all other Jobs on h from GetJob until it completes.
func (r *Registry) SetRobotsJob(h *Host, j *job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.robotsJob = j
}

// CompleteRobotsJob clears the in-flight robots Job marker, unblocking
// the rest of h's queue.
func (r *Registry) CompleteRobotsJob(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.robotsJob = nil
}

// SetRobots installs h's compiled robots.txt policy under the
// registry's mutex, since Host fields are otherwise only ever touched
// while it is held.
func (r *Registry) SetRobots(h *Host, policy RobotsPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.Robots = policy
}

// AddJob appends j to h's queue. No worker is signalled; idle workers
// in the engine package poll the registry and pick the Job up on their
// next scan.
func (r *Registry) AddJob(h *Host, j *job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.queue = append(h.queue, j)
}

// ReleaseJob returns j to the head of h's queue, used on connection
// abort so in-flight work is not lost.
func (r *Registry) ReleaseJob(h *Host, j *job.Job) {
	r.ReleaseJobs(h, []*job.Job{j})
}

// ReleaseJobs returns all of jobs to the head of h's queue, in order,
// used when a worker's connection aborts with several pending
// requests in flight (HTTP/2 multiplexing).
func (r *Registry) ReleaseJobs(h *Host, jobs []*job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		j.SetInUse(false)
	}
	h.queue = append(append([]*job.Job{}, jobs...), h.queue...)
}

// GetJob selects the next ready Job for h: if h is in
// a back-off window, return StatusWait; if a robots Job is pending for
// h, return it (blocking the rest of the queue); otherwise pop the
// head Job.
func (r *Registry) GetJob(h *Host) JobResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.finalFailed {
		return JobResult{Status: StatusNone}
	}

	if !h.nextEligible.IsZero() {
		if d := time.Until(h.nextEligible); d > 0 {
			return JobResult{Status: StatusWait, WaitFor: d}
		}
	}

	if h.robotsJob != nil {
		// The robots Job is not stored in the FIFO; it precedes every
		// other Job on this Host.
		if h.robotsJob.InUse() {
			return JobResult{Status: StatusWait, WaitFor: 10 * time.Millisecond}
		}
		h.robotsJob.SetInUse(true)
		h.activeWorkers++
		return JobResult{Status: StatusJob, Job: h.robotsJob}
	}

	if len(h.queue) == 0 {
		return JobResult{Status: StatusNone}
	}

	j := h.queue[0]
	h.queue = h.queue[1:]
	j.SetInUse(true)
	h.activeWorkers++
	return JobResult{Status: StatusJob, Job: j}
}

// ReleaseWorker decrements the Host's bound-worker count, called when
// a worker finishes processing a Job (success or terminal failure) and
// is no longer occupying this Host.
func (r *Registry) ReleaseWorker(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.activeWorkers > 0 {
		h.activeWorkers--
	}
}

// IncreaseFailure increments h's failure counter, sets its back-off
// window, and marks it final-failed after Tries consecutive failures
// — dropping the remaining queue.
func (r *Registry) IncreaseFailure(h *Host) (finalFailed bool, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.failures++
	mul := h.failures
	if r.MaxBackoffMul > 0 && mul > r.MaxBackoffMul {
		mul = r.MaxBackoffMul
	}
	h.nextEligible = time.Now().Add(r.WaitRetry * time.Duration(mul))

	if r.Tries > 0 && h.failures >= r.Tries {
		h.finalFailed = true
		dropped = len(h.queue)
		h.queue = nil
	}
	return h.finalFailed, dropped
}

// ResetFailure clears h's failure counter and back-off window, called
// on any success.
func (r *Registry) ResetFailure(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.failures = 0
	h.nextEligible = time.Time{}
}

// AllIdle reports whether every registered Host is idle, the
// per-registry half of the global quiescence test.
func (r *Registry) AllIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hosts {
		if !h.Idle() {
			return false
		}
	}
	return true
}

// Hosts returns a snapshot slice of all registered Hosts, for
// diagnostics and the TUI.
func (r *Registry) Hosts() []*Host {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, h)
	}
	return out
}
