package hostreg

import (
	"testing"
	"time"

	"github.com/corvaxen/grecurl/job"
)

func testKey() job.HostKey {
	return job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}
}

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry(time.Millisecond, 5, 3)
	h1, created1 := r.GetOrCreate(testKey())
	if !created1 {
		t.Fatal("first GetOrCreate should report created")
	}
	h2, created2 := r.GetOrCreate(testKey())
	if created2 {
		t.Fatal("second GetOrCreate should not report created")
	}
	if h1 != h2 {
		t.Fatal("expected the same Host instance for the same key")
	}
}

func TestRobotsJobPrecedesQueue(t *testing.T) {
	r := NewRegistry(time.Millisecond, 5, 3)
	h, _ := r.GetOrCreate(testKey())

	robots := job.New(testKey(), "http://a.example/robots.txt")
	robots.IsRobots = true
	r.SetRobotsJob(h, robots)

	page := job.New(testKey(), "http://a.example/page")
	r.AddJob(h, page)

	res := r.GetJob(h)
	if res.Status != StatusJob || res.Job != robots {
		t.Fatalf("expected the robots job to be dispatched first, got status=%v job=%v", res.Status, res.Job)
	}

	// The regular queue must stay blocked while the robots job is in
	// flight: no non-robots request may leave the pool before the
	// robots response is fully processed.
	res2 := r.GetJob(h)
	if res2.Status != StatusWait {
		t.Fatalf("expected StatusWait while robots job is in flight, got %v", res2.Status)
	}

	r.CompleteRobotsJob(h)
	res3 := r.GetJob(h)
	if res3.Status != StatusJob || res3.Job != page {
		t.Fatalf("expected the page job after robots completes, got status=%v job=%v", res3.Status, res3.Job)
	}
}

func TestIncreaseFailureFinalFailsAfterTries(t *testing.T) {
	r := NewRegistry(time.Millisecond, 5, 2)
	h, _ := r.GetOrCreate(testKey())
	r.AddJob(h, job.New(testKey(), "http://a.example/x"))

	final, _ := r.IncreaseFailure(h)
	if final {
		t.Fatal("should not be final-failed after one failure with tries=2")
	}
	final, dropped := r.IncreaseFailure(h)
	if !final {
		t.Fatal("should be final-failed after two failures with tries=2")
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped job, got %d", dropped)
	}

	res := r.GetJob(h)
	if res.Status != StatusNone {
		t.Fatalf("final-failed host should yield no jobs, got %v", res.Status)
	}
}

func TestAllIdle(t *testing.T) {
	r := NewRegistry(time.Millisecond, 5, 3)
	if !r.AllIdle() {
		t.Fatal("empty registry should be idle")
	}
	h, _ := r.GetOrCreate(testKey())
	r.AddJob(h, job.New(testKey(), "http://a.example/x"))
	if r.AllIdle() {
		t.Fatal("registry with a queued job should not be idle")
	}
}
