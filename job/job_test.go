package job

import "testing"

func TestPartTryAcquireExcludesConcurrentOwners(t *testing.T) {
	p := &Part{ID: 0, Length: 10}
	if !p.TryAcquire() {
		t.Fatal("first TryAcquire should succeed")
	}
	if p.TryAcquire() {
		t.Fatal("a second TryAcquire while in use should fail")
	}
	p.Release()
	if !p.TryAcquire() {
		t.Fatal("TryAcquire should succeed again after Release")
	}
}

func TestPartMarkDoneClearsInUse(t *testing.T) {
	p := &Part{ID: 0, Length: 10}
	p.TryAcquire()
	p.MarkDone()
	if !p.Done() {
		t.Fatal("expected Done() to report true after MarkDone")
	}
	if p.InUse() {
		t.Fatal("MarkDone should clear the in-use flag")
	}
	if p.TryAcquire() {
		t.Fatal("a done part should not be acquirable")
	}
}

func TestJobAllPartsDone(t *testing.T) {
	j := New(HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/x")
	j.Metalink = &Metalink{Size: 30}
	j.Parts = []*Part{
		{ID: 0, Position: 0, Length: 10},
		{ID: 1, Position: 10, Length: 10},
		{ID: 2, Position: 20, Length: 10},
	}
	if j.AllPartsDone() {
		t.Fatal("a freshly dispatched multi-part job should not be all-done")
	}
	for _, p := range j.Parts {
		p.MarkDone()
	}
	if !j.AllPartsDone() {
		t.Fatal("expected AllPartsDone once every part is marked done")
	}
}

func TestMetalinkSortedMirrorsOrdersByPriority(t *testing.T) {
	m := &Metalink{Mirrors: []Mirror{
		{URL: "http://b.example/f", Priority: 3},
		{URL: "http://a.example/f", Priority: 1},
		{URL: "http://c.example/f", Priority: 2},
	}}
	sorted := m.SortedMirrors()
	if sorted[0].URL != "http://a.example/f" || sorted[1].URL != "http://c.example/f" || sorted[2].URL != "http://b.example/f" {
		t.Fatalf("expected mirrors ordered by ascending priority, got %+v", sorted)
	}
	if len(m.Mirrors) != 3 || m.Mirrors[0].URL != "http://b.example/f" {
		t.Fatal("SortedMirrors must not mutate the original slice")
	}
}

func TestJobNewSetsOriginalURL(t *testing.T) {
	j := New(HostKey{Scheme: "https", Host: "a.example", Port: "443"}, "https://a.example/x")
	if j.OriginalURL != j.TargetURL {
		t.Fatalf("expected OriginalURL to match TargetURL at creation, got %q vs %q", j.OriginalURL, j.TargetURL)
	}
	if j.UUID.String() == "" {
		t.Fatal("expected a non-empty UUID")
	}
}
