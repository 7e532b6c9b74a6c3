package engine

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/corvaxen/grecurl/admission"
	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/fingerprint"
	"github.com/corvaxen/grecurl/hostreg"
	"github.com/corvaxen/grecurl/policy"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/statestore"
	"github.com/corvaxen/grecurl/urlutil"
)

func newTestAdmitter(cfg *config.Runtime) *Admitter {
	reg := hostreg.NewRegistry(time.Millisecond, 5, 3)
	filters := &policy.Filters{}
	filters.Compile()
	return NewAdmitter(cfg, reg, fingerprint.New(), filters, admission.Noop{}, result.NewStats(), zap.NewNop())
}

func TestAdmitIdempotent(t *testing.T) {
	cfg := &config.Runtime{Recursive: true}
	a := newTestAdmitter(cfg)

	j1, ok1, err := a.Admit(Candidate{RawURL: "http://a.example/page"})
	if err != nil || !ok1 || j1 == nil {
		t.Fatalf("first admission should succeed, got job=%v ok=%v err=%v", j1, ok1, err)
	}

	j2, ok2, err := a.Admit(Candidate{RawURL: "http://a.example/page"})
	if err != nil {
		t.Fatalf("second admission errored: %v", err)
	}
	if ok2 || j2 != nil {
		t.Fatalf("duplicate URL should be silently dropped, got job=%v ok=%v", j2, ok2)
	}
}

func TestAdmitRejectsNonHTTPScheme(t *testing.T) {
	a := newTestAdmitter(&config.Runtime{})
	j, ok, err := a.Admit(Candidate{RawURL: "ftp://a.example/file"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("ftp scheme should be silently dropped, got job=%v ok=%v", j, ok)
	}
}

func TestAdmitHTTPSOnlyDropsPlainHTTP(t *testing.T) {
	a := newTestAdmitter(&config.Runtime{HTTPSOnly: true})
	j, ok, err := a.Admit(Candidate{RawURL: "http://a.example/page"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("--https-only should drop a plain http candidate, got job=%v ok=%v", j, ok)
	}
}

func TestAdmitUpgradesHSTSKnownHost(t *testing.T) {
	a := newTestAdmitter(&config.Runtime{})
	store, err := statestore.NewHSTSStore("")
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	store.Observe("a.example", time.Hour, false)
	a.HSTS = store

	j, ok, err := a.Admit(Candidate{RawURL: "http://a.example/page"})
	if err != nil || !ok || j == nil {
		t.Fatalf("admission should succeed, got job=%v ok=%v err=%v", j, ok, err)
	}
	if j.TargetURL != "https://a.example/page" {
		t.Fatalf("expected scheme upgraded to https before any socket opens, got %s", j.TargetURL)
	}
}

func TestAdmitDomainFilterRejectsOutOfScopeHost(t *testing.T) {
	cfg := &config.Runtime{Recursive: true}
	a := newTestAdmitter(cfg)
	a.Filters.Domains = []string{"a.example"}
	a.Filters.Compile()

	j, ok, err := a.Admit(Candidate{RawURL: "http://b.example/page"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("host outside --domains should be dropped, got job=%v ok=%v", j, ok)
	}
}

func TestAdmitSpanHostsOffRejectsForeignHost(t *testing.T) {
	cfg := &config.Runtime{Recursive: true}
	a := newTestAdmitter(cfg)
	seed, err := urlutil.ParseIRI("http://a.example/", nil)
	if err != nil {
		t.Fatalf("seed parse: %v", err)
	}
	a.AddSeed(seed)

	j, ok, err := a.Admit(Candidate{RawURL: "http://b.example/page"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("without --span-hosts a foreign host should be dropped, got job=%v ok=%v", j, ok)
	}
}

func TestAdmitNoParentRequiresSeedPrefix(t *testing.T) {
	cfg := &config.Runtime{Recursive: true, NoParent: true}
	a := newTestAdmitter(cfg)
	seed, err := urlutil.ParseIRI("http://a.example/docs/start.html", nil)
	if err != nil {
		t.Fatalf("seed parse: %v", err)
	}
	a.AddSeed(seed)

	j, ok, err := a.Admit(Candidate{RawURL: "http://a.example/docs/sub/page.html"})
	if err != nil || !ok || j == nil {
		t.Fatalf("path under the seed directory should be admitted, got job=%v ok=%v err=%v", j, ok, err)
	}

	j, ok, err = a.Admit(Candidate{RawURL: "http://a.example/other/page.html"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("--no-parent should drop a path outside the seed directory, got job=%v ok=%v", j, ok)
	}
}

func TestAdmitHeadFirstForPatternProbe(t *testing.T) {
	cfg := &config.Runtime{Recursive: true}
	a := newTestAdmitter(cfg)
	a.Filters.Accept = []string{"*.pdf"}
	a.Filters.Compile()

	j, ok, err := a.Admit(Candidate{RawURL: "http://a.example/downloads/", IgnorePattern: true})
	if err != nil || !ok || j == nil {
		t.Fatalf("admission failed: job=%v ok=%v err=%v", j, ok, err)
	}
	if !j.HeadFirst {
		t.Errorf("extension-less path with accept patterns configured should probe with HEAD first")
	}

	j, ok, err = a.Admit(Candidate{RawURL: "http://a.example/paper.pdf"})
	if err != nil || !ok || j == nil {
		t.Fatalf("admission failed: job=%v ok=%v err=%v", j, ok, err)
	}
	if j.HeadFirst {
		t.Errorf("a path the patterns can already decide on should not need a HEAD probe")
	}
}

func TestAdmitRobotsDisallowedPathDropped(t *testing.T) {
	cfg := &config.Runtime{Recursive: true}
	a := newTestAdmitter(cfg)

	// Admit a seed first so the host exists and a robots policy can be
	// installed on it before the disallowed path is offered.
	seedJob, ok, err := a.Admit(Candidate{RawURL: "http://a.example/seed"})
	if err != nil || !ok || seedJob == nil {
		t.Fatalf("seed admission failed: job=%v ok=%v err=%v", seedJob, ok, err)
	}
	host, found := a.Registry.Lookup(seedJob.Host)
	if !found {
		t.Fatalf("expected host to be registered")
	}
	a.Registry.SetRobots(host, hostreg.NewRobotsPolicy(func(path string) bool {
		return path != "/private"
	}, nil))

	j, ok, err := a.Admit(Candidate{RawURL: "http://a.example/private"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || j != nil {
		t.Fatalf("robots-disallowed path should be dropped, got job=%v ok=%v", j, ok)
	}
}
