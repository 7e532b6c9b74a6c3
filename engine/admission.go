package engine

import (
	"fmt"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/corvaxen/grecurl/admission"
	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/fingerprint"
	"github.com/corvaxen/grecurl/hostreg"
	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/policy"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/statestore"
	"github.com/corvaxen/grecurl/urlutil"
)

// Candidate is one URL offered to Admit: a seed, a redirect Location,
// or a link discovered by a parser.
type Candidate struct {
	RawURL string
	Base   *urlutil.IRI

	RefererURL     string
	RecursionDepth int

	IsRedirect       bool
	RedirectionDepth int

	// IgnorePattern bypasses accept/reject filters, for the synthetic
	// robots.txt/sitemap jobs the registry enqueues internally.
	IgnorePattern bool
	IsSitemap     bool
	IsRobots      bool
}

// Admitter runs the job admission pipeline against the shared
// scheduling state: parse, plugin hook, scheme restriction, dedup,
// host and pattern filters, host creation, job construction, enqueue.
type Admitter struct {
	Config      *config.Runtime
	Registry    *hostreg.Registry
	Fingerprint fingerprint.Set
	Filters     *policy.Filters
	Plugin      admission.Plugin
	Stats       *result.Stats
	Logger      *zap.Logger

	// HSTS upgrades an http:// candidate to https:// before it is
	// deduplicated or enqueued. May be nil when --hsts is off.
	HSTS *statestore.HSTSStore

	// SeedDirs is every seed URL's IRI, used for the --no-parent rule.
	SeedDirs []*urlutil.IRI
	// SeedHosts is the set of hosts discovered from the seed list, used
	// for the span-hosts rule.
	SeedHosts map[string]bool
}

// NewAdmitter builds an Admitter. plugin may be nil, in which case
// admission.Noop{} is used.
func NewAdmitter(cfg *config.Runtime, reg *hostreg.Registry, fp fingerprint.Set, filters *policy.Filters, plugin admission.Plugin, stats *result.Stats, logger *zap.Logger) *Admitter {
	if plugin == nil {
		plugin = admission.Noop{}
	}
	return &Admitter{
		Config:      cfg,
		Registry:    reg,
		Fingerprint: fp,
		Filters:     filters,
		Plugin:      plugin,
		Stats:       stats,
		Logger:      logger,
		SeedHosts:   make(map[string]bool),
	}
}

// AddSeed records seed as part of the seed domain/directory set used
// by steps 5 (span-hosts, no-parent).
func (a *Admitter) AddSeed(seed *urlutil.IRI) {
	a.SeedDirs = append(a.SeedDirs, seed)
	a.SeedHosts[seed.Host] = true
}

// Admit runs the full pipeline for one Candidate. It returns (job,
// true, nil) on success, (nil, false, nil) for a silent drop (already
// seen, filtered, disallowed scheme, etc.), and (nil, false, err) only
// for step 1's "cannot resolve URI" failure, which the caller reports
// at ParseInit severity for a seed URL and simply logs for a discovered
// link.
func (a *Admitter) Admit(c Candidate) (*job.Job, bool, error) {
	// Step 1: parse.
	iri, err := urlutil.ParseIRI(c.RawURL, c.Base)
	if err != nil {
		return nil, false, fmt.Errorf("cannot resolve URI: %w", err)
	}

	// Step 2: plugin pipeline.
	parsed, perr := url.Parse(iri.String())
	if perr == nil {
		action, substitute := a.Plugin.Decide(parsed)
		switch action {
		case admission.Reject:
			return nil, false, nil
		case admission.Substitute:
			if substitute == nil {
				return nil, false, nil
			}
			reIRI, err := urlutil.ParseIRI(substitute.String(), nil)
			if err != nil {
				return nil, false, nil
			}
			iri = reIRI
		}
	}

	// Step 3: scheme restriction.
	if iri.Scheme != "http" && iri.Scheme != "https" {
		return nil, false, nil
	}
	if iri.Scheme == "http" && a.HSTS != nil && a.HSTS.ShouldUpgrade(iri.Host) {
		iri = upgradeScheme(iri)
	}
	if a.Config.HTTPSOnly && iri.Scheme == "http" {
		return nil, false, nil
	}

	// Step 4: fingerprint dedup.
	if !a.Fingerprint.InsertIfAbsent(iri.String()) {
		return nil, false, nil
	}

	// Step 5: host filters (recursive mode only).
	if a.Config.Recursive && !c.IgnorePattern {
		if !a.Config.SpanHosts && len(a.SeedHosts) > 0 && !a.SeedHosts[iri.Host] {
			return nil, false, nil
		}
		if len(a.Filters.ExcludeDomains) > 0 && !a.Filters.AllowHost(iri.Host) {
			return nil, false, nil
		}
		if len(a.Filters.Domains) > 0 && !a.Filters.AllowHost(iri.Host) {
			return nil, false, nil
		}
		if a.Config.NoParent && len(a.SeedDirs) > 0 && !urlutil.UnderParent(iri, a.SeedDirs) {
			return nil, false, nil
		}
	}

	// Step 6: pattern filters, unless bypassed.
	if !c.IgnorePattern && a.Filters != nil {
		if !a.Filters.AllowPath(iri.Path) {
			a.skip(result.OutcomePatternSkip, iri.String(), "pattern-rejected")
			return nil, false, nil
		}
	}

	// Step 7: obtain/create Host; enqueue its robots Job first.
	hostKey := job.HostKey{Scheme: iri.Scheme, Host: iri.Host, Port: iri.EffectivePort()}
	host, created := a.Registry.GetOrCreate(hostKey)
	if created && a.Config.Recursive && !c.IsRobots {
		robotsJob := a.newRobotsJob(hostKey, iri)
		a.Registry.SetRobotsJob(host, robotsJob)
	}
	if !c.IsRobots && !c.IgnorePattern && !host.Robots.Allowed(iri.Path) {
		a.skip(result.OutcomeRobotsSkip, iri.String(), "robots-disallowed")
		return nil, false, nil
	}

	// Step 8: build the Job.
	j := job.New(hostKey, iri.String())
	j.RefererURL = c.RefererURL
	j.RecursionDepth = c.RecursionDepth
	j.IsSitemap = c.IsSitemap
	j.IsRobots = c.IsRobots
	j.IgnorePattern = c.IgnorePattern
	if c.IsRedirect {
		j.RedirectionDepth = c.RedirectionDepth
	}
	j.HeadFirst = a.headFirst(iri)
	j.LocalFilename = localFilename(a.Config, iri)

	// Step 9: append to host queue.
	a.Registry.AddJob(host, j)
	return j, true, nil
}

// skip records a silently-dropped Candidate into Stats and, if a
// Logger is configured, emits a debug line naming the reason.
// Robots-disallowed and pattern-rejected URLs are never errors.
func (a *Admitter) skip(outcome result.Outcome, rawURL, reason string) {
	if a.Stats != nil {
		result.Record(a.Stats, nil, result.JobResult{URL: rawURL, Outcome: outcome})
	}
	if a.Logger != nil {
		a.Logger.Debug(reason, zap.String("url", rawURL))
	}
}

// headFirst decides whether to issue HEAD before GET: spider mode,
// chunked retrieval, or when a content-type check must precede a
// pattern decision.
func (a *Admitter) headFirst(iri *urlutil.IRI) bool {
	if a.Config.Spider {
		return true
	}
	if a.Config.ChunkSize > 0 {
		return true
	}
	// With accept/reject patterns configured, an extension-less path
	// gives the filename match nothing conclusive to work with; probe
	// the content-type before committing to a full GET.
	if a.Filters != nil && (len(a.Filters.Accept) > 0 || len(a.Filters.Reject) > 0) {
		if path.Ext(iri.Path) == "" {
			return true
		}
	}
	return false
}

// newRobotsJob builds the synthetic /robots.txt Job for a newly
// created Host. It bypasses every filter: the policy fetch itself is
// never subject to the policy.
func (a *Admitter) newRobotsJob(hostKey job.HostKey, seed *urlutil.IRI) *job.Job {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", seed.Scheme, hostWithPort(seed))
	j := job.New(hostKey, robotsURL)
	j.IsRobots = true
	j.IgnorePattern = true
	return j
}

// upgradeScheme rewrites an http IRI to https before any connection is
// attempted, so an HSTS-known host never sees a plaintext socket.
func upgradeScheme(iri *urlutil.IRI) *urlutil.IRI {
	port := iri.Port
	if port == "80" {
		port = ""
	}
	return &urlutil.IRI{
		Scheme: "https",
		Host:   iri.Host,
		Port:   port,
		Path:   iri.Path,
		Query:  iri.Query,
	}
}

func hostWithPort(iri *urlutil.IRI) string {
	if iri.Port == "" {
		return iri.Host
	}
	return iri.Host + ":" + iri.Port
}

// localFilename derives the save path for iri (the full implementation
// lives in filename.go; Admit only needs the final decision, computed
// eagerly so a later directory clash check has something to test
// against).
func localFilename(cfg *config.Runtime, iri *urlutil.IRI) string {
	return DeriveFilename(cfg, iri)
}
