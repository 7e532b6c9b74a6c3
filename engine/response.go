package engine

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/parse"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/statestore"
	"github.com/corvaxen/grecurl/urlutil"
)

// maxRedirectionDepth bounds a Job's redirect chain, same default
// wget uses.
const maxRedirectionDepth = 20

// Stores bundles the protocol-state caches a response may consult or
// update. Any field may be nil when its feature flag is off.
type Stores struct {
	Cookies *statestore.CookieStore
	HSTS    *statestore.HSTSStore
	HPKP    *statestore.HPKPStore
	Netrc   *statestore.NetrcStore
	ETags   *ETagSet
}

// Processor runs the response pipeline for one Job's
// HTTP response: stats, cookie/HSTS/HPKP bookkeeping, auth challenge
// handling, redirect admission, and content dispatch.
type Processor struct {
	Config   *config.Runtime
	Admitter *Admitter
	Stats    *result.Stats
	Exit     *result.ExitStatus
	Stores   Stores

	quotaHit atomic.Bool
}

// QuotaExceeded reports whether a downloaded byte total has crossed
// Config.Quota. The engine's quiescence loop polls this to stop the
// scheduler once it goes true.
func (p *Processor) QuotaExceeded() bool {
	return p.quotaHit.Load()
}

// debugLog prints res to stderr when Config.Debug is set.
func (p *Processor) debugLog(res result.JobResult) {
	if p.Config.Debug {
		result.PrintJobLine(os.Stderr, res)
	}
}

// checkQuota only tests: bytes have already been added to
// Stats.TotalBytes by the caller, so this only has to compare the
// running total against the configured budget. A Config.Quota of 0
// means unlimited. Crossing the quota is a clean stop, not an error:
// only the latch is set, the exit-status cell is left untouched.
func (p *Processor) checkQuota() {
	if p.Config.Quota <= 0 {
		return
	}
	if p.Stats.TotalBytes.Load() >= p.Config.Quota {
		p.quotaHit.Store(true)
	}
}

// Disposition is the outcome of inspecting a response's status line
// and headers, before any body is read.
type Disposition int

const (
	// DispositionFetch means proceed with the GET (or, for a response
	// already carrying a body, the body has been consumed).
	DispositionFetch Disposition = iota
	// DispositionSkip means no further action: already satisfied
	// (ETag match) or unrecoverable (redirect loop, unanswerable
	// challenge).
	DispositionSkip
	// DispositionChunked means a Metalink descriptor (synthetic, from
	// a chunk-size split, or parsed from a metalink+xml body) was
	// attached to the Job; the caller should fetch j.Parts instead of
	// the body.
	DispositionChunked
	// DispositionMetalinkDiscover means the response carried a Link
	// header pointing at a Metalink descriptor; the caller should fetch
	// MetalinkURL, parse it, and dispatch parts for this Job.
	DispositionMetalinkDiscover
	// DispositionRetryAuth means the caller should rebuild the request
	// with an Authorization header answering j.ServerChallenge or
	// j.ProxyChallenge and resend.
	DispositionRetryAuth
	// DispositionRedirect means the caller should admit Candidates as
	// a new Job and abandon this one.
	DispositionRedirect
)

// HeadDecision is returned by HandleHeadResponse and (for a
// status/redirect/challenge/metalink short-circuit) by
// HandleFullResponse.
type HeadDecision struct {
	Disposition Disposition
	Candidates  []Candidate
	MetalinkURL string
}

// FullResult is returned by HandleFullResponse for a response that
// carries (or would carry) a body.
type FullResult struct {
	Outcome    result.Outcome
	Candidates []Candidate
	Decision   HeadDecision // populated instead of Outcome on redirect/auth
}

// HandleHeadResponse processes a HEAD response for a Job whose
// HeadFirst flag is set: auth challenge, redirect, chunked-retrieval
// sizing, and ETag-skip, in that order.
func (p *Processor) HandleHeadResponse(j *job.Job, resp *http.Response) HeadDecision {
	p.recordProtocolState(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusProxyAuthRequired {
		return p.handleChallenge(j, resp)
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return p.handleRedirect(j, resp)
	}

	if murl := metalinkDescribedByURL(resp.Header); murl != "" {
		return HeadDecision{Disposition: DispositionMetalinkDiscover, MetalinkURL: murl}
	}

	if p.Config.ChunkSize > 0 && resp.ContentLength > p.Config.ChunkSize {
		j.Metalink = BuildSyntheticMetalink(j.TargetURL, resp.ContentLength, p.Config.ChunkSize)
		DispatchParts(j)
		return HeadDecision{Disposition: DispositionChunked}
	}

	if etag := resp.Header.Get("ETag"); p.Stores.ETags != nil {
		if p.Stores.ETags.Seen(j.TargetURL, etag) {
			return HeadDecision{Disposition: DispositionSkip}
		}
	}

	return HeadDecision{Disposition: DispositionFetch}
}

// HandleFullResponse processes a GET response carrying a body: status
// handling, Metalink discovery, body delivery through sink, stats
// recording, and (when recursion is enabled and depth allows) link
// discovery via parse.Dispatch against the Sink's retained buffer.
//
// The status/redirect/challenge/Metalink inspection never touches
// sink, so a caller may inspect first and only open a destination file
// once it knows the response will actually deliver file content;
// InspectFullResponse exposes that half on its own.
func (p *Processor) HandleFullResponse(j *job.Job, resp *http.Response, sink Sink, base *urlutil.IRI) (FullResult, error) {
	if full, proceed, err := p.InspectFullResponse(j, resp); !proceed || err != nil {
		return full, err
	}
	return p.DeliverBody(j, resp, sink, base)
}

// InspectFullResponse handles every outcome of a GET response that
// doesn't require delivering a body to a Sink: auth challenges,
// redirects, 304/4xx status, and Metalink discovery (a Link header
// pointing at a descriptor, or the response itself being one). It
// returns proceed=false whenever the caller should stop, using the
// returned FullResult directly instead of calling DeliverBody.
func (p *Processor) InspectFullResponse(j *job.Job, resp *http.Response) (FullResult, bool, error) {
	p.recordProtocolState(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusProxyAuthRequired {
		return FullResult{Decision: p.handleChallenge(j, resp)}, false, nil
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return FullResult{Decision: p.handleRedirect(j, resp)}, false, nil
	}
	if resp.StatusCode == http.StatusNotModified {
		res := result.JobResult{URL: j.TargetURL, StatusCode: resp.StatusCode, Outcome: result.OutcomeNotModified}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return FullResult{Outcome: result.OutcomeNotModified}, false, nil
	}
	if resp.StatusCode >= 400 {
		kind := result.ClassifyError(nil, resp.StatusCode)
		res := result.JobResult{
			URL: j.TargetURL, StatusCode: resp.StatusCode, SourceURL: j.RefererURL,
			Outcome: result.OutcomeError, ErrorKind: kind, Error: resp.Status,
		}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return FullResult{Outcome: result.OutcomeError}, false, nil
	}

	if murl := metalinkDescribedByURL(resp.Header); murl != "" {
		return FullResult{Decision: HeadDecision{Disposition: DispositionMetalinkDiscover, MetalinkURL: murl}}, false, nil
	}
	if isMetalinkContentType(resp.Header.Get("Content-Type")) {
		full, err := p.parseMetalinkBody(j, resp)
		return full, false, err
	}

	return FullResult{}, true, nil
}

// parseMetalinkBody reads a response whose content-type is itself a
// Metalink(4) descriptor, parses it, and dispatches the Job's parts.
func (p *Processor) parseMetalinkBody(j *job.Job, resp *http.Response) (FullResult, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return FullResult{}, fmt.Errorf("engine: read metalink descriptor %s: %w", j.TargetURL, err)
	}
	m, err := ParseMetalinkXML(body)
	if err != nil {
		res := result.JobResult{
			URL: j.TargetURL, Outcome: result.OutcomeError,
			ErrorKind: result.KindProtocol, Error: err.Error(),
		}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return FullResult{Outcome: result.OutcomeError}, nil
	}
	j.Metalink = m
	if j.LocalFilename == "" && m.Name != "" {
		j.LocalFilename = m.Name
	}
	DispatchParts(j)
	return FullResult{Decision: HeadDecision{Disposition: DispositionChunked}}, nil
}

// DeliverBody streams resp's body into sink and runs link discovery.
// Callers reach this only after InspectFullResponse has reported
// proceed=true.
func (p *Processor) DeliverBody(j *job.Job, resp *http.Response, sink Sink, base *urlutil.IRI) (FullResult, error) {
	if etag := resp.Header.Get("ETag"); p.Stores.ETags != nil {
		p.Stores.ETags.Seen(j.TargetURL, etag)
	}

	lastModified := parseLastModified(resp.Header.Get("Last-Modified"))
	if err := sink.OnHeader(resp.ContentLength, lastModified); err != nil {
		return FullResult{}, err
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if werr := sink.OnChunk(buf[:n]); werr != nil {
				return FullResult{}, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return FullResult{}, fmt.Errorf("engine: read body of %s: %w", j.TargetURL, rerr)
		}
	}
	if err := sink.Finalize(); err != nil {
		return FullResult{}, err
	}

	written := int64(0)
	if ds, ok := sink.(*DiskSink); ok {
		written = ds.Written()
	}
	res := result.JobResult{URL: j.TargetURL, StatusCode: resp.StatusCode, Outcome: result.OutcomeDownload, Bytes: written}
	result.Record(p.Stats, p.Exit, res)
	p.debugLog(res)
	p.checkQuota()

	candidates := p.discoverLinks(j, resp.Header.Get("Content-Type"), sink, base)
	return FullResult{Outcome: result.OutcomeDownload, Candidates: candidates}, nil
}

// discoverLinks dispatches sink's retained buffer to the right parser
// and admits every discovered link as a Candidate, when recursion is
// enabled and the Job hasn't hit MaxDepth.
func (p *Processor) discoverLinks(j *job.Job, contentType string, sink Sink, base *urlutil.IRI) []Candidate {
	if !p.Config.Recursive {
		return nil
	}
	if p.Config.MaxDepth > 0 && j.RecursionDepth >= p.Config.MaxDepth {
		return nil
	}
	ds, ok := sink.(*DiskSink)
	if !ok {
		return nil
	}

	kind := parse.FromForceMode(p.Config.ForceMode)
	if kind == parse.KindUnknown {
		kind = parse.FromContentType(contentType)
	}
	if kind == parse.KindUnknown {
		return nil
	}

	links, err := parse.Dispatch(kind, bytes.NewReader(ds.Buffered()), base)
	if err != nil {
		return nil
	}

	candidates := make([]Candidate, 0, len(links))
	for _, l := range links {
		candidates = append(candidates, Candidate{
			RawURL:         l.URL,
			Base:           base,
			RefererURL:     j.TargetURL,
			RecursionDepth: j.RecursionDepth + 1,
		})
	}
	return candidates
}

// handleChallenge caches a 401/407's auth challenge on j for a
// caller-driven retry with Authorization/Proxy-Authorization set.
func (p *Processor) handleChallenge(j *job.Job, resp *http.Response) HeadDecision {
	if resp.StatusCode == http.StatusProxyAuthRequired {
		j.ProxyChallenge = ParseChallenge(resp.Header.Get("Proxy-Authenticate"))
		if j.ProxyChallenge == nil {
			return HeadDecision{Disposition: DispositionSkip}
		}
		return HeadDecision{Disposition: DispositionRetryAuth}
	}
	j.ServerChallenge = ParseChallenge(resp.Header.Get("WWW-Authenticate"))
	if j.ServerChallenge == nil {
		return HeadDecision{Disposition: DispositionSkip}
	}
	return HeadDecision{Disposition: DispositionRetryAuth}
}

// handleRedirect admits a 3xx's Location header as a new redirect
// Candidate, carrying the Job's referer, recursion depth, and
// pattern-bypass flags forward.
func (p *Processor) handleRedirect(j *job.Job, resp *http.Response) HeadDecision {
	loc := resp.Header.Get("Location")
	if loc == "" || j.RedirectionDepth >= maxRedirectionDepth {
		res := result.JobResult{
			URL: j.TargetURL, StatusCode: resp.StatusCode,
			Outcome: result.OutcomeError, ErrorKind: result.KindProtocol,
			Error: "redirect loop or missing Location",
		}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return HeadDecision{Disposition: DispositionSkip}
	}
	redirRes := result.JobResult{URL: j.TargetURL, StatusCode: resp.StatusCode, Outcome: result.OutcomeRedirect}
	result.Record(p.Stats, p.Exit, redirRes)
	p.debugLog(redirRes)

	base, err := urlutil.ParseIRI(j.TargetURL, nil)
	if err != nil {
		return HeadDecision{Disposition: DispositionSkip}
	}
	cand := Candidate{
		RawURL:           loc,
		Base:             base,
		RefererURL:       j.RefererURL,
		RecursionDepth:   j.RecursionDepth,
		IsRedirect:       true,
		RedirectionDepth: j.RedirectionDepth + 1,
		IgnorePattern:    j.IgnorePattern,
		IsSitemap:        j.IsSitemap,
		IsRobots:         j.IsRobots,
	}
	return HeadDecision{Disposition: DispositionRedirect, Candidates: []Candidate{cand}}
}

// recordProtocolState folds HSTS, HPKP, and cookie bookkeeping into
// the configured stores. A nil store means that feature is disabled.
func (p *Processor) recordProtocolState(resp *http.Response) {
	if resp.TLS != nil && resp.Request != nil && net.ParseIP(resp.Request.URL.Hostname()) == nil {
		host := resp.Request.URL.Hostname()
		if p.Stores.HSTS != nil {
			if v := resp.Header.Get("Strict-Transport-Security"); v != "" {
				maxAge, includeSub := parseHSTS(v)
				p.Stores.HSTS.Observe(host, maxAge, includeSub)
			}
		}
		if p.Stores.HPKP != nil {
			if v := resp.Header.Get("Public-Key-Pins"); v != "" {
				pins, maxAge := parseHPKP(v)
				p.Stores.HPKP.Observe(host, pins, maxAge)
			}
		}
	}
	if p.Stores.Cookies != nil && resp.Header.Get("Set-Cookie") != "" {
		p.Stores.Cookies.MarkDirty()
	}
}

// parseHSTS extracts max-age and includeSubDomains from a
// Strict-Transport-Security header value.
func parseHSTS(v string) (maxAge time.Duration, includeSubdomains bool) {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(strings.ToLower(part), "max-age="):
			secs, err := strconv.ParseInt(part[len("max-age="):], 10, 64)
			if err == nil {
				maxAge = time.Duration(secs) * time.Second
			}
		case strings.EqualFold(part, "includeSubDomains"):
			includeSubdomains = true
		}
	}
	return maxAge, includeSubdomains
}

// parseHPKP extracts pin-sha256 values and max-age from a
// Public-Key-Pins header value.
func parseHPKP(v string) (pins []string, maxAge time.Duration) {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "pin-sha256="):
			pin := strings.Trim(part[len("pin-sha256="):], `"`)
			pins = append(pins, pin)
		case strings.HasPrefix(lower, "max-age="):
			secs, err := strconv.ParseInt(part[len("max-age="):], 10, 64)
			if err == nil {
				maxAge = time.Duration(secs) * time.Second
			}
		}
	}
	return pins, maxAge
}

// parseLastModified parses an RFC 1123 Last-Modified header, ignoring
// failures (a missing/unparsable header just means no server
// timestamp is available).
func parseLastModified(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isMetalinkContentType reports whether ct names a Metalink4 or
// Metalink descriptor body.
func isMetalinkContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return ct == "application/metalink4+xml" || ct == "application/metalink+xml"
}

// linkHeaderEntry is one comma-separated entry of an RFC 8288 Link
// header, with the "pri" parameter RFC 6249 defines for rel=duplicate
// mirrors.
type linkHeaderEntry struct {
	url      string
	rel      string
	typ      string
	priority int
}

// metalinkDescribedByURL returns the URL of a Link: rel="describedby"
// Metalink descriptor, or (absent that) the highest-priority
// rel="duplicate" mirror (RFC 6249). Empty when neither is present.
func metalinkDescribedByURL(h http.Header) string {
	var duplicates []linkHeaderEntry
	for _, raw := range h.Values("Link") {
		for _, entry := range parseLinkHeader(raw) {
			if entry.rel == "describedby" && (entry.typ == "application/metalink4+xml" || entry.typ == "application/metalink+xml") {
				return entry.url
			}
			if entry.rel == "duplicate" {
				duplicates = append(duplicates, entry)
			}
		}
	}
	if len(duplicates) == 0 {
		return ""
	}
	best := duplicates[0]
	for _, d := range duplicates[1:] {
		if d.priority < best.priority {
			best = d
		}
	}
	return best.url
}

// parseLinkHeader splits one Link header value into its
// comma-separated entries. None of the parameters read here (rel,
// type, pri) can themselves contain a comma, so a bare split is safe.
func parseLinkHeader(raw string) []linkHeaderEntry {
	var entries []linkHeaderEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "<") {
			continue
		}
		end := strings.Index(part, ">")
		if end < 0 {
			continue
		}
		entry := linkHeaderEntry{url: part[1:end], priority: 1 << 30}
		for _, p := range strings.Split(part[end+1:], ";") {
			p = strings.TrimSpace(p)
			k, v, ok := strings.Cut(p, "=")
			if !ok {
				continue
			}
			k = strings.ToLower(strings.TrimSpace(k))
			v = strings.Trim(strings.TrimSpace(v), `"`)
			switch k {
			case "rel":
				entry.rel = strings.ToLower(v)
			case "type":
				entry.typ = strings.ToLower(v)
			case "pri":
				if n, err := strconv.Atoi(v); err == nil {
					entry.priority = n
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
