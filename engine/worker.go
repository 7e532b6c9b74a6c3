package engine

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corvaxen/grecurl/convert"
	"github.com/corvaxen/grecurl/hostreg"
	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/parse"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/urlutil"
)

// runWorker is one worker goroutine's GetJob/GetResponse/Error loop:
// dequeue a ready Job from any Host, process it, and
// repeat until the run is cancelled or quiescent. ctx governs the
// soft-terminate boundary (no new dequeues once cancelled); hardCtx is
// substituted for an in-flight request once a second interrupt fires.
func (e *Engine) runWorker(ctx context.Context, hardCtx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		default:
		}

		h, j, ok := e.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-e.done:
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		e.processJob(ctx, hardCtx, h, j)
	}
}

// dequeue scans every registered Host for a ready Job, returning the
// first one found. Hosts in a back-off window or with an empty queue
// are skipped; the caller retries on the next tick.
func (e *Engine) dequeue() (*hostreg.Host, *job.Job, bool) {
	for _, h := range e.Registry.Hosts() {
		if res := e.Registry.GetJob(h); res.Status == hostreg.StatusJob {
			return h, res.Job, true
		}
	}
	return nil, nil, false
}

// processJob runs one Job to completion: rate-limit wait, fetch,
// stats recording, and either releasing the Job for retry or
// admitting the Candidates it discovered.
func (e *Engine) processJob(ctx, hardCtx context.Context, h *hostreg.Host, j *job.Job) {
	defer e.Registry.ReleaseWorker(h)

	limiter := e.Limiters.get(h.Key)
	if err := limiter.Wait(ctx); err != nil {
		e.Registry.ReleaseJob(h, j)
		return
	}

	reqCtx := ctx
	if e.abort.Load() {
		reqCtx = hardCtx
	}

	if j.IsRobots {
		e.fetchRobots(reqCtx, h, j)
		e.Registry.CompleteRobotsJob(h)
		return
	}

	start := time.Now()
	candidates, retryable, err := e.fetch(reqCtx, j)
	rtt := time.Since(start)

	if err == nil {
		limiter.ObserveRTT(rtt)
		e.Registry.ResetFailure(h)
		for _, c := range candidates {
			e.admitCandidate(c)
		}
		return
	}

	kind := result.ClassifyError(err, 0)
	if retryable && shouldRetry(kind, 0) && !e.terminate.Load() {
		finalFailed, dropped := e.Registry.IncreaseFailure(h)
		if dropped > 0 {
			e.Logger.Warn("host final-failed, dropping queued jobs",
				zap.String("host", h.Key.Host), zap.Int("dropped", dropped))
		}
		if !finalFailed {
			e.Registry.ReleaseJob(h, j)
			return
		}
	}
	res := result.JobResult{
		URL: j.TargetURL, SourceURL: j.RefererURL,
		Outcome: result.OutcomeError, ErrorKind: kind, Error: err.Error(),
	}
	result.Record(e.Stats, e.Exit, res)
	if e.Config.Debug {
		result.PrintJobLine(os.Stderr, res)
	}
}

// fetch runs the HeadFirst/chunked/full-body decision tree for one
// Job and returns the Candidates its response admitted.
func (e *Engine) fetch(ctx context.Context, j *job.Job) ([]Candidate, bool, error) {
	if j.HeadFirst && !j.IsMultiPart() {
		decision, err := e.fetchHead(ctx, j)
		if err != nil {
			return nil, true, err
		}
		switch decision.Disposition {
		case DispositionSkip:
			return nil, false, nil
		case DispositionRedirect, DispositionRetryAuth:
			return decision.Candidates, false, nil
		case DispositionMetalinkDiscover:
			return e.fetchMetalinkDescriptor(ctx, j, decision.MetalinkURL)
		case DispositionChunked:
			return e.fetchParts(ctx, j)
		}
	}

	if j.IsMultiPart() {
		return e.fetchParts(ctx, j)
	}

	return e.fetchFull(ctx, j)
}

// fetchRobots fetches the synthetic /robots.txt Job for h and installs
// the compiled policy (or, on any failure or non-2xx status, leaves
// the Host's policy unloaded so RobotsPolicy.Allowed permits
// everything; a missing or malformed robots.txt is non-fatal, not
// allow-nothing).
func (e *Engine) fetchRobots(ctx context.Context, h *hostreg.Host, j *job.Job) {
	resp, err := e.doRequest(ctx, http.MethodGet, j, nil)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return
	}

	ua := e.Config.UserAgent
	if ua == "" {
		ua = "grecurl"
	}
	e.Registry.SetRobots(h, parse.ParseRobots(body, ua))
}

func (e *Engine) fetchHead(ctx context.Context, j *job.Job) (HeadDecision, error) {
	resp, err := e.requestWithAuth(ctx, http.MethodHead, j)
	if err != nil {
		return HeadDecision{}, err
	}
	defer resp.Body.Close()
	return e.Processor.HandleHeadResponse(j, resp), nil
}

// fetchFull issues a GET, inspects the
// response before opening any destination file (so a Metalink
// discovery or descriptor body never clobbers a half-created save
// file), then delivers the body to disk (or discards it in spider
// mode), recording the URL for link conversion and extended
// attributes on success.
func (e *Engine) fetchFull(ctx context.Context, j *job.Job) ([]Candidate, bool, error) {
	resp, err := e.requestWithAuth(ctx, http.MethodGet, j)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	base, _ := urlutil.ParseIRI(j.TargetURL, nil)

	full, proceed, err := e.Processor.InspectFullResponse(j, resp)
	if err != nil {
		return nil, true, err
	}
	if !proceed {
		switch full.Decision.Disposition {
		case DispositionMetalinkDiscover:
			return e.fetchMetalinkDescriptor(ctx, j, full.Decision.MetalinkURL)
		case DispositionChunked:
			return e.fetchParts(ctx, j)
		}
		return candidatesOf(full), false, nil
	}

	if e.Config.Spider || j.LocalFilename == "" || j.LocalFilename == "-" {
		full, err := e.Processor.DeliverBody(j, resp, discardSink{}, base)
		if err != nil {
			return nil, true, err
		}
		return candidatesOf(full), false, nil
	}

	filename := j.LocalFilename
	if e.Config.ContentDisposition {
		if cd := dispositionFilename(resp.Header.Get("Content-Disposition")); cd != "" {
			filename = path.Join(path.Dir(filename), cd)
		}
	}
	savePolicy := SavePolicy{
		Timestamping: e.Config.Timestamping,
		NoClobber:    e.Config.NoClobber,
		// Appending is only correct when the server actually honored
		// the Range request; a plain 200 carries the whole body again.
		Continue: e.Config.Continue && resp.StatusCode == http.StatusPartialContent,
	}
	if e.Config.Backups > 0 {
		savePolicy.Backups = e.Config.Backups
	}
	f, savedPath, err := OpenForSave(filename, savePolicy)
	if err != nil {
		return nil, true, err
	}
	defer f.Close()

	sink := NewDiskSink(f, e.Config.MaxMemory, e.Config.Timestamping, e.Exit)
	full, err = e.Processor.DeliverBody(j, resp, sink, base)
	if err != nil {
		return nil, true, err
	}

	if full.Outcome == result.OutcomeDownload {
		e.URLIndex.Record(j.TargetURL, savedPath)
		if e.Config.Xattr {
			SetOriginXattrs(savedPath, j.TargetURL, j.RefererURL, resp.Header.Get("Content-Type"), "")
		}
		if e.Config.ConvertLinks {
			e.recordForConversion(j, savedPath, resp.Header.Get("Content-Type"), sink)
		}
	}
	return candidatesOf(full), false, nil
}

// fetchMetalinkDescriptor fetches murl (a Link: rel=describedby target
// discovered on j's response), parses it as a Metalink descriptor, and
// dispatches j's parts, the non-synthetic counterpart of the
// chunk-size path in HandleHeadResponse.
func (e *Engine) fetchMetalinkDescriptor(ctx context.Context, j *job.Job, murl string) ([]Candidate, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, murl, nil)
	if err != nil {
		return nil, true, fmt.Errorf("engine: build metalink descriptor request for %s: %w", murl, err)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("engine: fetch metalink descriptor %s: unexpected status %s", murl, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, true, fmt.Errorf("engine: read metalink descriptor %s: %w", murl, err)
	}
	m, err := ParseMetalinkXML(body)
	if err != nil {
		return nil, false, err
	}
	j.Metalink = m
	if j.LocalFilename == "" && m.Name != "" {
		j.LocalFilename = m.Name
	}
	DispatchParts(j)
	return e.fetchParts(ctx, j)
}

// dispositionFilename extracts a safe base filename from a
// Content-Disposition header, or "" if none is present. Any directory
// component the server smuggles in is stripped.
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// candidatesOf returns a FullResult's Candidates, or its Decision's
// (for the redirect/auth-challenge short-circuit, where HandleFullResponse
// never read a body and left Outcome at its zero value).
func candidatesOf(full FullResult) []Candidate {
	if full.Outcome == "" {
		return full.Decision.Candidates
	}
	return full.Candidates
}

// fetchParts drives a Metalink-backed multi-part Job's piece fetches
// sequentially against its mirrors, round-robining when there is more
// than one.
func (e *Engine) fetchParts(ctx context.Context, j *job.Job) ([]Candidate, bool, error) {
	// Parts write at absolute offsets, so the file is opened without
	// truncation: a re-run over a partially complete file only fills
	// in the byte ranges still missing.
	savedPath := j.LocalFilename
	if err := os.MkdirAll(path.Dir(savedPath), 0o755); err != nil {
		return nil, true, fmt.Errorf("engine: create directory for %s: %w", savedPath, err)
	}
	f, err := os.OpenFile(savedPath, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, true, fmt.Errorf("engine: open %s: %w", savedPath, err)
	}
	defer f.Close()

	mirrors := j.Metalink.SortedMirrors()
	if len(mirrors) == 0 {
		mirrors = []job.Mirror{{URL: j.TargetURL}}
	}

	for _, part := range j.Parts {
		if !part.TryAcquire() {
			continue
		}
		mirror := mirrors[part.ID%len(mirrors)]
		resp, err := e.doPartRequest(ctx, mirror.URL, part)
		if err != nil {
			part.Release()
			return nil, true, err
		}

		sink := NewPartDiskSink(f, part.Position, e.Exit)
		perr := e.Processor.HandlePartResponse(j, part, mirror.URL, resp, sink, savedPath)
		resp.Body.Close()
		if perr != nil {
			return nil, true, perr
		}
	}

	if j.AllPartsDone() {
		e.URLIndex.Record(j.TargetURL, savedPath)
	}
	return nil, false, nil
}

func (e *Engine) doPartRequest(ctx context.Context, targetURL string, part *job.Part) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: build part request for %s: %w", targetURL, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", part.Position, part.Position+part.Length-1))
	return e.Client.Do(req)
}

// requestWithAuth issues method against j.TargetURL, and on a 401/407
// caches the challenge on j and retries once with a computed
// Authorization/Proxy-Authorization header if credentials are
// configured.
func (e *Engine) requestWithAuth(ctx context.Context, method string, j *job.Job) (*http.Response, error) {
	resp, err := e.doRequest(ctx, method, j, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusProxyAuthRequired {
		return resp, nil
	}
	user, pass := e.credentials(j)
	if user == "" {
		return resp, nil
	}

	headerName := "Authorization"
	if resp.StatusCode == http.StatusProxyAuthRequired {
		j.ProxyChallenge = ParseChallenge(resp.Header.Get("Proxy-Authenticate"))
		headerName = "Proxy-Authorization"
	} else {
		j.ServerChallenge = ParseChallenge(resp.Header.Get("WWW-Authenticate"))
	}
	challenge := j.ServerChallenge
	if headerName == "Proxy-Authorization" {
		challenge = j.ProxyChallenge
	}
	if challenge == nil {
		return resp, nil
	}

	value, err := BuildAuthorization(challenge, method, j.TargetURL, user, pass)
	if err != nil {
		return resp, nil
	}
	resp.Body.Close()
	return e.doRequest(ctx, method, j, map[string]string{headerName: value})
}

// credentials resolves the username/password for j's host: explicit
// --user/--password win, then the host's .netrc machine entry.
func (e *Engine) credentials(j *job.Job) (string, string) {
	if e.Config.User != "" {
		return e.Config.User, e.Config.Password
	}
	if netrc := e.Processor.Stores.Netrc; netrc != nil {
		if entry, ok := netrc.Lookup(j.Host.Host); ok {
			return entry.Login, entry.Password
		}
	}
	return "", ""
}

func (e *Engine) doRequest(ctx context.Context, method string, j *job.Job, extraHeaders map[string]string) (*http.Response, error) {
	var body io.Reader
	if method == http.MethodGet && !j.IsRobots {
		switch {
		case e.Config.PostData != "":
			method = http.MethodPost
			body = strings.NewReader(e.Config.PostData)
		case e.Config.PostFile != "":
			f, err := os.Open(e.Config.PostFile)
			if err != nil {
				return nil, fmt.Errorf("engine: open --post-file %s: %w", e.Config.PostFile, err)
			}
			defer f.Close()
			method = http.MethodPost
			body = f
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, j.TargetURL, body)
	if err != nil {
		return nil, fmt.Errorf("engine: build %s request for %s: %w", method, j.TargetURL, err)
	}
	if method == http.MethodPost && body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	ua := e.Config.UserAgent
	if ua == "" {
		ua = "grecurl/1.0"
	}
	req.Header.Set("User-Agent", ua)
	if j.RefererURL != "" {
		req.Header.Set("Referer", j.RefererURL)
	}

	if local := j.LocalFilename; local != "" && local != "-" {
		if info, err := os.Stat(local); err == nil {
			if e.Config.Timestamping {
				req.Header.Set("If-Modified-Since", info.ModTime().UTC().Format(http.TimeFormat))
			}
			if e.Config.Continue && info.Size() > 0 {
				req.Header.Set("Range", fmt.Sprintf("bytes=%d-", info.Size()))
			}
		}
	}

	for _, h := range e.Config.Headers {
		if k, v, ok := strings.Cut(h, ":"); ok {
			req.Header.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	return e.Client.Do(req)
}

// recordForConversion scans an HTML body's link offsets and records
// them for the terminal convert.Rewrite pass.
func (e *Engine) recordForConversion(j *job.Job, savedPath, contentType string, sink Sink) {
	ds, ok := sink.(*DiskSink)
	if !ok || parse.FromContentType(contentType) != parse.KindHTML {
		return
	}
	e.Recorder.Record(convert.Entry{
		LocalFilename: savedPath,
		BaseURL:       j.TargetURL,
		ContentType:   contentType,
		Offsets:       convert.ScanOffsets(ds.Buffered()),
	})
}

// admitCandidate runs Job Admission for a discovered link or redirect
// target and emits a progress Event on success. Admission failures
// (including a silent drop) are not retried; they are not this Job's
// concern.
func (e *Engine) admitCandidate(c Candidate) {
	if e.terminate.Load() {
		return
	}
	j, ok, err := e.Admitter.Admit(c)
	if err != nil {
		e.Logger.Debug("admission error", zap.String("url", c.RawURL), zap.Error(err))
		return
	}
	if !ok || j == nil {
		if c.IsRedirect {
			// A redirect target dropped by span-hosts/domains policy is
			// counted separately from ordinary filter skips.
			result.Record(e.Stats, nil, result.JobResult{URL: c.RawURL, Outcome: result.OutcomeRedirectSkip})
		}
		return
	}
	if e.Events == nil {
		return
	}
	select {
	case e.Events <- Event{JobID: j.UUID, URL: j.TargetURL, SourceURL: j.RefererURL, Outcome: "queued"}:
	default:
	}
}
