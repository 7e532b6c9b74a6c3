package engine

import (
	"fmt"
	"io"
	"net/http"

	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/result"
)

// HandlePartResponse processes one Part's GET response for a
// multi-part (Metalink-backed) Job: a 200 or 206 with the expected
// range is written to sink at part.Position, the Part is marked done,
// and — once every Part of the Job is done — the whole-file checksum
// is validated against j.Metalink.
func (p *Processor) HandlePartResponse(j *job.Job, part *job.Part, mirrorURL string, resp *http.Response, sink Sink, localPath string) error {
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		part.Release()
		kind := result.ClassifyError(nil, resp.StatusCode)
		res := result.JobResult{
			URL: j.TargetURL, StatusCode: resp.StatusCode,
			Outcome: result.OutcomeError, ErrorKind: kind, Error: resp.Status,
		}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return fmt.Errorf("engine: part %d of %s: unexpected status %s", part.ID, j.TargetURL, resp.Status)
	}

	if err := sink.OnHeader(resp.ContentLength, parseLastModified(resp.Header.Get("Last-Modified"))); err != nil {
		part.Release()
		return err
	}

	// The copy is capped at part.Length so an overlong body (a server
	// that ignores Range and answers a full-body 200) can never write
	// past this part's byte range before the length check below
	// rejects it.
	limited := io.LimitReader(resp.Body, part.Length)
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := limited.Read(buf)
		if n > 0 {
			if werr := sink.OnChunk(buf[:n]); werr != nil {
				part.Release()
				return werr
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			part.Release()
			return fmt.Errorf("engine: read part %d of %s: %w", part.ID, j.TargetURL, rerr)
		}
	}
	overlong := false
	if written == part.Length {
		var extra [1]byte
		if n, _ := resp.Body.Read(extra[:]); n > 0 {
			overlong = true
		}
	}

	// A part response must carry exactly the requested byte range.
	if written != part.Length || overlong {
		part.Release()
		got := fmt.Sprintf("%d", written)
		if overlong {
			got = fmt.Sprintf("more than %d", part.Length)
		}
		res := result.JobResult{
			URL: j.TargetURL, StatusCode: resp.StatusCode,
			Outcome: result.OutcomeError, ErrorKind: result.KindProtocol,
			Error: fmt.Sprintf("part %d: got %s bytes, want %d", part.ID, got, part.Length),
		}
		result.Record(p.Stats, p.Exit, res)
		p.debugLog(res)
		return fmt.Errorf("engine: part %d of %s: body length %s does not match part length %d",
			part.ID, j.TargetURL, got, part.Length)
	}

	part.MirrorURL = mirrorURL
	part.MarkDone()
	chunkRes := result.JobResult{URL: j.TargetURL, StatusCode: resp.StatusCode, Outcome: result.OutcomeChunk, Bytes: written}
	result.Record(p.Stats, p.Exit, chunkRes)
	p.debugLog(chunkRes)
	p.checkQuota()

	if j.AllPartsDone() {
		if err := sink.Finalize(); err != nil {
			return err
		}
		if err := ValidateWholeFile(localPath, j.Metalink); err != nil {
			res := result.JobResult{
				URL: j.TargetURL, Outcome: result.OutcomeError,
				ErrorKind: result.KindIo, Error: err.Error(),
			}
			result.Record(p.Stats, p.Exit, res)
			p.debugLog(res)
			return err
		}
		doneRes := result.JobResult{URL: j.TargetURL, Outcome: result.OutcomeDownload, Bytes: j.Metalink.Size}
		result.Record(p.Stats, p.Exit, doneRes)
		p.debugLog(doneRes)
		p.checkQuota()
	}
	return nil
}
