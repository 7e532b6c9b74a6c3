package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/result"
)

func TestBuildSyntheticMetalinkCoversWholeFile(t *testing.T) {
	m := BuildSyntheticMetalink("http://a.example/big.bin", 25, 10)
	if len(m.Pieces) != 3 {
		t.Fatalf("expected 3 pieces for 25 bytes at chunk size 10, got %d", len(m.Pieces))
	}
	var total int64
	for i, piece := range m.Pieces {
		if piece.Position != total {
			t.Fatalf("piece %d starts at %d, expected %d", i, piece.Position, total)
		}
		total += piece.Length
	}
	if total != 25 {
		t.Fatalf("pieces should cover the whole 25-byte file, covered %d", total)
	}
}

// TestSyntheticMetalinkRoundTrip drives a synthetic N-part download
// end to end: each part is fetched and written at its byte range, and
// the reassembled file matches the origin byte-for-byte with its
// whole-file checksum validating.
func TestSyntheticMetalinkRoundTrip(t *testing.T) {
	origin := strings.Repeat("abcdefghij", 5) // 50 bytes
	sum := sha256.Sum256([]byte(origin))

	j := job.New(job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/big.bin")
	j.Metalink = BuildSyntheticMetalink(j.TargetURL, int64(len(origin)), 10)
	j.Metalink.HashType = "sha-256"
	j.Metalink.Hash = hex.EncodeToString(sum[:])
	DispatchParts(j)
	if len(j.Parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(j.Parts))
	}

	f, err := os.CreateTemp(t.TempDir(), "part-*.bin")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	localPath := f.Name()

	p := &Processor{Config: &config.Runtime{}, Stats: result.NewStats(), Exit: result.NewExitStatus()}

	for _, part := range j.Parts {
		if !part.TryAcquire() {
			t.Fatalf("part %d should be acquirable", part.ID)
		}
		chunk := origin[part.Position : part.Position+part.Length]
		resp := httptest.NewRecorder()
		resp.WriteHeader(http.StatusPartialContent)
		resp.WriteString(chunk)
		httpResp := resp.Result()

		sink := NewPartDiskSink(f, part.Position, p.Exit)
		if err := p.HandlePartResponse(j, part, j.TargetURL, httpResp, sink, localPath); err != nil {
			t.Fatalf("HandlePartResponse part %d: %v", part.ID, err)
		}
	}

	if !j.AllPartsDone() {
		t.Fatal("expected every part to be marked done")
	}

	got, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != origin {
		t.Fatalf("reassembled file does not match origin:\n got=%q\nwant=%q", got, origin)
	}
}

// TestPartResponseRejectsWrongBodyLength covers a server that ignores
// the Range header and answers a full-body 200: the part must be
// released for retry, never marked done with smeared bytes.
func TestPartResponseRejectsWrongBodyLength(t *testing.T) {
	origin := strings.Repeat("x", 30)
	j := job.New(job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/x.bin")
	j.Metalink = BuildSyntheticMetalink(j.TargetURL, int64(len(origin)), 10)
	DispatchParts(j)

	part := j.Parts[1]
	if !part.TryAcquire() {
		t.Fatal("part should be acquirable")
	}

	f, err := os.CreateTemp(t.TempDir(), "part-*.bin")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	resp := httptest.NewRecorder()
	resp.WriteHeader(http.StatusOK)
	resp.WriteString(origin) // whole file, not the requested 10-byte range

	p := &Processor{Config: &config.Runtime{}, Stats: result.NewStats(), Exit: result.NewExitStatus()}
	sink := NewPartDiskSink(f, part.Position, p.Exit)
	if err := p.HandlePartResponse(j, part, j.TargetURL, resp.Result(), sink, f.Name()); err == nil {
		t.Fatal("a body longer than the part length must be rejected")
	}
	if part.Done() {
		t.Error("a rejected part must not be marked done")
	}
	if part.InUse() {
		t.Error("a rejected part must be released for retry")
	}
}

// TestSyntheticMetalinkRoundTripResumesMissingPart checks that a Job
// with every part done except one reports AllPartsDone false and
// leaves only that one part acquirable for a retry — the shape a
// re-run after an interrupted download would find on disk.
func TestSyntheticMetalinkRoundTripResumesMissingPart(t *testing.T) {
	origin := strings.Repeat("z", 30)
	j := job.New(job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/z.bin")
	j.Metalink = BuildSyntheticMetalink(j.TargetURL, int64(len(origin)), 10)
	DispatchParts(j)

	const missingIdx = 1
	for i, part := range j.Parts {
		if i == missingIdx {
			continue
		}
		part.MarkDone()
	}

	if j.AllPartsDone() {
		t.Fatal("expected AllPartsDone to report false while one part is still missing")
	}
	for i, part := range j.Parts {
		if i == missingIdx {
			if part.Done() {
				t.Fatalf("part %d should be the only incomplete part", i)
			}
			continue
		}
		if !part.Done() {
			t.Fatalf("part %d should already be done", i)
		}
		if part.TryAcquire() {
			t.Fatalf("a completed part %d should not be acquirable again", i)
		}
	}
	if !j.Parts[missingIdx].TryAcquire() {
		t.Fatal("the missing part should be acquirable for a retry")
	}
}
