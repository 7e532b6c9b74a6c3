package result

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintJobLineDownload(t *testing.T) {
	var buf bytes.Buffer
	PrintJobLine(&buf, JobResult{URL: "http://example.com/a", Outcome: OutcomeDownload, Bytes: 1024})
	if !strings.Contains(buf.String(), "OK    http://example.com/a") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestPrintJobLineError(t *testing.T) {
	var buf bytes.Buffer
	PrintJobLine(&buf, JobResult{URL: "http://example.com/b", Outcome: OutcomeError, Error: "connection refused", ErrorKind: KindNetwork})
	got := buf.String()
	if !strings.Contains(got, "ERROR http://example.com/b") || !strings.Contains(got, "connection refused") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestPrintJobLineRobotsSkip(t *testing.T) {
	var buf bytes.Buffer
	PrintJobLine(&buf, JobResult{URL: "http://example.com/c", Outcome: OutcomeRobotsSkip})
	if !strings.Contains(buf.String(), "disallowed by robots.txt") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestPrintJobLinePatternSkip(t *testing.T) {
	var buf bytes.Buffer
	PrintJobLine(&buf, JobResult{URL: "http://example.com/d", Outcome: OutcomePatternSkip})
	if !strings.Contains(buf.String(), "rejected by accept/reject pattern") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
