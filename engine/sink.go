package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/corvaxen/grecurl/result"
)

// Sink is the callback-based body delivery abstraction: OnHeader
// once, OnChunk any number of times, Finalize once, in that order.
type Sink interface {
	OnHeader(contentLength int64, lastModified time.Time) error
	OnChunk(data []byte) error
	Finalize() error
}

// discardSink drains a body without retaining or writing any of it,
// used for --spider requests and Jobs with no local filename.
type discardSink struct{}

func (discardSink) OnHeader(int64, time.Time) error { return nil }
func (discardSink) OnChunk([]byte) error            { return nil }
func (discardSink) Finalize() error                 { return nil }

// DiskSink writes a response body incrementally to disk while also
// retaining up to MaxMemory bytes in an in-memory buffer, so a parser can
// run against the buffered bytes without a second disk read. Part
// jobs pass MaxMemory=0 and write directly at Offset instead.
type DiskSink struct {
	file   *os.File
	part   bool  // a byte-range part: every write goes through WriteAt
	offset int64 // next absolute write position for a part sink

	mu            sync.Mutex
	buf           bytes.Buffer
	maxMemory     int64
	written       int64
	lastModified  time.Time
	useTimestamps bool

	exit *result.ExitStatus
}

// NewDiskSink returns a DiskSink for a full-body job, bounded to
// maxMemory bytes of retained content.
func NewDiskSink(f *os.File, maxMemory int64, useServerTimestamps bool, exit *result.ExitStatus) *DiskSink {
	return &DiskSink{
		file:          f,
		maxMemory:     maxMemory,
		useTimestamps: useServerTimestamps,
		exit:          exit,
	}
}

// NewPartDiskSink returns a DiskSink for one byte-range part of a
// multi-part job: every chunk is written at the part's absolute file
// position via WriteAt (position 0 included, so correctness never
// depends on part ordering) and nothing is retained in memory.
func NewPartDiskSink(f *os.File, position int64, exit *result.ExitStatus) *DiskSink {
	return &DiskSink{file: f, part: true, offset: position, exit: exit}
}

// OnHeader records the advertised Last-Modified time, applied to the
// file's mtime in Finalize when timestamping is enabled.
func (s *DiskSink) OnHeader(contentLength int64, lastModified time.Time) error {
	s.lastModified = lastModified
	return nil
}

// OnChunk writes data to disk (at the part's absolute position for a
// part sink, append otherwise) and retains up to maxMemory bytes in
// the in-memory buffer. A transient EAGAIN is retried for up to one
// second before reporting an I/O failure.
func (s *DiskSink) OnChunk(data []byte) error {
	if err := s.writeWithRetry(data); err != nil {
		if s.exit != nil {
			s.exit.ReportKind(result.KindIo)
		}
		return fmt.Errorf("engine: write body chunk: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += int64(len(data))
	if s.maxMemory > 0 && int64(s.buf.Len()) < s.maxMemory {
		remaining := s.maxMemory - int64(s.buf.Len())
		if remaining > int64(len(data)) {
			s.buf.Write(data)
		} else {
			s.buf.Write(data[:remaining])
		}
	}
	return nil
}

func (s *DiskSink) writeWithRetry(data []byte) error {
	deadline := time.Now().Add(time.Second)
	for {
		var err error
		if s.part {
			_, err = s.file.WriteAt(data, s.offset)
			if err == nil {
				s.offset += int64(len(data))
			}
		} else {
			_, err = s.file.Write(data)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EAGAIN) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Finalize sets the file's mtime from the server's Last-Modified
// header when timestamping is enabled.
func (s *DiskSink) Finalize() error {
	if s.useTimestamps && !s.lastModified.IsZero() {
		if err := os.Chtimes(s.file.Name(), s.lastModified, s.lastModified); err != nil {
			return fmt.Errorf("engine: set mtime: %w", err)
		}
	}
	return nil
}

// Buffered returns the bytes retained in the in-memory buffer, for a
// parser to consume without re-reading the file from disk.
func (s *DiskSink) Buffered() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}

// Written reports the total bytes written so far.
func (s *DiskSink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
