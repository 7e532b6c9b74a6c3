package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// lowMemorySet is a disk-backed bloom filter for URL de-duplication at
// a constant memory footprint. It trades the exact-set's "never
// admitted twice" guarantee for bounded RAM on very large crawls: a false
// positive causes a genuinely-new URL to be silently treated as seen
// (dropped coverage), never the reverse, so it is only wired in behind
// an explicit --low-memory opt-in.
type lowMemorySet struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	count     uint64
	syncEvery uint64
	n         int
	lastErr   error
}

// NewLowMemory creates a bounded-memory Fingerprint Set sized for
// expectedURLs distinct URLs at the given false-positive rate.
func NewLowMemory(expectedURLs uint, falsePositiveRate float64) (Set, error) {
	filter := bloom.NewWithEstimates(expectedURLs, falsePositiveRate)

	tmpFile, err := os.CreateTemp(os.TempDir(), "grecurl-fingerprint-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	size := filter.Cap()
	if err := tmpFile.Truncate(int64(size)); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}

	mapped, err := mmap.MapRegion(tmpFile, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}

	data, err := filter.MarshalBinary()
	if err != nil {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) > len(mapped) {
		_ = mapped.Unmap()
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("filter data (%d) exceeds mmap size (%d)", len(data), len(mapped))
	}
	copy(mapped, data)

	return &lowMemorySet{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

func (s *lowMemorySet) InsertIfAbsent(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(rawURL) {
		return false
	}
	s.filter.AddString(rawURL)
	s.n++
	s.count++

	if s.count >= s.syncEvery {
		if err := s.syncLocked(); err != nil {
			s.lastErr = err
		}
	}
	return true
}

func (s *lowMemorySet) Contains(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.TestString(rawURL)
}

func (s *lowMemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// syncLocked persists the bloom filter to the mmap'd backing file.
// Must be called with mu held.
func (s *lowMemorySet) syncLocked() error {
	data, err := s.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) <= len(s.mmap) {
		copy(s.mmap, data)
	}
	if err := s.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	s.count = 0
	return nil
}

// LastError returns the last error encountered during a periodic sync,
// without interrupting the crawl.
func (s *lowMemorySet) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *lowMemorySet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.lastErr != nil {
		errs = append(errs, s.lastErr)
	}

	if s.mmap != nil {
		if s.count > 0 {
			if err := s.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		s.mmap = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		s.file = nil
	}
	if s.tmpPath != "" {
		if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		s.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close low-memory fingerprint set: %w", errors.Join(errs...))
	}
	return nil
}
