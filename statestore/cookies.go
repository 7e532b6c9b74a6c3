// Package statestore implements the protocol-state caches this core
// treats as opaque (HSTS, HPKP, OCSP, TLS session
// resumption, cookies, netrc). The HSTS, HPKP and cookie stores are
// loaded at init when their feature is enabled and saved at shutdown
// only if marked changed; netrc is only read, and the OCSP and TLS
// session caches are kept in memory and never written to disk. The core
// only depends on these small interfaces; the on-disk shape is a
// documented-but-swappable JSON format.
package statestore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// CookieStore wraps net/http/cookiejar.Jar (paired with
// golang.org/x/net/publicsuffix for correct domain-matching) with the
// load/save/dirty discipline shared by every store in this package.
type CookieStore struct {
	Jar http.CookieJar

	mu    sync.Mutex
	path  string
	dirty bool
}

type cookieRecord struct {
	URL     string         `json:"url"`
	Cookies []*http.Cookie `json:"cookies"`
}

// NewCookieStore creates a cookie jar. If path is non-empty and the
// file exists, previously persisted cookies are loaded into it.
func NewCookieStore(path string) (*CookieStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	s := &CookieStore{Jar: jar, path: path}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read cookie store %s: %w", path, err)
	}
	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse cookie store %s: %w", path, err)
	}
	for _, rec := range records {
		u, err := parseStoreURL(rec.URL)
		if err != nil {
			continue
		}
		jar.SetCookies(u, rec.Cookies)
	}
	return s, nil
}

// MarkDirty records that the in-memory cookie jar changed since the
// last Save and should be flushed at shutdown.
func (s *CookieStore) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Save persists the jar to disk if it was marked dirty and a path was
// configured.
func (s *CookieStore) Save(urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.path == "" {
		return nil
	}

	records := make([]cookieRecord, 0, len(urls))
	for _, raw := range urls {
		u, err := parseStoreURL(raw)
		if err != nil {
			continue
		}
		cookies := s.Jar.Cookies(u)
		if len(cookies) == 0 {
			continue
		}
		records = append(records, cookieRecord{URL: raw, Cookies: cookies})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookie store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write cookie store %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
