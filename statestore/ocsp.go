package statestore

import (
	"crypto/x509"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// OCSPEntry caches a parsed OCSP response for a certificate serial
// number, avoiding a revocation round-trip on every connection to the
// same host.
type OCSPEntry struct {
	Status     int
	NextUpdate time.Time
}

// OCSPStore is an in-memory OCSP response cache keyed by the
// certificate's serial number (hex). Unlike the other stores, OCSP
// responses are short-lived (bounded by NextUpdate), so no disk
// persistence is implemented.
type OCSPStore struct {
	mu      sync.RWMutex
	entries map[string]OCSPEntry
}

// NewOCSPStore creates an empty OCSP cache.
func NewOCSPStore() *OCSPStore {
	return &OCSPStore{entries: make(map[string]OCSPEntry)}
}

// Lookup returns a cached OCSP status for serialHex if it hasn't
// passed its NextUpdate.
func (s *OCSPStore) Lookup(serialHex string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[serialHex]
	if !ok || time.Now().After(e.NextUpdate) {
		return 0, false
	}
	return e.Status, true
}

// Store parses a raw OCSP response (DER) against the issuer
// certificate and caches its status.
func (s *OCSPStore) Store(serialHex string, raw []byte, issuer *x509.Certificate) error {
	resp, err := ocsp.ParseResponseForCert(raw, nil, issuer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[serialHex] = OCSPEntry{Status: resp.Status, NextUpdate: resp.NextUpdate}
	return nil
}
