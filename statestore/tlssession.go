package statestore

import "crypto/tls"

// NewTLSSessionCache returns a bounded TLS session-resumption cache
// shared across the worker pool's connections.
func NewTLSSessionCache(capacity int) tls.ClientSessionCache {
	if capacity <= 0 {
		capacity = 64
	}
	return tls.NewLRUClientSessionCache(capacity)
}
