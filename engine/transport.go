package engine

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/statestore"
)

// NewHTTPClient builds the *http.Client a worker uses for every
// request, wired from cfg's HTTPS/proxy/timeout settings. CheckRedirect
// always returns http.ErrUseLastResponse: redirects are admitted
// through Admitter.Admit as ordinary Candidates, never followed
// transparently by net/http.
func NewHTTPClient(cfg *config.Runtime, jar http.CookieJar, ocspStore *statestore.OCSPStore) (*http.Client, error) {
	tlsConfig, err := buildTLSConfig(cfg, ocspStore)
	if err != nil {
		return nil, err
	}

	dialTimeout := cfg.ConnectTimeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 proxyFunc(cfg),
		TLSClientConfig:       tlsConfig,
		DisableKeepAlives:     !cfg.KeepAlive,
		DisableCompression:    true, // codecTransport negotiates Accept-Encoding itself
		DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &http.Client{
		Transport: &codecTransport{base: transport},
		Jar:       jar,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func buildTLSConfig(cfg *config.Runtime, ocspStore *statestore.OCSPStore) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.NoCheckCertificate,
		MinVersion:         secureProtocolMinVersion(cfg.SecureProtocolOpt),
	}
	if cfg.TLSResume {
		tlsConfig.ClientSessionCache = statestore.NewTLSSessionCache(0)
	}

	if cfg.CAFile != "" || cfg.CADirectory != "" {
		pool, err := loadCAPool(cfg.CAFile, cfg.CADirectory)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.Certificate != "" && cfg.PrivateKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("engine: load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.OCSP && ocspStore != nil {
		tlsConfig.VerifyConnection = ocspVerifier(ocspStore)
	}

	return tlsConfig, nil
}

// ocspVerifier checks a connection's leaf certificate against a
// cached OCSP status, consulting the stapled response (if the server
// sent one) and caching it in store keyed by serial number. A
// certificate with no stapled response and no cached status is
// allowed through: this is a best-effort revocation check, not a
// hard-fail OCSP-must-staple policy.
func ocspVerifier(store *statestore.OCSPStore) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.VerifiedChains) == 0 || len(cs.VerifiedChains[0]) < 2 {
			return nil
		}
		leaf := cs.VerifiedChains[0][0]
		issuer := cs.VerifiedChains[0][1]
		serial := leaf.SerialNumber.Text(16)

		if status, ok := store.Lookup(serial); ok {
			if status == ocspRevoked {
				return fmt.Errorf("engine: certificate %s revoked (cached OCSP status)", serial)
			}
			return nil
		}
		if len(cs.OCSPResponse) == 0 {
			return nil
		}
		if err := store.Store(serial, cs.OCSPResponse, issuer); err != nil {
			return nil
		}
		if status, ok := store.Lookup(serial); ok && status == ocspRevoked {
			return fmt.Errorf("engine: certificate %s revoked (stapled OCSP response)", serial)
		}
		return nil
	}
}

// ocspRevoked mirrors golang.org/x/crypto/ocsp.Revoked without
// importing the package here for a single constant.
const ocspRevoked = 1

func secureProtocolMinVersion(proto config.SecureProtocol) uint16 {
	switch proto {
	case config.SecureTLS1:
		return tls.VersionTLS10
	case config.SecureTLS2:
		return tls.VersionTLS12
	case config.SecureTLS3:
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func loadCAPool(caFile, caDir string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("engine: read CA file %s: %w", caFile, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("engine: no certificates parsed from CA file %s", caFile)
		}
	}
	if caDir != "" {
		entries, err := os.ReadDir(caDir)
		if err != nil {
			return nil, fmt.Errorf("engine: read CA directory %s: %w", caDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			pem, err := os.ReadFile(caDir + "/" + entry.Name())
			if err != nil {
				continue
			}
			pool.AppendCertsFromPEM(pem)
		}
	}
	return pool, nil
}

// proxyFunc builds a per-request proxy resolver from cfg's
// HTTPProxy/HTTPSProxy/NoProxy settings, falling back to the standard
// environment-variable resolution when none are configured.
func proxyFunc(cfg *config.Runtime) func(*http.Request) (*url.URL, error) {
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		for _, excluded := range cfg.NoProxy {
			if hostMatchesNoProxy(req.URL.Hostname(), excluded) {
				return nil, nil
			}
		}
		switch req.URL.Scheme {
		case "https":
			if cfg.HTTPSProxy != "" {
				return url.Parse(cfg.HTTPSProxy)
			}
		default:
			if cfg.HTTPProxy != "" {
				return url.Parse(cfg.HTTPProxy)
			}
		}
		return nil, nil
	}
}

func hostMatchesNoProxy(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
