package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// IRI is the parsed form of a URL used throughout admission and the
// engine: scheme, host, port, a normalized path, query, and a cached
// string form. Scheme is always one of http/https, the host is
// lowercase and IDN-normalized, and the path keeps its directory
// prefix intact so parent-ascent checks can compare against it
// directly.
type IRI struct {
	Scheme string
	Host   string // lowercase, IDN (punycode) normalized
	Port   string // "" if the URL gives no port; an explicit default port is kept
	Path   string
	Query  string

	cached string
}

var idnaProfile = idna.New(idna.MapForLookup(), idna.Transitional(false))

// ParseIRI parses rawURL, optionally resolved against base, enforcing
// scheme in {http, https} and normalizing the host.
func ParseIRI(rawURL string, base *IRI) (*IRI, error) {
	if rawURL == "" {
		return nil, errors.New("cannot resolve URI: empty string")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve URI %q: %w", rawURL, err)
	}

	if base != nil && !u.IsAbs() {
		baseURL, err := url.Parse(base.String())
		if err != nil {
			return nil, fmt.Errorf("cannot resolve URI %q against base: %w", rawURL, err)
		}
		u = baseURL.ResolveReference(u)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cannot resolve URI %q: missing scheme or host", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("cannot resolve URI %q: unsupported scheme %q", rawURL, scheme)
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("cannot resolve URI %q: %w", rawURL, err)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	iri := &IRI{
		Scheme: scheme,
		Host:   host,
		Port:   u.Port(),
		Path:   path,
		Query:  u.RawQuery,
	}
	return iri, nil
}

// normalizeHost lowercases an ASCII host and converts any IDN labels
// to their ASCII (punycode) form.
func normalizeHost(host string) (string, error) {
	host = strings.ToLower(host)
	if isASCII(host) {
		return host, nil
	}
	ascii, err := idnaProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("IDN host %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// String renders the IRI back to a URL string, caching the result.
func (u *IRI) String() string {
	if u.cached != "" {
		return u.cached
	}
	host := u.Host
	if u.Port != "" {
		host = host + ":" + u.Port
	}
	s := u.Scheme + "://" + host + u.Path
	if u.Query != "" {
		s += "?" + u.Query
	}
	u.cached = s
	return s
}

// DefaultPort returns the scheme's default port ("80" or "443").
func (u *IRI) DefaultPort() string {
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// EffectivePort returns Port, or DefaultPort if Port is unset.
func (u *IRI) EffectivePort() string {
	if u.Port != "" {
		return u.Port
	}
	return u.DefaultPort()
}

// DirPrefix returns the directory-prefix of Path: everything up to and
// including the final "/". Parent-ascent comparisons match against
// this prefix.
func (u *IRI) DirPrefix() string {
	if i := strings.LastIndexByte(u.Path, '/'); i >= 0 {
		return u.Path[:i+1]
	}
	return "/"
}
