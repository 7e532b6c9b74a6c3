// Package policy implements the accept/reject pattern, regex, and
// host/domain filters. Pattern lists are either
// suffix patterns (tail-match, case-optional) or shell globs
// (*?[]), matched as filename matches; regex patterns are compiled with
// Go's regexp package (RE2 syntax), and there is no option to pick a
// POSIX or PCRE engine instead. inPatternList short-circuits on first
// match.
//
// The deliberate fnmatch/tail-match mix is preserved from the source
// system rather than "fixed": a pattern list may contain plain
// suffixes ("*.pdf" is a glob, but ".pdf" with no glob metacharacters
// is matched as a tail-match) and both kinds are tried for every
// pattern in the list.
package policy

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Filters bundles every pattern-based accept/reject decision.
type Filters struct {
	Accept         []string
	Reject         []string
	AcceptRegex    []*regexp.Regexp
	RejectRegex    []*regexp.Regexp
	Domains        []string // span-hosts allow-list
	ExcludeDomains []string

	compiledAccept []compiledPattern
	compiledReject []compiledPattern
}

type compiledPattern struct {
	raw     string
	isGlob  bool
	globber glob.Glob
}

// hasGlobMeta reports whether s contains shell glob metacharacters.
func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[]")
}

func compile(pattern string) compiledPattern {
	if hasGlobMeta(pattern) {
		g, err := glob.Compile(pattern)
		if err == nil {
			return compiledPattern{raw: pattern, isGlob: true, globber: g}
		}
	}
	return compiledPattern{raw: pattern, isGlob: false}
}

// Compile finalizes the glob compilation for Accept/Reject. Call once
// after populating the struct fields from CLI flags.
func (f *Filters) Compile() {
	f.compiledAccept = make([]compiledPattern, len(f.Accept))
	for i, p := range f.Accept {
		f.compiledAccept[i] = compile(p)
	}
	f.compiledReject = make([]compiledPattern, len(f.Reject))
	for i, p := range f.Reject {
		f.compiledReject[i] = compile(p)
	}
}

// inPatternList reports whether name matches any pattern in list,
// trying both a shell glob and a case-optional tail-match for every
// entry, and short-circuiting on the first match.
func inPatternList(list []compiledPattern, name string) bool {
	lowerName := strings.ToLower(name)
	for _, p := range list {
		if p.isGlob && p.globber.Match(name) {
			return true
		}
		// Tail-match fallback, always tried regardless of whether the
		// pattern also parsed as a glob — this mirrors the source
		// system's mixed fnmatch/tail-match semantics rather than
		// picking one.
		if strings.HasSuffix(name, p.raw) || strings.HasSuffix(lowerName, strings.ToLower(p.raw)) {
			return true
		}
	}
	return false
}

// AllowPath applies the accept/reject pattern and regex lists to a
// URL path (matched as a filename). Reject wins over
// accept when both match; an empty Accept list allows everything not
// otherwise rejected.
func (f *Filters) AllowPath(path string) bool {
	if inPatternList(f.compiledReject, path) {
		return false
	}
	for _, re := range f.RejectRegex {
		if re.MatchString(path) {
			return false
		}
	}

	if len(f.compiledAccept) == 0 && len(f.AcceptRegex) == 0 {
		return true
	}
	if len(f.compiledAccept) > 0 && inPatternList(f.compiledAccept, path) {
		return true
	}
	for _, re := range f.AcceptRegex {
		if re.MatchString(path) {
			return true
		}
	}
	return len(f.compiledAccept) == 0 && len(f.AcceptRegex) == 0
}

// AllowHost applies the --domains/--exclude-domains host-pattern lists
// (glob-or-suffix against hostnames).
func (f *Filters) AllowHost(host string) bool {
	for _, pattern := range f.ExcludeDomains {
		if hostMatch(pattern, host) {
			return false
		}
	}
	if len(f.Domains) == 0 {
		return true
	}
	for _, pattern := range f.Domains {
		if hostMatch(pattern, host) {
			return true
		}
	}
	return false
}

func hostMatch(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	host = strings.ToLower(host)
	if hasGlobMeta(pattern) {
		if g, err := glob.Compile(pattern); err == nil && g.Match(host) {
			return true
		}
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
