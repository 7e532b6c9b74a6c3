package parse

import (
	"fmt"
	"io"
	"strings"

	"github.com/corvaxen/grecurl/urlutil"
)

// ExtractCSS scans a CSS stylesheet for url(...) references and
// @import rules, resolving each against base. This is a small
// hand-rolled scanner rather than a borrowed library; nothing on the
// shelf parses CSS for embedded URLs.
func ExtractCSS(body io.Reader, base *urlutil.IRI) ([]Link, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read css: %w", err)
	}
	src := string(data)

	seen := make(map[string]bool)
	var links []Link

	for _, raw := range findURLFunctions(src) {
		addLink(&links, seen, nil, raw, base, true)
	}
	for _, raw := range findImports(src) {
		addLink(&links, seen, nil, raw, base, true)
	}
	return links, nil
}

// findURLFunctions returns the raw (unquoted) argument of every
// url(...) occurrence.
func findURLFunctions(src string) []string {
	var out []string
	idx := 0
	for {
		pos := strings.Index(src[idx:], "url(")
		if pos < 0 {
			break
		}
		start := idx + pos + len("url(")
		end := strings.IndexByte(src[start:], ')')
		if end < 0 {
			break
		}
		arg := strings.TrimSpace(src[start : start+end])
		arg = unquoteCSS(arg)
		if arg != "" {
			out = append(out, arg)
		}
		idx = start + end + 1
	}
	return out
}

// findImports returns the raw target of every @import "..." or
// @import 'url(...)' rule that doesn't already use url(...).
func findImports(src string) []string {
	var out []string
	idx := 0
	for {
		pos := strings.Index(src[idx:], "@import")
		if pos < 0 {
			break
		}
		start := idx + pos + len("@import")
		rest := strings.TrimSpace(src[start:])
		if strings.HasPrefix(rest, "url(") {
			idx = start
			continue
		}
		if len(rest) == 0 {
			break
		}
		quote := rest[0]
		if quote != '"' && quote != '\'' {
			idx = start
			continue
		}
		end := strings.IndexByte(rest[1:], quote)
		if end < 0 {
			break
		}
		out = append(out, rest[1:1+end])
		idx = start + 1 + end
	}
	return out
}

func unquoteCSS(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
