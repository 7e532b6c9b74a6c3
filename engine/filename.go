package engine

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/urlutil"
)

// DeriveFilename builds the local save path
// from a URL and the resolved config, before any clash resolution.
func DeriveFilename(cfg *config.Runtime, iri *urlutil.IRI) string {
	if cfg.OutputDocument != "" {
		return cfg.OutputDocument
	}

	var parts []string
	if cfg.Prefix != "" {
		parts = append(parts, cfg.Prefix)
	}
	if !cfg.NoHostDirectories {
		parts = append(parts, iri.Host)
	}

	segments := strings.Split(strings.Trim(iri.Path, "/"), "/")
	if len(segments) > 0 && segments[0] == "" {
		segments = nil
	}
	if cfg.CutDirs > 0 && cfg.CutDirs < len(segments) {
		segments = segments[cfg.CutDirs:]
	} else if cfg.CutDirs >= len(segments) {
		segments = nil
	}

	if cfg.NoDirectories {
		if len(segments) > 0 {
			segments = segments[len(segments)-1:]
		}
	}

	name := "index.html"
	if len(segments) > 0 {
		name = segments[len(segments)-1]
		segments = segments[:len(segments)-1]
	}

	if iri.Query != "" {
		name = encodeQueryIntoName(name, iri.Query)
	}

	if !cfg.NoHostDirectories || len(parts) > 0 {
		parts = append(parts, segments...)
	} else {
		parts = segments
	}
	parts = append(parts, name)

	full := path.Join(parts...)
	return restrictFileName(full, cfg.RestrictFileNames)
}

// encodeQueryIntoName folds a URL's query string into the local
// filename (rather than dropping it, which cut_file_get_vars would
// do instead), so that "/a?x=1" and "/a?x=2" save to distinct files.
func encodeQueryIntoName(name, query string) string {
	return name + "@" + url.QueryEscape(query)
}

// restrictFileName applies the --restrict-file-names variant to every
// path segment independently, leaving path separators untouched.
func restrictFileName(p string, mode string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = restrictSegment(seg, mode)
	}
	return strings.Join(segments, "/")
}

func restrictSegment(seg, mode string) string {
	switch mode {
	case "windows":
		seg = replaceAny(seg, `\/:*?"<>|`, '_')
	case "ascii":
		seg = stripNonASCII(seg)
		seg = replaceAny(seg, "\x00", '_')
	case "nocontrol":
		seg = stripControl(seg)
	case "lowercase":
		seg = strings.ToLower(seg)
	case "uppercase":
		seg = strings.ToUpper(seg)
	case "unix", "":
		seg = replaceAny(seg, "\x00", '_')
	}
	return seg
}

func replaceAny(s, cutset string, repl byte) string {
	b := []byte(s)
	for i, c := range b {
		if strings.IndexByte(cutset, c) >= 0 {
			b[i] = repl
		}
	}
	return string(b)
}

func stripControl(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x20 {
			b = append(b, s[i])
		}
	}
	return string(b)
}

func stripNonASCII(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 0x80 {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// SavePolicy is the decision made at save time: truncate, refuse
// overwrite, append to a partial file, or rotate backups first.
type SavePolicy struct {
	Timestamping bool
	NoClobber    bool
	Continue     bool // append to an existing partial file (server honored Range)
	Backups      int  // rotate file, file.1 ... file.N before write when > 0
}

// OpenForSave opens filename for writing according to policy,
// creating any missing parent directories and resolving name/directory
// clashes with numeric suffixes up to ".999". The caller is
// responsible for closing the returned file.
func OpenForSave(filename string, policy SavePolicy) (*os.File, string, error) {
	if err := os.MkdirAll(path.Dir(filename), 0o755); err != nil {
		return nil, "", fmt.Errorf("engine: create directory for %s: %w", filename, err)
	}

	if policy.Backups > 0 {
		rotateBackups(filename, policy.Backups)
	}

	flag := os.O_WRONLY | os.O_CREATE
	switch {
	case policy.Continue:
		flag |= os.O_APPEND
	case policy.Timestamping:
		flag |= os.O_TRUNC
	case policy.NoClobber:
		flag |= os.O_EXCL
	default:
		flag |= os.O_TRUNC
	}

	f, err := os.OpenFile(filename, flag, 0o644)
	if err == nil {
		return f, filename, nil
	}
	if !os.IsExist(err) && !isDirectoryClash(err) {
		return nil, "", fmt.Errorf("engine: open %s: %w", filename, err)
	}

	// Clash: try unique numeric suffixes .1 through .999.
	for i := 1; i <= 999; i++ {
		candidate := fmt.Sprintf("%s.%d", filename, i)
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("engine: open %s: %w", candidate, err)
		}
	}
	return nil, "", fmt.Errorf("engine: could not resolve a unique filename for %s after 999 attempts", filename)
}

func isDirectoryClash(err error) bool {
	return os.IsExist(err) || strings.Contains(err.Error(), "is a directory")
}

// rotateBackups renames filename.(N-1) -> filename.N down to
// filename -> filename.1, best-effort (a missing source is not an
// error).
func rotateBackups(filename string, n int) {
	for i := n; i > 0; i-- {
		dst := fmt.Sprintf("%s.%d", filename, i)
		var src string
		if i == 1 {
			src = filename
		} else {
			src = fmt.Sprintf("%s.%d", filename, i-1)
		}
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
}
