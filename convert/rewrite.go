package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Resolver maps a recorded URL's raw text to a replacement. It
// returns the replacement text and true if the URL corresponds to a
// file saved by this run (a relative path to that local file); it
// returns ok=false when the URL should instead become an absolute
// URL, in which case replacement holds that absolute form. An empty
// replacement leaves the original text untouched.
type Resolver func(entry Entry, offset URLOffset) (replacement string, ok bool)

// Rewrite performs the single-threaded terminal-phase pass: for every
// recorded Entry, reopen its file and splice in resolver's replacement
// at each offset, writing back in place. With backupOriginal, the
// pre-rewrite bytes are first saved alongside the target file with a
// ".orig" suffix.
//
// No results depend on file I/O ordering between Entries, and no
// locks are held during the rewrite: by the time this runs, the
// worker pool has already stopped.
func Rewrite(entries []Entry, resolver Resolver, backupOriginal bool) error {
	for _, entry := range entries {
		if len(entry.Offsets) == 0 {
			continue
		}
		if err := rewriteOne(entry, resolver, backupOriginal); err != nil {
			return fmt.Errorf("convert: %s: %w", entry.LocalFilename, err)
		}
	}
	return nil
}

func rewriteOne(entry Entry, resolver Resolver, backupOriginal bool) error {
	original, err := os.ReadFile(entry.LocalFilename)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	offsets := make([]URLOffset, len(entry.Offsets))
	copy(offsets, entry.Offsets)
	sort.Slice(offsets, func(i, j int) bool { return offsets[i].Start < offsets[j].Start })

	out := make([]byte, 0, len(original))
	cursor := 0
	for _, off := range offsets {
		if off.Start < cursor || off.End > len(original) {
			continue // stale/overlapping offset from a prior pass; skip defensively
		}
		replacement, _ := resolver(entry, off)
		if replacement == "" {
			replacement = off.Raw
		}
		out = append(out, original[cursor:off.Start]...)
		out = append(out, replacement...)
		cursor = off.End
	}
	out = append(out, original[cursor:]...)

	if backupOriginal {
		backupPath := entry.LocalFilename + ".orig"
		if err := os.WriteFile(backupPath, original, 0o644); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}

	info, err := os.Stat(entry.LocalFilename)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(entry.LocalFilename, out, mode)
}

// RelativePath returns the relative path from the directory
// containing fromFile to toFile, for the "relative path to a locally
// downloaded file" case of the rewrite rule.
func RelativePath(fromFile, toFile string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(fromFile), toFile)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
