package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding for a --stats-* report.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
)

// WriteSnapshot writes snap to w in the requested format.
func WriteSnapshot(w io.Writer, format Format, snap Snapshot) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, snap)
	case FormatCSV:
		return writeCSV(w, snap)
	case FormatYAML:
		return writeYAML(w, snap)
	case FormatHuman, "":
		return writeHuman(w, snap)
	default:
		return fmt.Errorf("result: unknown stats format %q", format)
	}
}

// writeJSON mirrors a flat, unescaped, indented encoding style,
// now applied to a run Snapshot instead of a LinkResult slice.
func writeJSON(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("write json stats: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, snap Snapshot) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("write yaml stats: %w", err)
	}
	return nil
}

// writeCSV always includes a header row, single data row (one run).
func writeCSV(w io.Writer, snap Snapshot) error {
	cw := csv.NewWriter(w)

	header := []string{
		"downloads", "redirects", "not_modified", "errors", "nchunks",
		"total_bytes", "redirect_skipped", "robots_skipped", "pattern_skipped",
		"duration_seconds", "exit_code",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := []string{
		strconv.FormatInt(snap.Downloads, 10),
		strconv.FormatInt(snap.Redirects, 10),
		strconv.FormatInt(snap.NotModified, 10),
		strconv.FormatInt(snap.Errors, 10),
		strconv.FormatInt(snap.Chunks, 10),
		strconv.FormatInt(snap.TotalBytes, 10),
		strconv.FormatInt(snap.RedirectSkip, 10),
		strconv.FormatInt(snap.RobotsSkip, 10),
		strconv.FormatInt(snap.PatternSkip, 10),
		strconv.FormatFloat(snap.Duration.Seconds(), 'f', 3, 64),
		strconv.Itoa(snap.ExitCode),
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv stats: %w", err)
	}
	return nil
}

func writeHuman(w io.Writer, snap Snapshot) error {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
	writef("Downloaded: %d files, %d bytes\n", snap.Downloads, snap.TotalBytes)
	writef("Redirects: %d (skipped %d)\n", snap.Redirects, snap.RedirectSkip)
	writef("Not modified: %d\n", snap.NotModified)
	writef("Chunks: %d\n", snap.Chunks)
	writef("Errors: %d\n", snap.Errors)
	writef("Skipped: %d robots, %d pattern\n", snap.RobotsSkip, snap.PatternSkip)
	writef("Elapsed: %s\n", snap.Duration.Round(time.Millisecond))
	writef("Exit code: %d\n", snap.ExitCode)
	return nil
}
