package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxIncludeDepth = 20

// RCDirective is one "key = value" (or "key value") line from a
// config file, after continuation and quote handling.
type RCDirective struct {
	Key   string
	Value string
}

// RCPath resolves the config file search order: SYSTEM_GRECURLRC,
// GRECURLRC, ~/.grecurlrc, with --config-file overriding all of them
// (explicit wins, then environment, then the user's home).
func RCPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("SYSTEM_GRECURLRC"); p != "" {
		return p
	}
	if p := os.Getenv("GRECURLRC"); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".grecurlrc")
	}
	return ""
}

// ParseRCFile reads path and any files it includes (via "include
// FILE"), applying trailing-backslash line continuation and single-
// or double-quote stripping, and returns the flattened directive
// list in file order. include recursion deeper than 20 is an error.
func ParseRCFile(path string) ([]RCDirective, error) {
	var out []RCDirective
	if path == "" {
		return out, nil
	}
	if err := parseRCFile(path, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseRCFile(path string, depth int, out *[]RCDirective) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config: include recursion exceeds depth %d at %s", maxIncludeDepth, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var pending strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmed, "\\"))
			continue
		}
		pending.WriteString(line)
		full := pending.String()
		pending.Reset()

		directive, ok := parseRCLine(full)
		if !ok {
			continue
		}
		if strings.EqualFold(directive.Key, "include") {
			includePath := directive.Value
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(filepath.Dir(path), includePath)
			}
			if err := parseRCFile(includePath, depth+1, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, directive)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// parseRCLine splits one logical (post-continuation) line into a key
// and a quote-stripped value. Blank lines and lines starting with '#'
// are skipped.
func parseRCLine(line string) (RCDirective, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return RCDirective{}, false
	}

	var key, value string
	if idx := strings.IndexByte(trimmed, '='); idx >= 0 {
		key = strings.TrimSpace(trimmed[:idx])
		value = strings.TrimSpace(trimmed[idx+1:])
	} else if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		key = trimmed[:idx]
		value = strings.TrimSpace(trimmed[idx+1:])
	} else {
		key = trimmed
	}

	value = unquote(value)
	return RCDirective{Key: key, Value: value}, true
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
