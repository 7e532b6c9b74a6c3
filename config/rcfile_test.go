package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestParseRCFileBasic(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "rc", "tries = 5\n# a comment\nuser-agent = \"my agent\"\n")

	directives, err := ParseRCFile(path)
	if err != nil {
		t.Fatalf("ParseRCFile: %v", err)
	}
	if len(directives) != 2 {
		t.Fatalf("expected 2 directives, got %d: %+v", len(directives), directives)
	}
	if directives[0].Key != "tries" || directives[0].Value != "5" {
		t.Errorf("unexpected first directive: %+v", directives[0])
	}
	if directives[1].Key != "user-agent" || directives[1].Value != "my agent" {
		t.Errorf("unexpected second directive: %+v", directives[1])
	}
}

func TestParseRCFileLineContinuation(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "rc", "accept = foo,\\\nbar,\\\nbaz\n")

	directives, err := ParseRCFile(path)
	if err != nil {
		t.Fatalf("ParseRCFile: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	if directives[0].Value != "foo,bar,baz" {
		t.Errorf("continuation not joined correctly: %q", directives[0].Value)
	}
}

func TestParseRCFileInclude(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "included.rc", "tries = 3\n")
	path := writeTempFile(t, dir, "main.rc", "include included.rc\ntimeout = 60\n")

	directives, err := ParseRCFile(path)
	if err != nil {
		t.Fatalf("ParseRCFile: %v", err)
	}
	if len(directives) != 2 {
		t.Fatalf("expected 2 directives, got %d: %+v", len(directives), directives)
	}
	if directives[0].Key != "tries" || directives[1].Key != "timeout" {
		t.Errorf("unexpected directive order: %+v", directives)
	}
}

func TestParseRCFileIncludeRecursionLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "self.rc")
	if err := os.WriteFile(path, []byte("include self.rc\n"), 0o644); err != nil {
		t.Fatalf("write self-including file: %v", err)
	}

	if _, err := ParseRCFile(path); err == nil {
		t.Error("expected an error for runaway include recursion")
	}
}

func TestParseRCFileMissingIsNotError(t *testing.T) {
	directives, err := ParseRCFile(filepath.Join(t.TempDir(), "does-not-exist.rc"))
	if err != nil {
		t.Fatalf("missing top-level rcfile should not error: %v", err)
	}
	if len(directives) != 0 {
		t.Errorf("expected no directives, got %+v", directives)
	}
}

func TestRCPathPrecedence(t *testing.T) {
	if got := RCPath("/explicit/path"); got != "/explicit/path" {
		t.Errorf("explicit path should win, got %q", got)
	}

	t.Setenv("SYSTEM_GRECURLRC", "/system/path")
	t.Setenv("GRECURLRC", "/env/path")
	if got := RCPath(""); got != "/system/path" {
		t.Errorf("SYSTEM_GRECURLRC should win over GRECURLRC, got %q", got)
	}

	os.Unsetenv("SYSTEM_GRECURLRC")
	if got := RCPath(""); got != "/env/path" {
		t.Errorf("GRECURLRC should win when SYSTEM_GRECURLRC unset, got %q", got)
	}
}
