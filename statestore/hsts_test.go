package statestore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestHSTSShouldUpgradeExactHost(t *testing.T) {
	s, err := NewHSTSStore("")
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	s.Observe("a.example", time.Hour, false)

	if !s.ShouldUpgrade("a.example") {
		t.Fatal("expected a.example to be upgraded after an HSTS observation")
	}
	if s.ShouldUpgrade("b.example") {
		t.Fatal("an unrelated host should not be upgraded")
	}
}

func TestHSTSShouldUpgradeIncludeSubdomains(t *testing.T) {
	s, err := NewHSTSStore("")
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	s.Observe("a.example", time.Hour, true)

	if !s.ShouldUpgrade("sub.a.example") {
		t.Fatal("expected a subdomain to be upgraded when includeSubDomains is set")
	}
	if s.ShouldUpgrade("notasubdomain.example") {
		t.Fatal("a host that merely shares a suffix string should not match")
	}
}

func TestHSTSShouldUpgradeWithoutIncludeSubdomains(t *testing.T) {
	s, err := NewHSTSStore("")
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	s.Observe("a.example", time.Hour, false)

	if s.ShouldUpgrade("sub.a.example") {
		t.Fatal("a subdomain should not be upgraded without includeSubDomains")
	}
}

func TestHSTSObserveZeroMaxAgeClearsEntry(t *testing.T) {
	s, err := NewHSTSStore("")
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	s.Observe("a.example", time.Hour, false)
	s.Observe("a.example", 0, false)

	if s.ShouldUpgrade("a.example") {
		t.Fatal("a max-age=0 observation should clear the cached policy")
	}
}

func TestHSTSPersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsts.json")
	s, err := NewHSTSStore(path)
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	s.Observe("a.example", time.Hour, true)
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewHSTSStore(path)
	if err != nil {
		t.Fatalf("reload NewHSTSStore: %v", err)
	}
	if !reloaded.ShouldUpgrade("a.example") {
		t.Fatal("expected the persisted HSTS entry to survive a reload")
	}
	if !reloaded.ShouldUpgrade("sub.a.example") {
		t.Fatal("expected includeSubDomains to survive a reload")
	}
}

func TestHSTSSaveWithoutDirtyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsts.json")
	s, err := NewHSTSStore(path)
	if err != nil {
		t.Fatalf("NewHSTSStore: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save on a clean store should not error: %v", err)
	}
}
