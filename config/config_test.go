package config

import "testing"

func TestDefaultValidatesOnlyWithSeed(t *testing.T) {
	r := Default()
	if err := r.Validate(); err == nil {
		t.Error("expected Validate to fail with no seed URLs and no input file")
	}
	r.SeedURLs = []string{"http://example.com/"}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateMutualExclusions(t *testing.T) {
	r := Default()
	r.SeedURLs = []string{"http://example.com/"}
	r.OutputDocument = "out.html"
	r.Mirror = true
	if err := r.Validate(); err == nil {
		t.Error("expected -O and --mirror to be rejected together")
	}
}

func TestApplyDirectivesMergesOntoDefaults(t *testing.T) {
	r := Default()
	r.ApplyDirectives([]RCDirective{
		{Key: "tries", Value: "7"},
		{Key: "recursive", Value: ""},
		{Key: "accept", Value: "*.html, *.css"},
		{Key: "mirror", Value: "true"},
	})

	if r.Tries != 7 {
		t.Errorf("Tries = %d, want 7", r.Tries)
	}
	if !r.Recursive {
		t.Error("expected Recursive to be true for bare directive")
	}
	if len(r.Accept) != 2 || r.Accept[0] != "*.html" || r.Accept[1] != "*.css" {
		t.Errorf("Accept = %+v", r.Accept)
	}
	if !r.Mirror {
		t.Error("expected Mirror true")
	}
}

func TestApplyDirectivesIgnoresUnknownKey(t *testing.T) {
	r := Default()
	beforeTries := r.Tries
	r.ApplyDirectives([]RCDirective{{Key: "totally-unknown-key", Value: "x"}})
	if r.Tries != beforeTries {
		t.Error("unknown directive should not mutate Runtime")
	}
}
