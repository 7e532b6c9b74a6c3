package cli

import (
	"reflect"
	"testing"
)

func TestExpandBundlesLegacyNCluster(t *testing.T) {
	got := ExpandBundles([]string{"grecurl", "-ncH", "http://example.com/"})
	want := []string{"grecurl", "--no-clobber", "--no-host-directories", "http://example.com/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandBundles() = %v, want %v", got, want)
	}
}

func TestExpandBundlesSimpleCluster(t *testing.T) {
	got := ExpandBundles([]string{"-rkp"})
	want := []string{"--recursive", "--convert-links", "--page-requisites"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandBundles() = %v, want %v", got, want)
	}
}

func TestExpandBundlesLeavesLongFlagsAlone(t *testing.T) {
	args := []string{"--recursive", "--level=3", "-O", "out.html"}
	got := ExpandBundles(args)
	if !reflect.DeepEqual(got, args) {
		t.Errorf("ExpandBundles() modified long-form args: %v", got)
	}
}

func TestExpandBundlesStopsAtEndOfOptions(t *testing.T) {
	args := []string{"-rkp", "--", "-rkp"}
	got := ExpandBundles(args)
	want := []string{"--recursive", "--convert-links", "--page-requisites", "--", "-rkp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandBundles() = %v, want %v", got, want)
	}
}

func TestExpandBundlesUnrecognizedBundleUntouched(t *testing.T) {
	args := []string{"-xyz"}
	got := ExpandBundles(args)
	if !reflect.DeepEqual(got, args) {
		t.Errorf("ExpandBundles() should leave unrecognized bundle as-is, got %v", got)
	}
}
