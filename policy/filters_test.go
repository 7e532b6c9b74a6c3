package policy

import "testing"

func TestAllowPathGlobAndSuffix(t *testing.T) {
	f := &Filters{
		Reject: []string{"*.gif", ".tmp"},
	}
	f.Compile()

	cases := map[string]bool{
		"/img/cat.gif": false, // glob match
		"/tmp/x.tmp":   false, // tail-match
		"/index.html":  true,
	}
	for path, want := range cases {
		if got := f.AllowPath(path); got != want {
			t.Errorf("AllowPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAllowPathAcceptOverridesDefault(t *testing.T) {
	f := &Filters{Accept: []string{"*.html"}}
	f.Compile()

	if !f.AllowPath("/index.html") {
		t.Error("expected index.html to be accepted")
	}
	if f.AllowPath("/image.png") {
		t.Error("expected image.png to be rejected when an accept list is set and doesn't match")
	}
}

func TestAllowHostDomainsAndExclude(t *testing.T) {
	f := &Filters{
		Domains:        []string{"example.com"},
		ExcludeDomains: []string{"ads.example.com"},
	}
	if !f.AllowHost("blog.example.com") {
		t.Error("subdomain of an allowed domain should be allowed")
	}
	if f.AllowHost("ads.example.com") {
		t.Error("excluded domain should not be allowed")
	}
	if f.AllowHost("other.com") {
		t.Error("host outside the domains list should not be allowed")
	}
}
