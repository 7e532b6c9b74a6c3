package parse

import "testing"

func TestParseRobotsAllowsAndDisallows(t *testing.T) {
	body := []byte("User-agent: *\nDisallow: /private\nAllow: /private/public\nSitemap: http://example.com/sitemap.xml\n")

	policy := ParseRobots(body, "grecurl")
	if !policy.Loaded {
		t.Fatal("expected policy to be loaded")
	}
	if policy.Allowed("/private/secret") {
		t.Error("expected /private/secret to be disallowed")
	}
	if !policy.Allowed("/private/public") {
		t.Error("expected /private/public to be allowed (more specific Allow)")
	}
	if !policy.Allowed("/anything-else") {
		t.Error("expected unrelated paths to be allowed")
	}
	if len(policy.Sitemaps) != 1 || policy.Sitemaps[0] != "http://example.com/sitemap.xml" {
		t.Errorf("expected sitemap to be captured, got %+v", policy.Sitemaps)
	}
}

func TestParseRobotsMalformedIsAllowAll(t *testing.T) {
	policy := ParseRobots([]byte{0xff, 0xfe, 0x00, 0x01}, "grecurl")
	if !policy.Allowed("/anything") {
		t.Error("malformed robots.txt should be treated as allow-all")
	}
}
