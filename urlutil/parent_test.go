package urlutil

import "testing"

func mustParse(t *testing.T, raw string) *IRI {
	t.Helper()
	iri, err := ParseIRI(raw, nil)
	if err != nil {
		t.Fatalf("ParseIRI(%q): %v", raw, err)
	}
	return iri
}

func TestUnderParent(t *testing.T) {
	seeds := []*IRI{mustParse(t, "http://a.example/docs/start.html")}

	cases := []struct {
		url  string
		want bool
	}{
		{"http://a.example/docs/page.html", true},
		{"http://a.example/docs/sub/deep.html", true},
		{"http://a.example/other/page.html", false},
		{"http://a.example/", false},
		{"http://b.example/docs/page.html", false},
		{"https://a.example/docs/page.html", false},
	}
	for _, tc := range cases {
		got := UnderParent(mustParse(t, tc.url), seeds)
		if got != tc.want {
			t.Errorf("UnderParent(%s) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestUnderParentMultipleSeeds(t *testing.T) {
	seeds := []*IRI{
		mustParse(t, "http://a.example/docs/"),
		mustParse(t, "http://a.example/blog/index.html"),
	}
	if !UnderParent(mustParse(t, "http://a.example/blog/post.html"), seeds) {
		t.Errorf("a path under any seed's directory should pass")
	}
	if UnderParent(mustParse(t, "http://a.example/admin/"), seeds) {
		t.Errorf("a path under no seed's directory should fail")
	}
}

func TestUnderParentPortSensitivity(t *testing.T) {
	seeds := []*IRI{mustParse(t, "http://a.example:8080/docs/")}
	if UnderParent(mustParse(t, "http://a.example/docs/page.html"), seeds) {
		t.Errorf("default port 80 should not match a seed on :8080")
	}
	if !UnderParent(mustParse(t, "http://a.example:8080/docs/page.html"), seeds) {
		t.Errorf("matching explicit port should pass")
	}
}
