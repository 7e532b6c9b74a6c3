package parse

import (
	"strings"
	"testing"

	"github.com/corvaxen/grecurl/urlutil"
)

func mustBase(t *testing.T, raw string) *urlutil.IRI {
	t.Helper()
	iri, err := urlutil.ParseIRI(raw, nil)
	if err != nil {
		t.Fatalf("ParseIRI(%q): %v", raw, err)
	}
	return iri
}

func TestExtractHTMLAnchorsAndRequisites(t *testing.T) {
	doc := `<html><body>
		<a href="/page2">p2</a>
		<img src="/img.png">
		<link rel="stylesheet" href="/style.css">
		<link rel="alternate" href="/feed.xml">
		<script src="/app.js"></script>
	</body></html>`

	base := mustBase(t, "http://example.com/")
	links, err := ExtractHTML(strings.NewReader(doc), base)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}

	var anchors, requisites int
	var sawFeedLink bool
	for _, l := range links {
		if l.Requisite {
			requisites++
		} else {
			anchors++
		}
		if strings.Contains(l.URL, "feed.xml") {
			sawFeedLink = true
		}
	}
	if anchors != 1 {
		t.Errorf("expected 1 anchor link, got %d (%+v)", anchors, links)
	}
	if requisites != 3 {
		t.Errorf("expected 3 requisite links (img, css, js), got %d (%+v)", requisites, links)
	}
	if sawFeedLink {
		t.Error("link rel=alternate should not be treated as a requisite")
	}
}

func TestExtractHTMLBaseTag(t *testing.T) {
	doc := `<html><head><base href="http://other.example.com/sub/"></head>
		<body><a href="child">c</a></body></html>`
	base := mustBase(t, "http://example.com/")

	links, err := ExtractHTML(strings.NewReader(doc), base)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if !strings.HasPrefix(links[0].URL, "http://other.example.com/sub/") {
		t.Errorf("expected base href to apply, got %q", links[0].URL)
	}
}

func TestExtractHTMLDedup(t *testing.T) {
	doc := `<a href="/a">1</a><a href="/a">2</a>`
	base := mustBase(t, "http://example.com/")
	links, err := ExtractHTML(strings.NewReader(doc), base)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if len(links) != 1 {
		t.Errorf("expected dedup to 1 link, got %d", len(links))
	}
}
