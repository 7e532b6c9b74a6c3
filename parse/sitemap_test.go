package parse

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

func TestExtractSitemapURLSet(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://example.com/a</loc></url>
  <url><loc>http://example.com/b</loc></url>
</urlset>`
	base := mustBase(t, "http://example.com/")
	links, err := ExtractSitemap(strings.NewReader(xml), base)
	if err != nil {
		t.Fatalf("ExtractSitemap: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}
}

func TestExtractSitemapIndex(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>http://example.com/sitemap1.xml</loc></sitemap>
  <sitemap><loc>http://example.com/sitemap2.xml</loc></sitemap>
</sitemapindex>`
	base := mustBase(t, "http://example.com/")
	links, err := ExtractSitemap(strings.NewReader(xml), base)
	if err != nil {
		t.Fatalf("ExtractSitemap: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 sub-sitemap links, got %d: %+v", len(links), links)
	}
}

func TestExtractSitemapGzipped(t *testing.T) {
	xml := `<urlset><url><loc>http://example.com/a</loc></url></urlset>`
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(xml))
	gz.Close()

	base := mustBase(t, "http://example.com/")
	links, err := ExtractSitemap(&buf, base)
	if err != nil {
		t.Fatalf("ExtractSitemap(gzip): %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link from gzipped sitemap, got %d", len(links))
	}
}

func TestExtractTextSitemap(t *testing.T) {
	text := "http://example.com/a\n# a comment\n\nhttp://example.com/b\n"
	base := mustBase(t, "http://example.com/")
	links, err := ExtractTextSitemap(strings.NewReader(text), base)
	if err != nil {
		t.Fatalf("ExtractTextSitemap: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}
}
