package parse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/corvaxen/grecurl/urlutil"
	"github.com/klauspost/compress/gzip"
)

// ExtractSitemap parses an XML sitemap or sitemap index (recognizing
// both <urlset> and <sitemapindex> roots) and returns every <loc>
// entry as a Link; sub-sitemaps from a sitemap index are returned
// as non-requisite links too, so the caller's ordinary recursion
// queues them for a follow-up fetch rather than this function
// recursing itself. Gzip-compressed sitemaps (a ".xml.gz" convention)
// are transparently inflated first.
//
// Index entries are returned as ordinary links for the caller's own
// recursion to re-fetch; nothing recurses inside the parser. Parses
// with antchfx/xmlquery instead of encoding/xml, since xmlquery
// is already in this module's dependency set for arbitrary XML
// traversal and reading every <loc> node is a one-line XPath query
// either way.
func ExtractSitemap(body io.Reader, base *urlutil.IRI) ([]Link, error) {
	reader, err := maybeGunzip(body)
	if err != nil {
		return nil, fmt.Errorf("sitemap: %w", err)
	}

	doc, err := xmlquery.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("sitemap: parse xml: %w", err)
	}

	seen := make(map[string]bool)
	var links []Link
	for _, n := range xmlquery.Find(doc, "//loc") {
		loc := strings.TrimSpace(n.InnerText())
		if loc == "" {
			continue
		}
		addLink(&links, seen, nil, loc, base, false)
	}
	return links, nil
}

// ExtractTextSitemap parses a line-oriented plain-text sitemap (one
// absolute URL per line, blank lines and '#' comments ignored).
func ExtractTextSitemap(body io.Reader, base *urlutil.IRI) ([]Link, error) {
	seen := make(map[string]bool)
	var links []Link

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addLink(&links, seen, nil, line, base, false)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("text sitemap: %w", err)
	}
	return links, nil
}

func maybeGunzip(body io.Reader) (io.Reader, error) {
	br := bufio.NewReader(body)
	peek, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(peek) == 2 && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, gz); err != nil {
			return nil, fmt.Errorf("gunzip: %w", err)
		}
		return &buf, nil
	}
	return br, nil
}
