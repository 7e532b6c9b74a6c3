package parse

import (
	"fmt"
	"io"

	"github.com/corvaxen/grecurl/urlutil"
	"github.com/mmcdole/gofeed"
)

// ExtractFeed parses an Atom or RSS document and returns each item's
// link plus any enclosure URLs, resolved against base. mmcdole/gofeed
// handles both formats transparently, so force-atom and force-rss
// share one implementation (the distinction only matters for
// content-type sniffing in parse.FromContentType).
func ExtractFeed(body io.Reader, base *urlutil.IRI) ([]Link, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	seen := make(map[string]bool)
	var links []Link

	if feed.Link != "" {
		addLink(&links, seen, nil, feed.Link, base, false)
	}
	for _, item := range feed.Items {
		if item.Link != "" {
			addLink(&links, seen, nil, item.Link, base, false)
		}
		for _, enc := range item.Enclosures {
			if enc.URL != "" {
				addLink(&links, seen, nil, enc.URL, base, true)
			}
		}
	}
	return links, nil
}
