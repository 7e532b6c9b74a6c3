package parse

import (
	"fmt"
	"io"

	"github.com/corvaxen/grecurl/urlutil"
)

// Dispatch runs the parser for kind over body and returns the links
// it discovers. KindRobots and KindMetalink are not handled here:
// robots.txt is compiled via ParseRobots into a hostreg.RobotsPolicy,
// never treated as a source of links, and Metalink descriptors are
// parsed by engine.ParseMetalinkXML into a job.Metalink whose pieces
// become download Parts rather than navigable Links.
func Dispatch(kind Kind, body io.Reader, base *urlutil.IRI) ([]Link, error) {
	switch kind {
	case KindHTML:
		return ExtractHTML(body, base)
	case KindCSS:
		return ExtractCSS(body, base)
	case KindSitemap:
		return ExtractSitemap(body, base)
	case KindAtom, KindRSS:
		return ExtractFeed(body, base)
	default:
		return nil, fmt.Errorf("parse: no link extractor for content kind %s", kind)
	}
}
