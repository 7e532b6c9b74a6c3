// Package parse dispatches a fetched response body to the right
// content parser (HTML, CSS, Atom/RSS, XML/text sitemap, robots.txt)
// and returns the links/resources it discovers.
package parse

import (
	"mime"
	"strings"

	"github.com/corvaxen/grecurl/config"
)

// Kind is the closed set of content parsers grecurl knows how to run
// over a response body, one per force-* flag.
type Kind int

const (
	KindUnknown Kind = iota
	KindHTML
	KindCSS
	KindSitemap
	KindAtom
	KindRSS
	KindMetalink
	KindRobots
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindCSS:
		return "css"
	case KindSitemap:
		return "sitemap"
	case KindAtom:
		return "atom"
	case KindRSS:
		return "rss"
	case KindMetalink:
		return "metalink"
	case KindRobots:
		return "robots"
	default:
		return "unknown"
	}
}

// FromForceMode maps a config.ContentMode to its Kind, or KindUnknown
// if the mode is ContentAuto (content-type sniffing applies instead).
func FromForceMode(mode config.ContentMode) Kind {
	switch mode {
	case config.ContentHTML:
		return KindHTML
	case config.ContentCSS:
		return KindCSS
	case config.ContentSitemap:
		return KindSitemap
	case config.ContentAtom:
		return KindAtom
	case config.ContentRSS:
		return KindRSS
	case config.ContentMetalink:
		return KindMetalink
	default:
		return KindUnknown
	}
}

// FromContentType sniffs a Kind from a Content-Type header value, the
// fallback path when no force-* flag pins the parser. An absent or
// unrecognized header yields KindUnknown.
func FromContentType(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return KindHTML
	case mediaType == "text/css":
		return KindCSS
	case mediaType == "application/atom+xml":
		return KindAtom
	case mediaType == "application/rss+xml":
		return KindRSS
	case mediaType == "application/xml" || mediaType == "text/xml":
		return KindSitemap
	case mediaType == "application/metalink4+xml" || mediaType == "application/metalink+xml":
		return KindMetalink
	default:
		return KindUnknown
	}
}
