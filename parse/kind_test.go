package parse

import (
	"testing"

	"github.com/corvaxen/grecurl/config"
)

func TestFromForceMode(t *testing.T) {
	cases := map[config.ContentMode]Kind{
		config.ContentHTML:     KindHTML,
		config.ContentCSS:      KindCSS,
		config.ContentSitemap:  KindSitemap,
		config.ContentAtom:     KindAtom,
		config.ContentRSS:      KindRSS,
		config.ContentMetalink: KindMetalink,
		config.ContentAuto:     KindUnknown,
	}
	for mode, want := range cases {
		if got := FromForceMode(mode); got != want {
			t.Errorf("FromForceMode(%v) = %v, want %v", mode, got, want)
		}
	}
}

func TestFromContentType(t *testing.T) {
	cases := map[string]Kind{
		"text/html; charset=utf-8":  KindHTML,
		"text/css":                  KindCSS,
		"application/atom+xml":      KindAtom,
		"application/rss+xml":       KindRSS,
		"application/xml":           KindSitemap,
		"application/octet-stream":  KindUnknown,
	}
	for ct, want := range cases {
		if got := FromContentType(ct); got != want {
			t.Errorf("FromContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
