package parse

import (
	"fmt"
	"io"

	"github.com/corvaxen/grecurl/urlutil"
	"golang.org/x/net/html"
)

// Link is one reference discovered in a parsed document.
type Link struct {
	URL       string
	Requisite bool // page-requisite (image/css/js/...), not a navigable link
	Base      bool // discovered via a <base href> tag
}

// requisiteTags maps tag name to the attribute holding its resource
// URL, for the elements page-requisites mode needs: images,
// stylesheets, scripts, media sources, embeds, and iframes.
var requisiteTags = map[string]string{
	"img":    "src",
	"script": "src",
	"link":   "href", // only when rel=stylesheet or rel=icon, checked below
	"source": "src",
	"audio":  "src",
	"video":  "src",
	"embed":  "src",
	"iframe": "src",
}

// ExtractHTML parses HTML from body and returns every link and
// requisite resource it finds, resolved against base: one tokenizer
// pass collecting anchors, the full requisite-tag set, and <base
// href>, which page-requisites mode and --convert-links bookkeeping
// both need.
func ExtractHTML(body io.Reader, base *urlutil.IRI) ([]Link, error) {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]bool)
	var links []Link
	var errs []error

	effectiveBase := base

	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && err != io.EOF {
				return links, fmt.Errorf("parse html: %w", err)
			}
			if len(errs) > 0 {
				return links, fmt.Errorf("encountered %d link-resolution errors (first: %w)", len(errs), errs[0])
			}
			return links, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()

			if token.Data == "base" {
				if href := attrValue(token, "href"); href != "" {
					if resolved, err := urlutil.ParseIRI(href, base); err == nil {
						effectiveBase = resolved
					}
				}
				continue
			}

			if token.Data == "a" || token.Data == "area" {
				href := attrValue(token, "href")
				if href == "" {
					continue
				}
				addLink(&links, seen, &errs, href, effectiveBase, false)
				continue
			}

			attr, ok := requisiteTags[token.Data]
			if !ok {
				continue
			}
			if token.Data == "link" && !isStylesheetOrIcon(token) {
				continue
			}
			val := attrValue(token, attr)
			if val == "" {
				continue
			}
			addLink(&links, seen, &errs, val, effectiveBase, true)

			if token.Data == "img" {
				if srcset := attrValue(token, "srcset"); srcset != "" {
					for _, u := range parseSrcset(srcset) {
						addLink(&links, seen, &errs, u, effectiveBase, true)
					}
				}
			}
		}
	}
}

func attrValue(token html.Token, key string) string {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isStylesheetOrIcon(token html.Token) bool {
	rel := attrValue(token, "rel")
	return rel == "stylesheet" || rel == "icon" || rel == "shortcut icon"
}

func addLink(links *[]Link, seen map[string]bool, errs *[]error, raw string, base *urlutil.IRI, requisite bool) {
	resolved, err := urlutil.ParseIRI(raw, base)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("resolve %q: %w", raw, err))
		return
	}
	key := resolved.String()
	if seen[key] {
		return
	}
	seen[key] = true
	*links = append(*links, Link{URL: key, Requisite: requisite})
}

// parseSrcset extracts the URL portion of each candidate in a srcset
// attribute, ignoring the width/density descriptor.
func parseSrcset(srcset string) []string {
	var urls []string
	start := 0
	for i := 0; i <= len(srcset); i++ {
		if i == len(srcset) || srcset[i] == ',' {
			candidate := trimSpace(srcset[start:i])
			if sp := indexSpace(candidate); sp >= 0 {
				candidate = candidate[:sp]
			}
			if candidate != "" {
				urls = append(urls, candidate)
			}
			start = i + 1
		}
	}
	return urls
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func indexSpace(s string) int {
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
