package convert

import (
	"bytes"

	"golang.org/x/net/html"
)

// linkAttrs mirrors parse.requisiteTags plus anchor/area href, kept
// as a separate table here rather than importing package parse so the
// recorder has no dependency on the link-extraction package — it only
// needs to know where a URL-bearing attribute's value sits in the raw
// bytes, not what it resolves to.
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"img":    "src",
	"script": "src",
	"link":   "href",
	"source": "src",
	"audio":  "src",
	"video":  "src",
	"embed":  "src",
	"iframe": "src",
}

// ScanOffsets tokenizes raw HTML and returns the byte offset of every
// URL-bearing attribute value, for later use by Rewrite. It works
// directly off the x/net/html tokenizer's Raw() accessor, summing
// consumed bytes as it goes, then locating each attribute's value
// text within that token's raw bytes — the same general technique a
// post-hoc link converter needs regardless of language, since the
// tokenizer itself does not expose attribute-value offsets.
func ScanOffsets(raw []byte) []URLOffset {
	z := html.NewTokenizer(bytes.NewReader(raw))
	var offsets []URLOffset
	var consumed int

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return offsets
		}

		tokenRaw := z.Raw()
		tokenStart := consumed
		consumed += len(tokenRaw)

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		token := z.Token()
		attrName, ok := linkAttrs[token.Data]
		if !ok {
			continue
		}
		for _, a := range token.Attr {
			if a.Key != attrName || a.Val == "" {
				continue
			}
			if off, ok := findAttrValueOffset(tokenRaw, attrName, a.Val); ok {
				offsets = append(offsets, URLOffset{
					Start: tokenStart + off,
					End:   tokenStart + off + len(a.Val),
					Raw:   a.Val,
				})
			}
		}
	}
}

// findAttrValueOffset locates the literal value text within a raw tag
// token, handling the three HTML attribute quoting styles.
func findAttrValueOffset(tokenRaw []byte, attrName, value string) (int, bool) {
	for _, quote := range []byte{'"', '\'', 0} {
		var needle []byte
		if quote == 0 {
			needle = []byte(attrName + "=" + value)
		} else {
			needle = []byte(attrName + "=" + string(quote) + value + string(quote))
		}
		if idx := bytes.Index(tokenRaw, needle); idx >= 0 {
			valueOffset := idx + len(attrName) + 1
			if quote != 0 {
				valueOffset++
			}
			return valueOffset, true
		}
	}
	return 0, false
}
