package engine

import (
	"compress/bzip2"
	"compress/flate"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// acceptEncoding is the Accept-Encoding value this program advertises
// on every request: every Content-Encoding it can decode, most
// space-efficient first, with identity as the universal fallback.
const acceptEncoding = "br, gzip, deflate, bzip2, xz, identity"

// codecTransport wraps a base http.RoundTripper to advertise
// acceptEncoding and transparently decode whichever Content-Encoding
// the server actually chose. The wrapped Transport must have
// DisableCompression set so net/http doesn't also negotiate and strip
// gzip on its own, which would hide the encoding this type needs to
// dispatch on.
type codecTransport struct {
	base http.RoundTripper
}

func (c *codecTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := c.base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}

	// A byte-range part response can't be decompressed in isolation
	// from the other parts of the same resource; leave it untouched
	// and let the Metalink/chunk engine validate raw bytes.
	if req.Header.Get("Range") != "" {
		return resp, nil
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	body, err := decodeBody(encoding, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if body != resp.Body {
		resp.Body = body
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

// decodeBody wraps body in the reader matching encoding, or returns it
// unchanged for identity, an absent header, or an encoding outside the
// compile-time codec set.
func decodeBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("engine: open gzip body: %w", err)
		}
		return decodedBody{Reader: r, underlying: body}, nil
	case "deflate":
		return decodedBody{Reader: flate.NewReader(body), underlying: body}, nil
	case "bzip2":
		return decodedBody{Reader: bzip2.NewReader(body), underlying: body}, nil
	case "br":
		return decodedBody{Reader: brotli.NewReader(body), underlying: body}, nil
	case "xz":
		r, err := xz.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("engine: open xz body: %w", err)
		}
		return decodedBody{Reader: r, underlying: body}, nil
	default:
		return body, nil
	}
}

// decodedBody pairs a decoder's Reader (most of the compile-time
// codec set doesn't implement io.Closer on its own terms) with the
// underlying response body, so closing the decoded stream still
// releases the connection.
type decodedBody struct {
	io.Reader
	underlying io.Closer
}

func (d decodedBody) Close() error {
	return d.underlying.Close()
}
