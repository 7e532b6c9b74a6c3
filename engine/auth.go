package engine

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/corvaxen/grecurl/job"
)

// BuildAuthorization renders the Authorization (or Proxy-Authorization)
// header value answering challenge for one request, per RFC 7617
// (Basic) and RFC 2617 (Digest). Digest pins MD5 as its hash; that is
// the scheme's choice, not this program's.
func BuildAuthorization(challenge *job.Challenge, method, uri, user, pass string) (string, error) {
	if challenge == nil {
		return "", fmt.Errorf("engine: no challenge to answer")
	}
	switch challenge.Scheme {
	case "Basic":
		token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		return "Basic " + token, nil
	case "Digest":
		return buildDigest(challenge, method, uri, user, pass)
	default:
		return "", fmt.Errorf("engine: unsupported auth scheme %q", challenge.Scheme)
	}
}

func buildDigest(c *job.Challenge, method, uri, user, pass string) (string, error) {
	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", user, c.Realm, pass))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))

	if c.QOP == "" {
		response := md5Hex(fmt.Sprintf("%s:%s:%s", ha1, c.Nonce, ha2))
		return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
			user, c.Realm, c.Nonce, uri, response), nil
	}

	cnonce, err := randomHex(8)
	if err != nil {
		return "", fmt.Errorf("engine: generate cnonce: %w", err)
	}
	nc := "00000001"
	response := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, c.Nonce, nc, cnonce, c.QOP, ha2))
	header := fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", qop=%s, nc=%s, cnonce="%s", response="%s"`,
		user, c.Realm, c.Nonce, uri, c.QOP, nc, cnonce, response)
	if c.Opaque != "" {
		header += fmt.Sprintf(`, opaque="%s"`, c.Opaque)
	}
	return header, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ParseChallenge extracts a Challenge from a WWW-Authenticate or
// Proxy-Authenticate header value.
func ParseChallenge(header string) *job.Challenge {
	if header == "" {
		return nil
	}
	c := &job.Challenge{}
	switch {
	case strings.HasPrefix(strings.ToLower(header), "basic"):
		c.Scheme = "Basic"
		c.Realm = authParam(header, "realm")
	case strings.HasPrefix(strings.ToLower(header), "digest"):
		c.Scheme = "Digest"
		c.Realm = authParam(header, "realm")
		c.Nonce = authParam(header, "nonce")
		c.Opaque = authParam(header, "opaque")
		c.QOP = authParam(header, "qop")
	default:
		return nil
	}
	return c
}

// authParam extracts key="value" (or key=value) from a
// WWW-Authenticate header's parameter list.
func authParam(header, key string) string {
	needle := key + "="
	idx := strings.Index(strings.ToLower(header), needle)
	if idx < 0 {
		return ""
	}
	rest := header[idx+len(needle):]
	if rest == "" {
		return ""
	}
	if rest[0] == '"' {
		rest = rest[1:]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	end := strings.IndexAny(rest, ", ")
	if end < 0 {
		return rest
	}
	return rest[:end]
}
