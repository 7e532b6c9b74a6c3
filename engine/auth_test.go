package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/job"
	"github.com/corvaxen/grecurl/statestore"
)

func TestParseChallengeBasicAndDigest(t *testing.T) {
	c := ParseChallenge(`Basic realm="site"`)
	if c == nil || c.Scheme != "Basic" || c.Realm != "site" {
		t.Fatalf("ParseChallenge(Basic) = %+v", c)
	}

	c = ParseChallenge(`Digest realm="api", nonce="abc123", qop=auth, opaque="xyz"`)
	if c == nil || c.Scheme != "Digest" {
		t.Fatalf("ParseChallenge(Digest) = %+v", c)
	}
	if c.Realm != "api" || c.Nonce != "abc123" || c.QOP != "auth" || c.Opaque != "xyz" {
		t.Errorf("Digest params = %+v", c)
	}

	if ParseChallenge("") != nil {
		t.Error("empty header should yield no challenge")
	}
	if ParseChallenge("Negotiate token") != nil {
		t.Error("unsupported scheme should yield no challenge")
	}
}

func TestBuildAuthorizationBasic(t *testing.T) {
	got, err := BuildAuthorization(&job.Challenge{Scheme: "Basic", Realm: "r"}, "GET", "/x", "alice", "pw")
	if err != nil {
		t.Fatalf("BuildAuthorization: %v", err)
	}
	// base64("alice:pw")
	if got != "Basic YWxpY2U6cHc=" {
		t.Errorf("Basic header = %q", got)
	}
}

func TestCredentialsExplicitWinOverNetrc(t *testing.T) {
	store := loadTestNetrc(t, "machine a.example login bob password hunter2\n")
	e := &Engine{
		Config:    &config.Runtime{User: "alice", Password: "pw"},
		Processor: &Processor{Stores: Stores{Netrc: store}},
	}
	j := job.New(job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/x")

	user, pass := e.credentials(j)
	if user != "alice" || pass != "pw" {
		t.Errorf("explicit --user/--password should win, got %s/%s", user, pass)
	}
}

func TestCredentialsNetrcFallback(t *testing.T) {
	store := loadTestNetrc(t, "machine a.example login bob password hunter2\n")
	e := &Engine{
		Config:    &config.Runtime{},
		Processor: &Processor{Stores: Stores{Netrc: store}},
	}

	j := job.New(job.HostKey{Scheme: "http", Host: "a.example", Port: "80"}, "http://a.example/x")
	user, pass := e.credentials(j)
	if user != "bob" || pass != "hunter2" {
		t.Errorf("expected the .netrc machine entry, got %s/%s", user, pass)
	}

	other := job.New(job.HostKey{Scheme: "http", Host: "b.example", Port: "80"}, "http://b.example/x")
	if user, _ := e.credentials(other); user != "" {
		t.Errorf("a host with no .netrc entry should resolve no credentials, got %s", user)
	}
}

func loadTestNetrc(t *testing.T, content string) *statestore.NetrcStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netrc")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write netrc: %v", err)
	}
	store, err := statestore.LoadNetrc(path)
	if err != nil {
		t.Fatalf("LoadNetrc: %v", err)
	}
	return store
}
