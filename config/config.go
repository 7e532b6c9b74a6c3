// Package config holds the resolved runtime configuration for a
// retrieval run: the union of rcfile settings and CLI flags, after
// rcfile/flag merge (CLI wins). See package cli for how a Config is
// built from os.Args and a config file.
package config

import (
	"fmt"
	"time"
)

// ContentMode forces how an input document is parsed when the
// content-type can't be trusted (spider fetch of a local file, stdin,
// or a server that omits Content-Type).
type ContentMode string

const (
	ContentAuto     ContentMode = ""
	ContentHTML     ContentMode = "html"
	ContentCSS      ContentMode = "css"
	ContentSitemap  ContentMode = "sitemap"
	ContentAtom     ContentMode = "atom"
	ContentRSS      ContentMode = "rss"
	ContentMetalink ContentMode = "metalink"
)

// SecureProtocol restricts the TLS versions offered during the
// handshake.
type SecureProtocol string

const (
	SecureAuto SecureProtocol = "auto"
	SecureTLS1 SecureProtocol = "TLSv1"
	SecureTLS2 SecureProtocol = "TLSv1_2"
	SecureTLS3 SecureProtocol = "TLSv1_3"
)

// Runtime is the fully-resolved configuration driving a single
// retrieval run. One value is constructed in main and passed
// explicitly to every package that needs it; there is no package-level
// config state anywhere else.
type Runtime struct {
	// Input
	SeedURLs  []string
	InputFile string // "-" means stdin
	ForceMode ContentMode

	// Recursion
	Recursive bool
	MaxDepth  int // 0 = unlimited
	PageReqs  bool
	NoParent  bool

	// Host scope
	SpanHosts      bool
	Domains        []string
	ExcludeDomains []string

	// Acceptance
	Accept      []string
	Reject      []string
	AcceptRegex []string
	RejectRegex []string

	// Output
	OutputDocument    string // -O
	Prefix            string // -P
	NoDirectories     bool   // -nd
	NoHostDirectories bool   // -nH
	CutDirs           int
	RestrictFileNames string

	// Timing
	Wait           time.Duration
	RandomWait     bool
	WaitRetry      time.Duration
	Tries          int
	Timeout        time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	DNSTimeout     time.Duration

	// HTTP
	Headers            []string
	UserAgent          string
	User               string
	Password           string
	PostData           string
	PostFile           string
	LoadCookies        string
	SaveCookies        string
	KeepSessionCookies bool
	Netrc              bool // consult ~/.netrc for hosts without explicit credentials
	KeepAlive          bool
	ContentDisposition bool

	// HTTPS/TLS
	NoCheckCertificate  bool
	CAFile              string
	CADirectory         string
	Certificate         string
	PrivateKey          string
	SecureProtocolOpt   SecureProtocol
	HTTPSOnly           bool
	OCSP                bool
	HSTS                bool
	HSTSFile            string
	HPKP                bool
	HPKPFile            string
	TLSSessionCacheFile string
	TLSResume           bool

	// Features
	Spider          bool
	ConvertLinks    bool
	BackupConverted bool // -K
	Mirror          bool
	Backups         int  // rotate file, file.1 ... file.N before write
	Continue        bool // -c
	Timestamping    bool // -N
	NoClobber       bool // -nc
	ChunkSize       int64
	Metalink        bool
	Xattr           bool

	// Quota is the total-bytes budget that cleanly stops the scheduler
	// once crossed (0 = unlimited). Not an error: in-flight requests
	// finish, only further admission and scheduling stop.
	Quota int64

	// Stats
	StatsSite string // FORMAT:FILE
	StatsDNS  string
	StatsTLS  string

	// MetricsAddr, if non-empty, serves a live Prometheus /metrics
	// endpoint for the run's counters (addr:port to listen on).
	MetricsAddr string

	// Debug prints a per-job outcome line to stderr as it happens, in
	// addition to the aggregate --stats report.
	Debug bool

	// Verbose/Quiet adjust console log volume; Debug wins over both.
	Verbose bool
	Quiet   bool

	// Plugins
	Plugins     []string
	PluginDirs  []string
	PluginOpts  []string
	LocalPlugin []string

	// Concurrency
	Concurrency int
	MaxMemory   int64 // per-job in-memory body cap, default 10 MiB

	// Low-memory URL dedup
	LowMemory bool

	// Proxy
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    []string
}

// Default returns a Runtime populated with the documented
// defaults, prior to rcfile/flag application.
func Default() *Runtime {
	return &Runtime{
		Tries:             20,
		Timeout:           900 * time.Second,
		ConnectTimeout:    -1,
		ReadTimeout:       900 * time.Second,
		DNSTimeout:        -1,
		WaitRetry:         10 * time.Second,
		RestrictFileNames: "unix",
		SecureProtocolOpt: SecureAuto,
		Concurrency:       5,
		MaxMemory:         10 * 1024 * 1024,
		KeepAlive:         true,
		HSTS:              true,
		TLSResume:         true,
		Verbose:           true,
		Netrc:             true,
	}
}

// Validate applies cross-field checks (mutual exclusions, nonsensical
// combinations) before a run starts. Failures here are reported at
// parse/init severity.
func (r *Runtime) Validate() error {
	if r.OutputDocument != "" && r.Mirror {
		return fmt.Errorf("config: -O and --mirror are mutually exclusive")
	}
	if r.Continue && r.OutputDocument == "-" {
		return fmt.Errorf("config: -c is incompatible with writing to stdout")
	}
	if r.ChunkSize < 0 {
		return fmt.Errorf("config: --chunk-size must not be negative")
	}
	if len(r.SeedURLs) == 0 && r.InputFile == "" {
		return fmt.Errorf("config: no seed URLs and no -i input file")
	}
	return nil
}
