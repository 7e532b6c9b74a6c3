// Package cli wires the spf13/cobra command tree to a config.Runtime,
// including the legacy bundling-grammar pre-processor (bundle.go)
// that pflag itself doesn't support.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/corvaxen/grecurl/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// BuildRootCommand constructs the root cobra.Command. run is called
// with the fully resolved Runtime once flags, rcfile, and validation
// have all been applied; it is the program's actual entry point.
func BuildRootCommand(run func(*config.Runtime) error) *cobra.Command {
	var cfgFile string
	r := config.Default()

	var accept, reject, acceptRegex, rejectRegex []string
	var domains, excludeDomains []string
	var headers, plugins, pluginDirs, pluginOpts, localPlugins []string
	var forceHTML, forceCSS, forceSitemap, forceAtom, forceRSS, forceMetalink bool

	cmd := &cobra.Command{
		Use:           "grecurl [flags] URL...",
		Short:         "Recursive, multi-threaded web retriever",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r.SeedURLs = args
			r.Accept = accept
			r.Reject = reject
			r.AcceptRegex = acceptRegex
			r.RejectRegex = rejectRegex
			r.Domains = domains
			r.ExcludeDomains = excludeDomains
			r.Headers = headers
			r.Plugins = plugins
			r.PluginDirs = pluginDirs
			r.PluginOpts = pluginOpts
			r.LocalPlugin = localPlugins
			r.ForceMode = forceModeOf(forceHTML, forceCSS, forceSitemap, forceAtom, forceRSS, forceMetalink)

			rcPath := config.RCPath(cfgFile)
			directives, err := config.ParseRCFile(rcPath)
			if err != nil {
				return fmt.Errorf("cli: reading config file: %w", err)
			}
			// rcfile settings are defaults beneath whatever the user
			// passed on the command line, so apply them to a fresh
			// Default() and then let the flag-populated r override
			// only the fields the user actually touched via
			// mergeOverRCDefaults.
			base := config.Default()
			base.ApplyDirectives(directives)
			r = mergeOverRCDefaults(base, r, cmd)

			if err := r.Validate(); err != nil {
				return err
			}
			return run(r)
		},
	}

	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config-file", "", "path to a grecurlrc config file")
	flags.StringVarP(&r.InputFile, "input-file", "i", "", "read URLs from FILE ('-' for stdin)")

	flags.BoolVar(&forceHTML, "force-html", false, "treat input documents as HTML")
	flags.BoolVar(&forceCSS, "force-css", false, "treat input documents as CSS")
	flags.BoolVar(&forceSitemap, "force-sitemap", false, "treat input documents as XML sitemaps")
	flags.BoolVar(&forceAtom, "force-atom", false, "treat input documents as Atom feeds")
	flags.BoolVar(&forceRSS, "force-rss", false, "treat input documents as RSS feeds")
	flags.BoolVar(&forceMetalink, "force-metalink", false, "treat input documents as Metalink descriptors")

	flags.BoolVarP(&r.Recursive, "recursive", "r", false, "enable recursive retrieval")
	flags.IntVarP(&r.MaxDepth, "level", "l", 0, "maximum recursion depth (0 = unlimited)")
	flags.BoolVarP(&r.PageReqs, "page-requisites", "p", false, "download images/css/js needed to render each page")
	flags.BoolVar(&r.NoParent, "no-parent", false, "never ascend to the parent directory")

	flags.BoolVarP(&r.SpanHosts, "span-hosts", "H", false, "allow retrieval across hostnames")
	flags.StringSliceVarP(&domains, "domains", "D", nil, "comma-separated list of allowed domains")
	flags.StringSliceVar(&excludeDomains, "exclude-domains", nil, "comma-separated list of excluded domains")

	flags.StringSliceVarP(&accept, "accept", "A", nil, "comma-separated accept patterns")
	flags.StringSliceVarP(&reject, "reject", "R", nil, "comma-separated reject patterns")
	flags.StringSliceVar(&acceptRegex, "accept-regex", nil, "accept regexes")
	flags.StringSliceVar(&rejectRegex, "reject-regex", nil, "reject regexes")

	flags.StringVarP(&r.OutputDocument, "output-document", "O", "", "write all output to FILE")
	flags.StringVarP(&r.Prefix, "directory-prefix", "P", "", "save files under PREFIX")
	flags.BoolVar(&r.NoDirectories, "no-directories", false, "don't create a hierarchy of directories")
	flags.BoolVar(&r.NoHostDirectories, "no-host-directories", false, "don't create host directories")
	flags.IntVar(&r.CutDirs, "cut-dirs", 0, "ignore N remote directory components")
	flags.StringVar(&r.RestrictFileNames, "restrict-file-names", r.RestrictFileNames, "rules for local filename generation")

	flags.DurationVar(&r.Wait, "wait", 0, "wait between retrievals")
	flags.BoolVar(&r.RandomWait, "random-wait", false, "randomize the wait between 0.5x and 1.5x --wait")
	flags.DurationVar(&r.WaitRetry, "waitretry", r.WaitRetry, "wait between retries, scaled by attempt")
	flags.IntVar(&r.Tries, "tries", r.Tries, "number of retries per Job before final failure")
	flags.DurationVar(&r.Timeout, "timeout", r.Timeout, "overall request timeout")
	flags.DurationVar(&r.ConnectTimeout, "connect-timeout", r.ConnectTimeout, "connect timeout")
	flags.DurationVar(&r.ReadTimeout, "read-timeout", r.ReadTimeout, "read timeout")
	flags.DurationVar(&r.DNSTimeout, "dns-timeout", r.DNSTimeout, "DNS resolution timeout")

	flags.StringArrayVar(&headers, "header", nil, "extra request header, repeatable")
	flags.StringVarP(&r.UserAgent, "user-agent", "U", "", "User-Agent string")
	flags.StringVar(&r.User, "user", "", "HTTP/FTP username")
	flags.StringVar(&r.Password, "password", "", "HTTP/FTP password")
	flags.StringVar(&r.PostData, "post-data", "", "send body data in a POST request")
	flags.StringVar(&r.PostFile, "post-file", "", "send the contents of FILE in a POST request")
	flags.BoolVar(&r.KeepAlive, "keep-alive", r.KeepAlive, "enable persistent connections")
	flags.BoolVar(&r.ContentDisposition, "content-disposition", false, "honor Content-Disposition when naming files")
	flags.StringVar(&r.LoadCookies, "load-cookies", "", "load cookies from FILE before the run")
	flags.StringVar(&r.SaveCookies, "save-cookies", "", "save cookies to FILE after the run")
	flags.BoolVar(&r.KeepSessionCookies, "keep-session-cookies", false, "also save session (non-persistent) cookies")
	flags.BoolVar(&r.Netrc, "netrc", r.Netrc, "consult ~/.netrc for credentials not given on the command line")

	flags.BoolVar(&r.NoCheckCertificate, "no-check-certificate", false, "don't validate the server certificate")
	flags.StringVar(&r.CAFile, "ca-certificate", "", "CA bundle file")
	flags.StringVar(&r.CADirectory, "ca-directory", "", "CA bundle directory")
	flags.StringVar(&r.Certificate, "certificate", "", "client certificate file")
	flags.StringVar(&r.PrivateKey, "private-key", "", "client private key file")
	flags.StringVar((*string)(&r.SecureProtocolOpt), "secure-protocol", string(r.SecureProtocolOpt), "TLS protocol restriction")
	flags.BoolVar(&r.HTTPSOnly, "https-only", false, "only retrieve https:// URLs; http:// URLs are dropped")
	flags.BoolVar(&r.OCSP, "ocsp", false, "validate certificates via OCSP")
	flags.BoolVar(&r.HSTS, "hsts", r.HSTS, "honor HTTP Strict Transport Security")
	flags.StringVar(&r.HSTSFile, "hsts-file", "", "HSTS database file")
	flags.BoolVar(&r.HPKP, "hpkp", false, "honor HTTP Public Key Pinning")
	flags.StringVar(&r.HPKPFile, "hpkp-file", "", "HPKP database file")
	flags.BoolVar(&r.TLSResume, "tls-resume", r.TLSResume, "enable TLS session resumption")
	flags.StringVar(&r.TLSSessionCacheFile, "tls-session-file", "", "TLS session cache file")

	flags.BoolVar(&r.Spider, "spider", false, "don't save files, just check they exist")
	flags.BoolVarP(&r.ConvertLinks, "convert-links", "k", false, "convert links for local viewing after the run")
	flags.BoolVarP(&r.BackupConverted, "backup-converted", "K", false, "back up the original file before converting links")
	flags.IntVar(&r.Backups, "backups", 0, "rotate up to N numbered backups of each file before writing")
	flags.BoolVar(&r.Mirror, "mirror", false, "shorthand for recursive, timestamping, infinite depth, no-parent")
	flags.BoolVarP(&r.Continue, "continue", "c", false, "resume a partially-downloaded file")
	flags.BoolVarP(&r.Timestamping, "timestamping", "N", false, "don't re-retrieve unless newer than local copy")
	flags.BoolVar(&r.NoClobber, "no-clobber", false, "never overwrite an existing local file")
	flags.Int64Var(&r.ChunkSize, "chunk-size", 0, "split downloads into chunks of this many bytes")
	flags.BoolVar(&r.Metalink, "metalink", false, "follow Metalink descriptors for multi-source downloads")
	flags.BoolVar(&r.Xattr, "xattr", false, "store origin metadata in extended attributes")
	flags.Int64Var(&r.Quota, "quota", 0, "stop once this many bytes have been downloaded in total (0 = unlimited)")

	flags.StringVar(&r.StatsSite, "stats-site", "", "write site stats, [FORMAT:]FILE")
	flags.StringVar(&r.StatsDNS, "stats-dns", "", "write DNS stats, [FORMAT:]FILE")
	flags.StringVar(&r.StatsTLS, "stats-tls", "", "write TLS stats, [FORMAT:]FILE")
	flags.StringVar(&r.MetricsAddr, "metrics-addr", "", "serve live Prometheus metrics at addr:port")
	flags.BoolVarP(&r.Debug, "debug", "d", false, "print a per-job outcome line to stderr as it happens")
	flags.BoolVar(&r.Verbose, "verbose", r.Verbose, "print informational output")
	flags.BoolVarP(&r.Quiet, "quiet", "q", false, "only print warnings and errors")

	flags.StringArrayVar(&plugins, "plugin", nil, "load a plugin by name")
	flags.StringArrayVar(&pluginDirs, "plugin-dirs", nil, "additional plugin search directories")
	flags.StringArrayVar(&pluginOpts, "plugin-opt", nil, "plugin-specific option, repeatable")
	flags.StringArrayVar(&localPlugins, "local-plugin", nil, "load a plugin from a local file path")

	flags.IntVar(&r.Concurrency, "concurrency", r.Concurrency, "number of concurrent worker goroutines")
	flags.Int64Var(&r.MaxMemory, "max-memory", r.MaxMemory, "per-job in-memory body cap in bytes")
	flags.BoolVar(&r.LowMemory, "low-memory", false, "use a bloom-filter-backed URL dedup set instead of exact")

	flags.StringVar(&r.HTTPProxy, "http-proxy", "", "HTTP proxy URL")
	flags.StringVar(&r.HTTPSProxy, "https-proxy", "", "HTTPS proxy URL")
	flags.StringSliceVar(&r.NoProxy, "no-proxy", nil, "hosts to exclude from proxying")

	return cmd
}

// mergeOverRCDefaults returns a Runtime equal to rcDefaults except for
// fields the user explicitly set via flags on flagged, which take
// precedence. cobra/pflag's Changed() tells us exactly which flags
// were touched, so untouched fields fall back to the rcfile value
// instead of the flag's zero-value default.
func mergeOverRCDefaults(rcDefaults, flagged *config.Runtime, cmd *cobra.Command) *config.Runtime {
	result := *rcDefaults
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if len(flagged.SeedURLs) > 0 {
		result.SeedURLs = flagged.SeedURLs
	}
	if changed("input-file") {
		result.InputFile = flagged.InputFile
	}
	if flagged.ForceMode != config.ContentAuto {
		result.ForceMode = flagged.ForceMode
	}
	if changed("recursive") {
		result.Recursive = flagged.Recursive
	}
	if changed("level") {
		result.MaxDepth = flagged.MaxDepth
	}
	if changed("page-requisites") {
		result.PageReqs = flagged.PageReqs
	}
	if changed("no-parent") {
		result.NoParent = flagged.NoParent
	}
	if changed("span-hosts") {
		result.SpanHosts = flagged.SpanHosts
	}
	if changed("domains") {
		result.Domains = flagged.Domains
	}
	if changed("exclude-domains") {
		result.ExcludeDomains = flagged.ExcludeDomains
	}
	if changed("accept") {
		result.Accept = flagged.Accept
	}
	if changed("reject") {
		result.Reject = flagged.Reject
	}
	if changed("accept-regex") {
		result.AcceptRegex = flagged.AcceptRegex
	}
	if changed("reject-regex") {
		result.RejectRegex = flagged.RejectRegex
	}
	if changed("output-document") {
		result.OutputDocument = flagged.OutputDocument
	}
	if changed("directory-prefix") {
		result.Prefix = flagged.Prefix
	}
	if changed("no-directories") {
		result.NoDirectories = flagged.NoDirectories
	}
	if changed("no-host-directories") {
		result.NoHostDirectories = flagged.NoHostDirectories
	}
	if changed("cut-dirs") {
		result.CutDirs = flagged.CutDirs
	}
	if changed("restrict-file-names") {
		result.RestrictFileNames = flagged.RestrictFileNames
	}
	if changed("wait") {
		result.Wait = flagged.Wait
	}
	if changed("random-wait") {
		result.RandomWait = flagged.RandomWait
	}
	if changed("waitretry") {
		result.WaitRetry = flagged.WaitRetry
	}
	if changed("tries") {
		result.Tries = flagged.Tries
	}
	if changed("timeout") {
		result.Timeout = flagged.Timeout
	}
	if changed("connect-timeout") {
		result.ConnectTimeout = flagged.ConnectTimeout
	}
	if changed("read-timeout") {
		result.ReadTimeout = flagged.ReadTimeout
	}
	if changed("dns-timeout") {
		result.DNSTimeout = flagged.DNSTimeout
	}
	if changed("header") {
		result.Headers = flagged.Headers
	}
	if changed("user-agent") {
		result.UserAgent = flagged.UserAgent
	}
	if changed("user") {
		result.User = flagged.User
	}
	if changed("password") {
		result.Password = flagged.Password
	}
	if changed("post-data") {
		result.PostData = flagged.PostData
	}
	if changed("post-file") {
		result.PostFile = flagged.PostFile
	}
	if changed("keep-alive") {
		result.KeepAlive = flagged.KeepAlive
	}
	if changed("content-disposition") {
		result.ContentDisposition = flagged.ContentDisposition
	}
	if changed("load-cookies") {
		result.LoadCookies = flagged.LoadCookies
	}
	if changed("save-cookies") {
		result.SaveCookies = flagged.SaveCookies
	}
	if changed("keep-session-cookies") {
		result.KeepSessionCookies = flagged.KeepSessionCookies
	}
	if changed("netrc") {
		result.Netrc = flagged.Netrc
	}
	if changed("no-check-certificate") {
		result.NoCheckCertificate = flagged.NoCheckCertificate
	}
	if changed("ca-certificate") {
		result.CAFile = flagged.CAFile
	}
	if changed("ca-directory") {
		result.CADirectory = flagged.CADirectory
	}
	if changed("certificate") {
		result.Certificate = flagged.Certificate
	}
	if changed("private-key") {
		result.PrivateKey = flagged.PrivateKey
	}
	if changed("secure-protocol") {
		result.SecureProtocolOpt = flagged.SecureProtocolOpt
	}
	if changed("https-only") {
		result.HTTPSOnly = flagged.HTTPSOnly
	}
	if changed("ocsp") {
		result.OCSP = flagged.OCSP
	}
	if changed("hsts") {
		result.HSTS = flagged.HSTS
	}
	if changed("hsts-file") {
		result.HSTSFile = flagged.HSTSFile
	}
	if changed("hpkp") {
		result.HPKP = flagged.HPKP
	}
	if changed("hpkp-file") {
		result.HPKPFile = flagged.HPKPFile
	}
	if changed("tls-resume") {
		result.TLSResume = flagged.TLSResume
	}
	if changed("tls-session-file") {
		result.TLSSessionCacheFile = flagged.TLSSessionCacheFile
	}
	if changed("spider") {
		result.Spider = flagged.Spider
	}
	if changed("convert-links") {
		result.ConvertLinks = flagged.ConvertLinks
	}
	if changed("backup-converted") {
		result.BackupConverted = flagged.BackupConverted
	}
	if changed("backups") {
		result.Backups = flagged.Backups
	}
	if changed("mirror") {
		result.Mirror = flagged.Mirror
		if flagged.Mirror {
			result.Recursive = true
			result.Timestamping = true
			result.MaxDepth = 0
			result.NoParent = true
		}
	}
	if changed("continue") {
		result.Continue = flagged.Continue
	}
	if changed("timestamping") {
		result.Timestamping = flagged.Timestamping
	}
	if changed("no-clobber") {
		result.NoClobber = flagged.NoClobber
	}
	if changed("chunk-size") {
		result.ChunkSize = flagged.ChunkSize
	}
	if changed("metalink") {
		result.Metalink = flagged.Metalink
	}
	if changed("xattr") {
		result.Xattr = flagged.Xattr
	}
	if changed("quota") {
		result.Quota = flagged.Quota
	}
	if changed("stats-site") {
		result.StatsSite = flagged.StatsSite
	}
	if changed("stats-dns") {
		result.StatsDNS = flagged.StatsDNS
	}
	if changed("stats-tls") {
		result.StatsTLS = flagged.StatsTLS
	}
	if changed("metrics-addr") {
		result.MetricsAddr = flagged.MetricsAddr
	}
	if changed("debug") {
		result.Debug = flagged.Debug
	}
	if changed("verbose") {
		result.Verbose = flagged.Verbose
	}
	if changed("quiet") {
		result.Quiet = flagged.Quiet
	}
	if changed("plugin") {
		result.Plugins = flagged.Plugins
	}
	if changed("plugin-dirs") {
		result.PluginDirs = flagged.PluginDirs
	}
	if changed("plugin-opt") {
		result.PluginOpts = flagged.PluginOpts
	}
	if changed("local-plugin") {
		result.LocalPlugin = flagged.LocalPlugin
	}
	if changed("concurrency") {
		result.Concurrency = flagged.Concurrency
	}
	if changed("max-memory") {
		result.MaxMemory = flagged.MaxMemory
	}
	if changed("low-memory") {
		result.LowMemory = flagged.LowMemory
	}
	if changed("http-proxy") {
		result.HTTPProxy = flagged.HTTPProxy
	}
	if changed("https-proxy") {
		result.HTTPSProxy = flagged.HTTPSProxy
	}
	if changed("no-proxy") {
		result.NoProxy = flagged.NoProxy
	}

	return &result
}

// forceModeOf maps the mutually-exclusive --force-* flags onto one
// ContentMode. If several are set, a fixed precedence decides
// (metalink, rss, atom, sitemap, css, html, in that order); their
// order on the command line does not matter.
func forceModeOf(html, css, sitemap, atom, rss, metalink bool) config.ContentMode {
	switch {
	case metalink:
		return config.ContentMetalink
	case rss:
		return config.ContentRSS
	case atom:
		return config.ContentAtom
	case sitemap:
		return config.ContentSitemap
	case css:
		return config.ContentCSS
	case html:
		return config.ContentHTML
	}
	return config.ContentAuto
}

// normalizeFlagName lets rcfile-style underscore spellings
// (--no_parent) resolve to their dashed flag names.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs cmd against os.Args[1:] after expanding the legacy
// bundling grammar, returning the error RunE produced, if any.
func Execute(cmd *cobra.Command) error {
	cmd.SetArgs(ExpandBundles(os.Args[1:]))
	return cmd.Execute()
}
