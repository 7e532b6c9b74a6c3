package config

import (
	"strconv"
	"strings"
	"time"
)

// ApplyDirectives applies rcfile directives onto r. Unknown keys are
// ignored (a later rcfile or CLI flag is free to cover newer ground);
// a malformed numeric or duration value for a recognized key is
// skipped rather than aborting the whole file, since one bad line
// should not block startup on every other directive. A boolean value
// that does not parse is read as false.
func (r *Runtime) ApplyDirectives(directives []RCDirective) {
	for _, d := range directives {
		r.applyOne(d)
	}
}

func (r *Runtime) applyOne(d RCDirective) {
	key := strings.ToLower(d.Key)
	switch key {
	case "tries":
		if v, err := strconv.Atoi(d.Value); err == nil {
			r.Tries = v
		}
	case "timeout":
		if v, err := parseSeconds(d.Value); err == nil {
			r.Timeout = v
		}
	case "connect-timeout":
		if v, err := parseSeconds(d.Value); err == nil {
			r.ConnectTimeout = v
		}
	case "read-timeout":
		if v, err := parseSeconds(d.Value); err == nil {
			r.ReadTimeout = v
		}
	case "dns-timeout":
		if v, err := parseSeconds(d.Value); err == nil {
			r.DNSTimeout = v
		}
	case "wait":
		if v, err := parseSeconds(d.Value); err == nil {
			r.Wait = v
		}
	case "waitretry":
		if v, err := parseSeconds(d.Value); err == nil {
			r.WaitRetry = v
		}
	case "random-wait":
		r.RandomWait = parseBool(d.Value)
	case "recursive":
		r.Recursive = parseBool(d.Value)
	case "level":
		if v, err := strconv.Atoi(d.Value); err == nil {
			r.MaxDepth = v
		}
	case "page-requisites":
		r.PageReqs = parseBool(d.Value)
	case "no-parent":
		r.NoParent = parseBool(d.Value)
	case "span-hosts":
		r.SpanHosts = parseBool(d.Value)
	case "domains":
		r.Domains = splitCSV(d.Value)
	case "exclude-domains":
		r.ExcludeDomains = splitCSV(d.Value)
	case "accept":
		r.Accept = splitCSV(d.Value)
	case "reject":
		r.Reject = splitCSV(d.Value)
	case "accept-regex":
		r.AcceptRegex = splitCSV(d.Value)
	case "reject-regex":
		r.RejectRegex = splitCSV(d.Value)
	case "user-agent":
		r.UserAgent = d.Value
	case "user":
		r.User = d.Value
	case "password":
		r.Password = d.Value
	case "header":
		r.Headers = append(r.Headers, d.Value)
	case "no-directories":
		r.NoDirectories = parseBool(d.Value)
	case "no-host-directories":
		r.NoHostDirectories = parseBool(d.Value)
	case "cut-dirs":
		if v, err := strconv.Atoi(d.Value); err == nil {
			r.CutDirs = v
		}
	case "restrict-file-names":
		r.RestrictFileNames = d.Value
	case "https-only":
		r.HTTPSOnly = parseBool(d.Value)
	case "no-check-certificate":
		r.NoCheckCertificate = parseBool(d.Value)
	case "hsts":
		r.HSTS = parseBool(d.Value)
	case "hsts-file":
		r.HSTSFile = d.Value
	case "hpkp":
		r.HPKP = parseBool(d.Value)
	case "hpkp-file":
		r.HPKPFile = d.Value
	case "ocsp":
		r.OCSP = parseBool(d.Value)
	case "spider":
		r.Spider = parseBool(d.Value)
	case "convert-links":
		r.ConvertLinks = parseBool(d.Value)
	case "backup-converted":
		r.BackupConverted = parseBool(d.Value)
	case "backups":
		if v, err := strconv.Atoi(d.Value); err == nil {
			r.Backups = v
		}
	case "load-cookies":
		r.LoadCookies = d.Value
	case "save-cookies":
		r.SaveCookies = d.Value
	case "keep-session-cookies":
		r.KeepSessionCookies = parseBool(d.Value)
	case "netrc":
		r.Netrc = parseBool(d.Value)
	case "tls-resume":
		r.TLSResume = parseBool(d.Value)
	case "tls-session-file":
		r.TLSSessionCacheFile = d.Value
	case "force-html":
		if parseBool(d.Value) {
			r.ForceMode = ContentHTML
		}
	case "force-css":
		if parseBool(d.Value) {
			r.ForceMode = ContentCSS
		}
	case "force-sitemap":
		if parseBool(d.Value) {
			r.ForceMode = ContentSitemap
		}
	case "force-atom":
		if parseBool(d.Value) {
			r.ForceMode = ContentAtom
		}
	case "force-rss":
		if parseBool(d.Value) {
			r.ForceMode = ContentRSS
		}
	case "force-metalink":
		if parseBool(d.Value) {
			r.ForceMode = ContentMetalink
		}
	case "mirror":
		r.Mirror = parseBool(d.Value)
	case "continue":
		r.Continue = parseBool(d.Value)
	case "timestamping":
		r.Timestamping = parseBool(d.Value)
	case "chunk-size":
		if v, err := strconv.ParseInt(d.Value, 10, 64); err == nil {
			r.ChunkSize = v
		}
	case "metalink":
		r.Metalink = parseBool(d.Value)
	case "xattr":
		r.Xattr = parseBool(d.Value)
	case "quota":
		if v, err := strconv.ParseInt(d.Value, 10, 64); err == nil {
			r.Quota = v
		}
	case "debug":
		r.Debug = parseBool(d.Value)
	case "verbose":
		r.Verbose = parseBool(d.Value)
	case "quiet":
		r.Quiet = parseBool(d.Value)
	case "concurrency":
		if v, err := strconv.Atoi(d.Value); err == nil {
			r.Concurrency = v
		}
	case "low-memory":
		r.LowMemory = parseBool(d.Value)
	case "https_proxy", "https-proxy":
		r.HTTPSProxy = d.Value
	case "http_proxy", "http-proxy":
		r.HTTPProxy = d.Value
	case "no_proxy", "no-proxy":
		r.NoProxy = splitCSV(d.Value)
	}
}

func parseBool(v string) bool {
	if v == "" {
		return true // a bare directive like "recursive" means on
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func parseSeconds(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
