// Package main provides the grecurl CLI entrypoint: it wires the
// cobra/pflag command tree (package cli) to a fully-resolved
// config.Runtime, builds every collaborator a retrieval run needs
// (fingerprint set, policy filters, host registry, protocol-state
// stores, HTTP client, logger), and drives the Engine either through
// the Bubble Tea TUI or the plain progress-bar fallback depending on
// whether stdout is a terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/corvaxen/grecurl/admission"
	"github.com/corvaxen/grecurl/cli"
	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/engine"
	"github.com/corvaxen/grecurl/fingerprint"
	"github.com/corvaxen/grecurl/hostreg"
	"github.com/corvaxen/grecurl/policy"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/statestore"
	"github.com/corvaxen/grecurl/tui"
)

func main() {
	cmd := cli.BuildRootCommand(run)
	if err := cli.Execute(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "grecurl: %v\n", err)
		os.Exit(int(result.SeverityFatal))
	}
}

// run is the program's real entry point, called once BuildRootCommand
// has a fully-merged, validated config.Runtime. It never returns to
// cobra on a successful run: the process exit code must reflect
// ExitStatus's severity ranking, not cobra's binary success/failure.
func run(cfg *config.Runtime) error {
	seeds, err := collectSeeds(cfg)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return fmt.Errorf("main: no URLs to retrieve")
	}

	logger, err := engine.NewLogger(cfg.Debug, cfg.Quiet || !cfg.Verbose)
	if err != nil {
		return fmt.Errorf("main: build logger: %w", err)
	}
	defer logger.Sync()

	acceptRegex, err := compileAll(cfg.AcceptRegex)
	if err != nil {
		return fmt.Errorf("main: --accept-regex: %w", err)
	}
	rejectRegex, err := compileAll(cfg.RejectRegex)
	if err != nil {
		return fmt.Errorf("main: --reject-regex: %w", err)
	}
	filters := &policy.Filters{
		Accept: cfg.Accept, Reject: cfg.Reject,
		AcceptRegex: acceptRegex, RejectRegex: rejectRegex,
		Domains: cfg.Domains, ExcludeDomains: cfg.ExcludeDomains,
	}
	filters.Compile()

	fp, closeFP, err := buildFingerprint(cfg)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}
	defer closeFP()

	reg := hostreg.NewRegistry(cfg.WaitRetry, 6, cfg.Tries)

	stores, jar, ocspStore, saveStores, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	client, err := engine.NewHTTPClient(cfg, jar, ocspStore)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	if len(cfg.Plugins) > 0 || len(cfg.LocalPlugin) > 0 {
		logger.Warn("plugin loading is not implemented; running with the no-op plugin")
	}

	events := make(chan engine.Event, 256)
	eng := engine.New(cfg, reg, fp, filters, admission.Noop{}, client, stores, logger, events)

	for _, raw := range seeds {
		if err := eng.Seed(raw); err != nil {
			// An unresolvable seed URL is a parse/init failure.
			fmt.Fprintf(os.Stderr, "grecurl: main: seed %s: %v\n", raw, err)
			os.Exit(int(result.SeverityParseInit))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snap result.Snapshot
	if tui.IsInteractive() {
		model := tui.NewModel(ctx, cancel, eng, events)
		program := tea.NewProgram(model)
		finalModel, runErr := program.Run()
		if runErr != nil {
			return fmt.Errorf("main: run tui: %w", runErr)
		}
		final := finalModel.(tui.Model)
		snap, _ = final.Snapshot()
	} else {
		runSnap, runErr := tui.RunPlain(ctx, eng, events)
		if runErr != nil {
			return fmt.Errorf("main: %w", runErr)
		}
		snap = runSnap
	}

	saveStores(reg)

	if cfg.StatsSite != "" {
		if err := writeStatsSpec(cfg.StatsSite, snap); err != nil {
			logger.Warn("writing --stats-site report failed", zap.Error(err))
		}
	}
	// --stats-dns and --stats-tls name per-connection DNS/TLS timing
	// data this core doesn't collect (see DESIGN.md); they are parsed
	// and accepted but intentionally left unimplemented.

	os.Exit(snap.ExitCode)
	return nil
}

// collectSeeds gathers every seed URL: the positional CLI arguments
// plus, if -i/--input-file was given, one URL per non-blank line (or
// stdin, for "-").
func collectSeeds(cfg *config.Runtime) ([]string, error) {
	seeds := append([]string(nil), cfg.SeedURLs...)
	if cfg.InputFile == "" {
		return seeds, nil
	}

	var r io.Reader
	if cfg.InputFile == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(cfg.InputFile)
		if err != nil {
			return nil, fmt.Errorf("main: open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("main: read input file: %w", err)
	}
	return seeds, nil
}

// compileAll compiles cfg's raw --accept-regex/--reject-regex flags,
// since policy.Filters takes already-compiled *regexp.Regexp (it has
// no flag layer of its own to do this from).
func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// buildFingerprint returns the URL dedup set named by cfg.LowMemory,
// and a close func the caller defers.
func buildFingerprint(cfg *config.Runtime) (fingerprint.Set, func() error, error) {
	if !cfg.LowMemory {
		fp := fingerprint.New()
		return fp, fp.Close, nil
	}
	fp, err := fingerprint.NewLowMemory(1_000_000, 0.001)
	if err != nil {
		return nil, nil, fmt.Errorf("build low-memory fingerprint set: %w", err)
	}
	return fp, fp.Close, nil
}

// buildStores loads every protocol-state cache its feature flag
// enables, builds the cookie jar NewHTTPClient needs, and returns a
// closure that persists anything dirty once the run finishes.
func buildStores(cfg *config.Runtime) (stores engine.Stores, jar http.CookieJar, ocspStore *statestore.OCSPStore, save func(*hostreg.Registry), err error) {
	var cookies *statestore.CookieStore
	cookiePath := cfg.SaveCookies
	if cookiePath == "" {
		cookiePath = cfg.LoadCookies
	}
	if cfg.LoadCookies != "" || cfg.SaveCookies != "" {
		cookies, err = statestore.NewCookieStore(cookiePath)
		if err != nil {
			return engine.Stores{}, nil, nil, nil, fmt.Errorf("load cookie store: %w", err)
		}
		jar = cookies.Jar
	}

	var hsts *statestore.HSTSStore
	if cfg.HSTS {
		hsts, err = statestore.NewHSTSStore(cfg.HSTSFile)
		if err != nil {
			return engine.Stores{}, nil, nil, nil, fmt.Errorf("load HSTS store: %w", err)
		}
	}

	var hpkp *statestore.HPKPStore
	if cfg.HPKP {
		hpkp, err = statestore.NewHPKPStore(cfg.HPKPFile)
		if err != nil {
			return engine.Stores{}, nil, nil, nil, fmt.Errorf("load HPKP store: %w", err)
		}
	}

	if cfg.OCSP {
		ocspStore = statestore.NewOCSPStore()
	}

	var netrc *statestore.NetrcStore
	if cfg.Netrc {
		if home, herr := os.UserHomeDir(); herr == nil {
			// An unreadable or absent .netrc is treated as no stored
			// credentials, not a startup failure.
			if s, nerr := statestore.LoadNetrc(filepath.Join(home, ".netrc")); nerr == nil {
				netrc = s
			}
		}
	}

	stores = engine.Stores{
		Cookies: cookies,
		HSTS:    hsts,
		HPKP:    hpkp,
		Netrc:   netrc,
		ETags:   engine.NewETagSet(),
	}

	save = func(reg *hostreg.Registry) {
		if cookies != nil {
			cookies.Save(hostURLs(reg))
		}
		if hsts != nil {
			hsts.Save()
		}
		if hpkp != nil {
			hpkp.Save()
		}
	}
	return stores, jar, ocspStore, save, nil
}

// hostURLs builds one representative URL per Host the run touched, for
// CookieStore.Save (which persists only the cookies attached to the
// URLs it's given, per net/http/cookiejar's host-scoped lookup).
func hostURLs(reg *hostreg.Registry) []string {
	hosts := reg.Hosts()
	urls := make([]string, 0, len(hosts))
	for _, h := range hosts {
		host := h.Key.Host
		if h.Key.Port != "" {
			host += ":" + h.Key.Port
		}
		urls = append(urls, fmt.Sprintf("%s://%s/", h.Key.Scheme, host))
	}
	return urls
}

// writeStatsSpec parses a "[FORMAT:]FILE" --stats argument and
// writes snap to it in the requested format.
func writeStatsSpec(spec string, snap result.Snapshot) error {
	format, path := result.FormatHuman, spec
	if idx := strings.Index(spec, ":"); idx > 0 {
		switch strings.ToLower(spec[:idx]) {
		case "json":
			format, path = result.FormatJSON, spec[idx+1:]
		case "csv":
			format, path = result.FormatCSV, spec[idx+1:]
		case "yaml":
			format, path = result.FormatYAML, spec[idx+1:]
		case "human":
			format, path = result.FormatHuman, spec[idx+1:]
		}
	}

	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create stats file %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	return result.WriteSnapshot(w, format, snap)
}
