// Package engine implements the retrieval run: Job Admission, the
// worker pool that drains the Host Registry, the response pipeline,
// and the terminal link-conversion pass. One *Engine is built in main
// and its Run method drives the whole crawl.
package engine

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corvaxen/grecurl/admission"
	"github.com/corvaxen/grecurl/config"
	"github.com/corvaxen/grecurl/convert"
	"github.com/corvaxen/grecurl/fingerprint"
	"github.com/corvaxen/grecurl/hostreg"
	"github.com/corvaxen/grecurl/policy"
	"github.com/corvaxen/grecurl/result"
	"github.com/corvaxen/grecurl/urlutil"
)

// Engine wires every shared piece of scheduling state together and
// drives the worker pool.
type Engine struct {
	Config    *config.Runtime
	Admitter  *Admitter
	Registry  *hostreg.Registry
	Processor *Processor
	Limiters  *hostLimiters
	Client    *http.Client
	Logger    *zap.Logger
	Recorder  *convert.Recorder
	URLIndex  *URLIndex
	Stats     *result.Stats
	Exit      *result.ExitStatus
	Events    chan<- Event

	terminate atomic.Bool // first SIGINT: stop admitting, finish in-flight
	abort     atomic.Bool // second SIGINT/any SIGTERM: cancel in-flight too

	doneOnce sync.Once
	done     chan struct{}
}

// New builds an Engine from its already-constructed collaborators.
// events may be nil to disable progress reporting.
func New(cfg *config.Runtime, reg *hostreg.Registry, fp fingerprint.Set, filters *policy.Filters, plugin admission.Plugin, client *http.Client, stores Stores, logger *zap.Logger, events chan<- Event) *Engine {
	stats := result.NewStats()
	exit := result.NewExitStatus()

	admitter := NewAdmitter(cfg, reg, fp, filters, plugin, stats, logger)
	admitter.HSTS = stores.HSTS

	targetRTT := cfg.Wait
	if targetRTT <= 0 {
		targetRTT = 500 * time.Millisecond
	}
	limiters := newHostLimiters(targetRTT)
	if cfg.Wait > 0 {
		// A manual --wait pins the literal sleep (jittered into
		// [0.5w, 1.5w) with --random-wait) rather than the adaptive
		// RTT-based rate below.
		limiters.withFixedWait(cfg.Wait, cfg.RandomWait)
	}

	return &Engine{
		Config:   cfg,
		Admitter: admitter,
		Registry: reg,
		Processor: &Processor{
			Config:   cfg,
			Admitter: admitter,
			Stats:    stats,
			Exit:     exit,
			Stores:   stores,
		},
		Limiters: limiters,
		Client:   client,
		Logger:   logger,
		Recorder: convert.NewRecorder(),
		URLIndex: NewURLIndex(),
		Stats:    stats,
		Exit:     exit,
		Events:   events,
		done:     make(chan struct{}),
	}
}

// Seed admits a seed URL (from the CLI arguments or -i input file) as
// the first Job on its Host.
func (e *Engine) Seed(rawURL string) error {
	iri, err := urlutil.ParseIRI(rawURL, nil)
	if err != nil {
		return err
	}
	e.Admitter.AddSeed(iri)
	_, _, err = e.Admitter.Admit(Candidate{RawURL: rawURL})
	return err
}

// Run drives the worker pool until every Host is idle (quiescence) or
// a signal aborts the run, then performs the terminal link-conversion
// rewrite pass. First SIGINT/Ctrl-C sets a soft-terminate flag so
// admission stops and in-flight requests finish; a second SIGINT, or
// any SIGTERM, cancels outstanding requests immediately.
func (e *Engine) Run(parent context.Context) error {
	softCtx, cancelSoft := context.WithCancel(parent)
	defer cancelSoft()
	hardCtx, cancelHard := context.WithCancel(context.Background())
	defer cancelHard()

	if e.Events != nil {
		// Every send into Events happens-before group.Wait() returns
		// (workers only emit from inside processJob, which group.Wait
		// waits on), so closing here after the group drains is race-free.
		defer close(e.Events)
	}

	var metricsSrv *http.Server
	if e.Config.MetricsAddr != "" {
		metricsSrv = ServeMetrics(e.Config.MetricsAddr, NewMetricsRegistry(e.Stats, e.Exit))
		defer StopMetrics(context.Background(), metricsSrv)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		first := true
		for sig := range sigCh {
			if first && sig == os.Interrupt {
				e.Logger.Info("interrupt received, finishing in-flight requests")
				e.terminate.Store(true)
				first = false
				continue
			}
			e.Logger.Info("second interrupt or termination signal received, aborting")
			e.abort.Store(true)
			cancelSoft()
			cancelHard()
			return
		}
	}()

	group, groupCtx := errgroup.WithContext(softCtx)
	concurrency := e.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		group.Go(func() error {
			e.runWorker(groupCtx, hardCtx)
			return nil
		})
	}

	e.awaitQuiescence(groupCtx)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if e.Recorder.Len() > 0 {
		if err := convert.Rewrite(e.Recorder.Entries(), e.resolveLink, e.Config.BackupConverted); err != nil {
			e.Logger.Warn("link conversion rewrite failed", zap.Error(err))
		}
	}
	return nil
}

// awaitQuiescence polls the registry and closes e.done once it has
// observed two consecutive idle rounds (a single idle snapshot can
// race with a worker about to enqueue more work).
func (e *Engine) awaitQuiescence(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	quietRounds := 0
	for {
		select {
		case <-ctx.Done():
			e.signalDone()
			return
		case <-ticker.C:
			if e.Processor.QuotaExceeded() {
				e.terminate.Store(true)
				e.signalDone()
				return
			}
			if e.Registry.AllIdle() {
				quietRounds++
				if quietRounds >= 2 {
					e.signalDone()
					return
				}
			} else {
				quietRounds = 0
			}
		}
	}
}

func (e *Engine) signalDone() {
	e.doneOnce.Do(func() { close(e.done) })
}

// resolveLink answers a convert.Rewrite lookup: resolve the offset's
// raw URL text against the entry's base and return a path relative to
// the entry's own file if the target was saved locally, or the
// absolute URL otherwise.
func (e *Engine) resolveLink(entry convert.Entry, offset convert.URLOffset) (string, bool) {
	base, err := urlutil.ParseIRI(entry.BaseURL, nil)
	if err != nil {
		return "", false
	}
	target, err := urlutil.ParseIRI(offset.Raw, base)
	if err != nil {
		return "", false
	}
	localPath, ok := e.URLIndex.Resolve(target.String())
	if !ok {
		return target.String(), false
	}
	rel, err := convert.RelativePath(entry.LocalFilename, localPath)
	if err != nil {
		return target.String(), false
	}
	return rel, true
}
