package engine

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvaxen/grecurl/result"
)

// NewMetricsRegistry builds a Prometheus registry exposing stats'
// counters live, read at scrape time via GaugeFunc so no second set of
// atomic counters needs to be kept in sync with result.Stats.
//
// The gauge-per-counter shape reads the run counters live at scrape
// time rather than keeping a duplicate counter set.
func NewMetricsRegistry(stats *result.Stats, exit ExitStatusReader) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, read func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "grecurl",
			Name:      name,
			Help:      help,
		}, read))
	}

	gauge("downloads_total", "completed downloads", func() float64 { return float64(stats.Downloads.Load()) })
	gauge("redirects_total", "followed redirects", func() float64 { return float64(stats.Redirects.Load()) })
	gauge("not_modified_total", "304 responses", func() float64 { return float64(stats.NotModified.Load()) })
	gauge("errors_total", "failed jobs", func() float64 { return float64(stats.Errors.Load()) })
	gauge("chunks_total", "completed Metalink parts", func() float64 { return float64(stats.Chunks.Load()) })
	gauge("bytes_total", "bytes written to disk", func() float64 { return float64(stats.TotalBytes.Load()) })
	gauge("redirect_skipped_total", "redirects dropped by policy", func() float64 { return float64(stats.RedirectSkip.Load()) })
	gauge("robots_skipped_total", "URLs dropped by robots policy", func() float64 { return float64(stats.RobotsSkip.Load()) })
	gauge("pattern_skipped_total", "URLs dropped by pattern filters", func() float64 { return float64(stats.PatternSkip.Load()) })
	if exit != nil {
		gauge("exit_code", "current worst-severity exit code", func() float64 { return float64(exit.Code()) })
	}

	return reg
}

// ExitStatusReader is the read-only slice of result.ExitStatus that
// metrics needs.
type ExitStatusReader interface {
	Code() int
}

// ServeMetrics starts an HTTP server exposing reg's registry at
// /metrics on addr. The caller is responsible for calling Shutdown on
// the returned server once the run completes.
func ServeMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// StopMetrics shuts srv down if non-nil, used during Engine.Run's
// teardown.
func StopMetrics(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
}
