package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	subprocessStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "subprocess",
			Name:      "starts_total",
			Help:      "Number of status commands spawned.",
		}, []string{"command"},
	)
	subprocessExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "subprocess",
			Name:      "exits_total",
			Help:      "Number of status commands whose output reached end-of-stream.",
		}, []string{"command"},
	)
	formatTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "subprocess",
			Name:      "format_transitions_total",
			Help:      "Output format classification transitions.",
		}, []string{"from", "to"},
	)
	linesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "subprocess",
			Name:      "lines_total",
			Help:      "Output lines read from status commands, by format.",
		}, []string{"format"},
	)
	liveSubprocesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "barmux",
			Subsystem: "subprocess",
			Name:      "live",
			Help:      "Status commands currently registered and readable.",
		},
	)
	reloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "generation",
			Name:      "reloads_total",
			Help:      "Number of full restarts of the command set.",
		},
	)
	statusLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "host",
			Name:      "status_lines_total",
			Help:      "Combined status lines written to the host.",
		},
	)
	eventsForwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barmux",
			Subsystem: "host",
			Name:      "events_forwarded_total",
			Help:      "Host event lines written to event-capable status commands.",
		},
	)
	wakeupBatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "barmux",
			Subsystem: "loop",
			Name:      "wakeup_messages",
			Help:      "Messages drained per loop wake-up.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		subprocessStarts, subprocessExits, formatTransitions, linesRead,
		liveSubprocesses, reloads, statusLines, eventsForwarded, wakeupBatch,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(command string) {
	if regOK.Load() {
		subprocessStarts.WithLabelValues(command).Inc()
	}
}

func IncExit(command string) {
	if regOK.Load() {
		subprocessExits.WithLabelValues(command).Inc()
	}
}

func RecordFormatTransition(from, to string) {
	if regOK.Load() {
		formatTransitions.WithLabelValues(from, to).Inc()
	}
}

func IncLine(format string) {
	if regOK.Load() {
		linesRead.WithLabelValues(format).Inc()
	}
}

func SetLive(n int) {
	if regOK.Load() {
		liveSubprocesses.Set(float64(n))
	}
}

func IncReload() {
	if regOK.Load() {
		reloads.Inc()
	}
}

func IncStatusLine() {
	if regOK.Load() {
		statusLines.Inc()
	}
}

func IncEventForwarded() {
	if regOK.Load() {
		eventsForwarded.Inc()
	}
}

func ObserveWakeup(messages int) {
	if regOK.Load() {
		wakeupBatch.Observe(float64(messages))
	}
}
