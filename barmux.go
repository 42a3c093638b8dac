package barmux

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	cfg "github.com/loykin/barmux/internal/config"
	"github.com/loykin/barmux/internal/env"
	"github.com/loykin/barmux/internal/history"
	"github.com/loykin/barmux/internal/history/sqlite"
	"github.com/loykin/barmux/internal/metrics"
	"github.com/loykin/barmux/internal/mux"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Options = mux.Options

type Control = mux.Control

type SpawnFunc = mux.SpawnFunc

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryRecorder = history.Recorder

const (
	Reload   = mux.Reload
	Shutdown = mux.Shutdown
)

var (
	ErrNoCommands = mux.ErrNoCommands
	ErrSpawn      = mux.ErrSpawn
)

// Run multiplexes opts.Commands between in (the host's click events) and out
// (the host's status stream) until in reaches end-of-stream, a Shutdown
// control arrives or ctx is cancelled.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer, control <-chan Control) error {
	m, err := mux.New(opts)
	if err != nil {
		return err
	}
	return m.Run(ctx, in, out, control)
}

// Spawner returns a SpawnFunc starting real processes whose environment is
// the OS environment overlaid with globalEnv ("KEY=VALUE", ${VAR} expanded).
// Their stderr goes to errOut.
func Spawner(globalEnv []string, errOut io.Writer) SpawnFunc {
	var merged []string
	if len(globalEnv) > 0 {
		merged = env.FromPairs(globalEnv).Merge(nil)
	}
	return mux.ProcessSpawner(merged, errOut)
}

func LoadConfig(path string) (*Config, error) {
	return cfg.Load(viper.New(), path)
}

// OpenHistory opens the sqlite history database at dsn and returns a recorder
// delivering to it. Close the recorder before the returned closer.
func OpenHistory(dsn string, queue int, log *slog.Logger) (*HistoryRecorder, io.Closer, error) {
	sink, err := sqlite.New(dsn)
	if err != nil {
		return nil, nil, err
	}
	return history.NewRecorder(sink, queue, log), sink, nil
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics exposes /metrics on addr using the default registry until ctx
// is done.
func ServeMetrics(ctx context.Context, addr string) error { return metrics.Serve(ctx, addr) }
