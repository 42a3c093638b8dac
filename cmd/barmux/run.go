package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/loykin/barmux"
	"github.com/loykin/barmux/internal/config"
	"github.com/loykin/barmux/internal/logger"
	"github.com/loykin/barmux/internal/process"
)

// runSession loads the configuration, wires logging, metrics and history
// and runs one multiplexer session until the host goes away.
func runSession(ctx context.Context, v *viper.Viper, flags *RootFlags, args []string, s stdio) error {
	c, err := config.Load(v, flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	commands, err := c.ResolveCommands(args)
	if err != nil {
		return err
	}
	globalEnv, err := c.GlobalEnv()
	if err != nil {
		return err
	}
	reloadSig, err := config.ParseSignal(c.ReloadSignal)
	if err != nil {
		return err
	}

	log, logCloser := logger.New(c.Log, s.err)
	defer func() { _ = logCloser.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := barmux.RegisterMetricsDefault(); err != nil {
		return err
	}
	if c.Metrics.Listen != "" {
		go func() {
			if err := barmux.ServeMetrics(ctx, c.Metrics.Listen); err != nil {
				log.Error("metrics server failed", "addr", c.Metrics.Listen, "error", err)
			}
		}()
	}

	var rec *barmux.HistoryRecorder
	if c.History.DSN != "" {
		r, closer, err := barmux.OpenHistory(c.History.DSN, c.History.Queue, log)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		defer r.Close()
		rec = r
	}

	if c.PIDFile != "" {
		specs := make([]process.Spec, len(commands))
		for i, cmd := range commands {
			specs[i] = process.Spec{Command: cmd}
		}
		if err := process.WritePIDFile(c.PIDFile, os.Getpid(), specs); err != nil {
			return err
		}
		defer func() { _ = os.Remove(c.PIDFile) }()
	}

	control := make(chan barmux.Control, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, reloadSig)
	defer signal.Stop(sigs)
	go forwardSignals(ctx, sigs, control, log)

	log.Info("starting", "commands", len(commands), "reload_signal", reloadSig.String())
	return barmux.Run(ctx, barmux.Options{
		Commands:    commands,
		Spawn:       barmux.Spawner(globalEnv, s.err),
		StopTimeout: c.StopTimeout,
		MaxLine:     c.MaxLine,
		Logger:      log,
		History:     rec,
	}, s.in, s.out, control)
}

// forwardSignals turns the reload signal into Reload controls and
// SIGINT/SIGTERM, when delivered here, into Shutdown.
func forwardSignals(ctx context.Context, sigs <-chan os.Signal, control chan<- barmux.Control, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			ctl := barmux.Reload
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				ctl = barmux.Shutdown
			}
			log.Debug("signal received", "signal", sig.String(), "control", ctl.String())
			select {
			case control <- ctl:
			case <-ctx.Done():
				return
			}
		}
	}
}
