package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/barmux"
)

// embedded: run barmux inside another program. Two status commands are
// multiplexed for a few seconds; the combined i3bar stream goes to stdout.
// Send SIGHUP to restart the commands.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	control := make(chan barmux.Control, 1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go func() {
		for range sigs {
			control <- barmux.Reload
		}
	}()

	opts := barmux.Options{
		Commands: []string{
			"sh -c 'while true; do date +%H:%M:%S; sleep 1; done'",
			"sh -c 'uname -sr; sleep 10'",
		},
		Spawn:  barmux.Spawner([]string{"LC_ALL=C"}, os.Stderr),
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
	// no click events in this demo: the host side never writes
	hostR, hostW := io.Pipe()
	defer func() { _ = hostW.Close() }()
	if err := barmux.Run(ctx, opts, hostR, os.Stdout, control); err != nil {
		fmt.Fprintln(os.Stderr, "barmux:", err)
		os.Exit(1)
	}
}
