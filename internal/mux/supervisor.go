package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/barmux/internal/history"
	"github.com/loykin/barmux/internal/metrics"
	"github.com/loykin/barmux/internal/process"
	"github.com/loykin/barmux/internal/registry"
)

// ErrSpawn wraps the failure to start a status command.
var ErrSpawn = errors.New("spawn failed")

// Child is a running status command as seen by the supervisor.
// *process.Process implements it.
type Child interface {
	registry.Handle
	Stdout() io.Reader
	Stop(wait time.Duration) error
	ExitErr() error
}

// SpawnFunc starts one status command.
type SpawnFunc func(spec process.Spec) (Child, error)

// ProcessSpawner spawns real processes with environment env and stderr
// connected to errOut.
func ProcessSpawner(env []string, errOut io.Writer) SpawnFunc {
	return func(spec process.Spec) (Child, error) {
		p, err := process.Start(spec, env, errOut)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Supervisor owns the process handles of the current generation. It starts
// and stops whole generations; nothing else closes a child's channels.
type Supervisor struct {
	specs    []process.Spec
	spawn    SpawnFunc
	wait     time.Duration
	reg      *registry.Registry
	children []Child
	log      *slog.Logger
	hist     *history.Recorder
	reaping  sync.WaitGroup

	// attach is called for every child registered by Start.
	attach func(gen ulid.ULID, slot int, c Child)
}

func newSupervisor(commands []string, reg *registry.Registry, spawn SpawnFunc, wait time.Duration, log *slog.Logger, hist *history.Recorder) *Supervisor {
	specs := make([]process.Spec, len(commands))
	for i, command := range commands {
		specs[i] = process.Spec{Command: command}
	}
	return &Supervisor{
		specs:    specs,
		spawn:    spawn,
		wait:     wait,
		reg:      reg,
		children: make([]Child, len(specs)),
		log:      log,
		hist:     hist,
	}
}

// Start spawns every command in order into a new generation. If any spawn
// fails, the members already started are stopped and the error is returned.
func (s *Supervisor) Start(ctx context.Context) error {
	gen, err := s.reg.NewGeneration()
	if err != nil {
		return err
	}
	log := s.log.With("generation", gen.String())
	for slot, spec := range s.specs {
		if err := ctx.Err(); err != nil {
			s.Stop()
			return err
		}
		command := spec.Label()
		c, err := s.spawn(spec)
		if err != nil {
			log.Error("spawn failed", "slot", slot, "command", command, "error", err)
			s.Stop()
			return fmt.Errorf("%w: %q: %w", ErrSpawn, command, err)
		}
		if _, err := s.reg.Register(slot, c); err != nil {
			_ = c.Stop(s.wait)
			s.Stop()
			return err
		}
		s.children[slot] = c
		metrics.IncStart(command)
		s.hist.Record(history.EventSpawn, s.record(slot, c.PID(), ""))
		log.Debug("spawned", "slot", slot, "command", command, "pid", c.PID())
		if s.attach != nil {
			s.attach(gen, slot, c)
		}
	}
	metrics.SetLive(s.reg.LiveCount())
	log.Info("generation started", "commands", len(s.specs))
	return nil
}

// Stop deregisters every live child and terminates all of them concurrently.
// It returns once every child, including those released earlier, has been
// dealt with.
func (s *Supervisor) Stop() {
	gen := s.reg.Generation().String()
	s.reg.DeregisterAll()
	var g errgroup.Group
	for slot, c := range s.children {
		if c == nil {
			continue
		}
		s.children[slot] = nil
		slot, c := slot, c
		g.Go(func() error {
			err := c.Stop(s.wait)
			s.hist.Record(history.EventStop, s.record(slot, c.PID(), errString(err)))
			if err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("stop incomplete", "generation", gen, "error", err)
	}
	s.reaping.Wait()
	metrics.SetLive(0)
}

// Restart replaces the current generation with a fresh one built from the
// same command list, in the same order.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.hist.Record(history.EventReload, s.record(-1, 0, ""))
	metrics.IncReload()
	s.Stop()
	return s.Start(ctx)
}

// Release is called when slot's output reached end-of-stream. The child
// leaves the generation and is reaped in the background.
func (s *Supervisor) Release(slot int, readErr error) {
	s.reg.Deregister(slot)
	if slot < 0 || slot >= len(s.children) || s.children[slot] == nil {
		return
	}
	c := s.children[slot]
	s.children[slot] = nil
	command := s.specs[slot].Label()
	metrics.IncExit(command)
	metrics.SetLive(s.reg.LiveCount())
	rec := s.record(slot, c.PID(), "")
	log := s.log.With("generation", rec.Generation, "slot", slot, "command", command, "pid", rec.PID)
	if readErr != nil {
		log.Warn("output read failed", "error", readErr)
	}
	s.reaping.Add(1)
	go func() {
		defer s.reaping.Done()
		if err := c.Stop(s.wait); err != nil {
			log.Warn("reap failed", "error", err)
		}
		rec.Detail = errString(c.ExitErr())
		s.hist.Record(history.EventExit, rec)
		log.Info("status command exited", "exit", rec.Detail)
	}()
}

func (s *Supervisor) record(slot, pid int, detail string) history.Record {
	rec := history.Record{Generation: s.reg.Generation().String(), Slot: slot, PID: pid, Detail: detail}
	if slot >= 0 && slot < len(s.specs) {
		rec.Command = s.specs[slot].Label()
	}
	return rec
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
