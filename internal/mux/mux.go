// Package mux runs the status multiplexer: it supervises one generation of
// status commands, combines their output into a single status stream for the
// host and forwards the host's click events back to the commands that asked
// for them.
//
// All registry state is owned by the goroutine executing Run. Reader
// goroutines only copy bytes into a channel; every decision about those bytes
// is taken by the loop.
package mux

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/loykin/barmux/internal/detect"
	"github.com/loykin/barmux/internal/history"
	"github.com/loykin/barmux/internal/linebuf"
	"github.com/loykin/barmux/internal/metrics"
	"github.com/loykin/barmux/internal/protocol"
	"github.com/loykin/barmux/internal/registry"
)

// Control is an out-of-band request delivered to a running Mux.
type Control int

const (
	// Reload stops the current generation and starts a new one.
	Reload Control = iota
	// Shutdown ends the session the same way host end-of-stream does.
	Shutdown
)

func (c Control) String() string {
	switch c {
	case Reload:
		return "reload"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL.
const DefaultStopTimeout = 2 * time.Second

const (
	readSize = 4096
	inboxLen = 64
	hostSlot = -1
)

// ErrNoCommands is returned by New for an empty command list.
var ErrNoCommands = errors.New("no status commands")

// errShutdown ends the loop without an error.
var errShutdown = errors.New("shutdown")

// Options configures a Mux.
type Options struct {
	Commands    []string
	Spawn       SpawnFunc     // defaults to ProcessSpawner(nil, nil)
	StopTimeout time.Duration // defaults to DefaultStopTimeout
	MaxLine     int           // per-stream line limit; 0 uses linebuf.DefaultMaxLine
	Logger      *slog.Logger
	History     *history.Recorder
}

// Mux is one multiplexer session.
type Mux struct {
	log  *slog.Logger
	hist *history.Recorder
	reg  *registry.Registry
	sup  *Supervisor

	host *linebuf.Buffer
	out  *protocol.Writer

	inbox chan chunk
	done  chan struct{}
}

// chunk is a piece of data read from the host (slot == hostSlot) or from the
// subprocess in slot of generation gen. eof marks the end of that stream.
type chunk struct {
	gen  ulid.ULID
	slot int
	data []byte
	eof  bool
	err  error
}

// New returns a Mux for opts.Commands. Nothing is spawned until Run.
func New(opts Options) (*Mux, error) {
	if len(opts.Commands) == 0 {
		return nil, ErrNoCommands
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Spawn == nil {
		opts.Spawn = ProcessSpawner(nil, nil)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	commands := append([]string(nil), opts.Commands...)
	reg := registry.New(commands, opts.MaxLine)
	m := &Mux{
		log:   opts.Logger,
		hist:  opts.History,
		reg:   reg,
		host:  linebuf.New(opts.MaxLine),
		inbox: make(chan chunk, inboxLen),
		done:  make(chan struct{}),
	}
	m.sup = newSupervisor(commands, reg, opts.Spawn, opts.StopTimeout, opts.Logger, opts.History)
	m.sup.attach = func(gen ulid.ULID, slot int, c Child) {
		go m.pump(c.Stdout(), chunk{gen: gen, slot: slot})
	}
	return m, nil
}

// Run starts the first generation, announces the protocol on out and
// multiplexes until the host closes in, a Shutdown control arrives or ctx is
// cancelled; each of those ends the session cleanly and returns nil.
// Spawn failures and failures to deliver an event to a subprocess are fatal
// and returned. A Mux can be run once.
func (m *Mux) Run(ctx context.Context, in io.Reader, out io.Writer, control <-chan Control) error {
	defer close(m.done)
	m.out = protocol.NewWriter(out)

	if err := m.sup.Start(ctx); err != nil {
		return err
	}
	if err := m.out.Begin(); err != nil {
		m.sup.Stop()
		return err
	}
	go m.pump(in, chunk{slot: hostSlot})

	for {
		var (
			err error
			n   int
		)
		select {
		case <-ctx.Done():
			err = errShutdown
		case ctl := <-control:
			err = m.handleControl(ctx, ctl)
			n++
		case c := <-m.inbox:
			err = m.handle(c)
			n++
		}
		// take whatever else is already waiting, without blocking
		for pending := len(m.inbox); err == nil && pending > 0; pending-- {
			err = m.handle(<-m.inbox)
			n++
		}
		if errors.Is(err, errShutdown) {
			return m.shutdown()
		}
		if err != nil {
			m.sup.Stop()
			return err
		}
		metrics.ObserveWakeup(n)
		if err := m.emit(); err != nil {
			m.sup.Stop()
			return err
		}
	}
}

func (m *Mux) handleControl(ctx context.Context, ctl Control) error {
	m.log.Info("control received", "control", ctl.String())
	switch ctl {
	case Reload:
		return m.sup.Restart(ctx)
	case Shutdown:
		return errShutdown
	}
	return nil
}

func (m *Mux) handle(c chunk) error {
	if c.slot == hostSlot {
		return m.handleHost(c)
	}
	if c.gen != m.reg.Generation() {
		// late output of a generation that has already been stopped
		return nil
	}
	if c.eof {
		if res, ok := m.reg.Flush(c.slot); ok {
			m.observe(c.slot, res)
		}
		m.sup.Release(c.slot, c.err)
		return nil
	}
	for _, res := range m.reg.Write(c.slot, c.data) {
		m.observe(c.slot, res)
	}
	return nil
}

func (m *Mux) handleHost(c chunk) error {
	var lines []string
	if c.eof {
		if c.err != nil {
			m.log.Warn("host input read failed", "error", c.err)
		}
		if line, ok := m.host.Flush(); ok {
			lines = append(lines, line)
		}
	} else {
		lines = m.host.Write(c.data)
	}
	for _, line := range lines {
		if err := m.route(line); err != nil {
			return err
		}
	}
	if c.eof {
		m.log.Info("host closed input")
		return errShutdown
	}
	return nil
}

func (m *Mux) observe(slot int, res detect.Result) {
	if res.Changed() {
		metrics.RecordFormatTransition(res.From.String(), res.To.String())
		m.log.Debug("format classified", "slot", slot, "from", res.From.String(), "to", res.To.String(), "events", res.Events)
	}
	if res.Updated {
		metrics.IncLine(res.To.String())
	}
}

func (m *Mux) emit() error {
	if err := m.out.WriteLine(Render(m.reg)); err != nil {
		return err
	}
	metrics.IncStatusLine()
	return nil
}

func (m *Mux) shutdown() error {
	m.hist.Record(history.EventShutdown, history.Record{Generation: m.reg.Generation().String(), Slot: -1})
	m.sup.Stop()
	m.log.Info("shutdown complete")
	return m.out.Close()
}

// pump copies r into the inbox until end-of-stream or until the Mux is done.
// Each chunk is a private copy.
func (m *Mux) pump(r io.Reader, tag chunk) {
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c := tag
			c.data = append([]byte(nil), buf[:n]...)
			if !m.send(c) {
				return
			}
		}
		if err != nil {
			c := tag
			c.eof = true
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			m.send(c)
			return
		}
	}
}

func (m *Mux) send(c chunk) bool {
	select {
	case m.inbox <- c:
		return true
	case <-m.done:
		return false
	}
}
