// Package registry tracks the subprocesses of the current generation, one
// record per ordinal slot, together with their per-stream state.
//
// A Registry is owned by the demultiplexing loop and is not safe for
// concurrent use.
package registry

import (
	"errors"
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"

	"github.com/loykin/barmux/internal/detect"
	"github.com/loykin/barmux/internal/linebuf"
)

var (
	ErrSlotRange = errors.New("slot out of range")
	ErrSlotLive  = errors.New("slot already has a live subprocess")
)

// Handle is the part of a running subprocess the registry needs: its
// identity and its input channel.
type Handle interface {
	io.Writer
	PID() int
}

// Subprocess is the per-slot record.
type Subprocess struct {
	Slot    int
	Command string
	Handle  Handle

	det    detect.Detector
	buf    *linebuf.Buffer
	status string
	live   bool
}

// Live reports whether the slot currently holds a readable subprocess.
func (s *Subprocess) Live() bool { return s.live }

// Status is the current normalized fragment, empty if none.
func (s *Subprocess) Status() string { return s.status }

// FormatState is the detector state.
func (s *Subprocess) FormatState() detect.State { return s.det.State() }

// SupportsEvents reports whether the subprocess declared click events.
func (s *Subprocess) SupportsEvents() bool { return s.det.SupportsEvents() }

// Registry holds the slots of one command list. Slots are created once and
// reused by every generation, so a slot's position never changes.
type Registry struct {
	slots   []*Subprocess
	gen     ulid.ULID
	maxLine int
}

// New returns a registry with one empty slot per command, in order.
func New(commands []string, maxLine int) *Registry {
	r := &Registry{slots: make([]*Subprocess, len(commands)), maxLine: maxLine}
	for i, c := range commands {
		r.slots[i] = &Subprocess{Slot: i, Command: c}
	}
	return r
}

// Len returns the number of slots.
func (r *Registry) Len() int { return len(r.slots) }

// Generation identifies the set of subprocesses currently registered.
func (r *Registry) Generation() ulid.ULID { return r.gen }

// NewGeneration starts a new generation and returns its identifier. All
// slots must have been deregistered first.
func (r *Registry) NewGeneration() (ulid.ULID, error) {
	for _, s := range r.slots {
		if s.live {
			return ulid.ULID{}, fmt.Errorf("slot %d: %w", s.Slot, ErrSlotLive)
		}
	}
	r.gen = ulid.Make()
	return r.gen, nil
}

// Get returns the record at slot, or nil when out of range.
func (r *Registry) Get(slot int) *Subprocess {
	if slot < 0 || slot >= len(r.slots) {
		return nil
	}
	return r.slots[slot]
}

// Register installs h as the live subprocess of slot with fresh state.
func (r *Registry) Register(slot int, h Handle) (*Subprocess, error) {
	s := r.Get(slot)
	if s == nil {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotRange)
	}
	if s.live {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotLive)
	}
	s.Handle = h
	s.det.Reset()
	s.buf = linebuf.New(r.maxLine)
	s.status = ""
	s.live = true
	return s, nil
}

// Write feeds a chunk of output from slot's subprocess through its line
// buffer and detector. It returns the detector result of each complete line.
// Output for a slot that is not live is ignored.
func (r *Registry) Write(slot int, chunk []byte) []detect.Result {
	s := r.Get(slot)
	if s == nil || !s.live {
		return nil
	}
	var out []detect.Result
	for _, line := range s.buf.Write(chunk) {
		out = append(out, s.feed(line))
	}
	return out
}

// Flush feeds any unterminated trailing data of slot as a final line.
func (r *Registry) Flush(slot int) (detect.Result, bool) {
	s := r.Get(slot)
	if s == nil || !s.live {
		return detect.Result{}, false
	}
	line, ok := s.buf.Flush()
	if !ok {
		return detect.Result{}, false
	}
	return s.feed(line), true
}

func (s *Subprocess) feed(line string) detect.Result {
	res := s.det.Feed(line)
	if res.Updated {
		s.status = res.Status
	}
	return res
}

// Deregister clears slot's live state and returns the handle it held.
// The slot itself stays reserved.
func (r *Registry) Deregister(slot int) Handle {
	s := r.Get(slot)
	if s == nil || !s.live {
		return nil
	}
	h := s.Handle
	s.Handle = nil
	s.live = false
	s.status = ""
	s.det.Reset()
	s.buf = nil
	return h
}

// DeregisterAll clears every live slot.
func (r *Registry) DeregisterAll() {
	for _, s := range r.slots {
		r.Deregister(s.Slot)
	}
}

// Statuses returns the non-empty current statuses in slot order.
func (r *Registry) Statuses() []string {
	out := make([]string, 0, len(r.slots))
	for _, s := range r.slots {
		if s.live && s.status != "" {
			out = append(out, s.status)
		}
	}
	return out
}

// EventTargets returns the live subprocesses that accept click events, in
// slot order.
func (r *Registry) EventTargets() []*Subprocess {
	var out []*Subprocess
	for _, s := range r.slots {
		if s.live && s.det.SupportsEvents() {
			out = append(out, s)
		}
	}
	return out
}

// LiveCount returns the number of live slots.
func (r *Registry) LiveCount() int {
	n := 0
	for _, s := range r.slots {
		if s.live {
			n++
		}
	}
	return n
}
