// Package detect classifies the output of one subprocess on the fly.
//
// A subprocess either speaks the structured status protocol (header, "[",
// then one array per line) or prints arbitrary text. The Detector decides on
// the first non-blank line and commits to that decision for the lifetime of
// the subprocess instance.
package detect

import (
	"strings"

	"github.com/loykin/barmux/internal/protocol"
)

// State is the classification state of one subprocess output stream.
type State int

const (
	Unclassified State = iota
	HeaderSeen
	Structured
	Plain
)

func (s State) String() string {
	switch s {
	case Unclassified:
		return "unclassified"
	case HeaderSeen:
		return "header_seen"
	case Structured:
		return "structured"
	case Plain:
		return "plain"
	default:
		return "unknown"
	}
}

// Result describes the effect of feeding one line.
type Result struct {
	From, To State
	// Status is the new normalized fragment; valid only when Updated.
	Status  string
	Updated bool
	// Events is true when this line was a header declaring click events.
	Events bool
}

// Changed reports whether the line caused a state transition.
func (r Result) Changed() bool { return r.From != r.To }

// Step is the transition function. It is pure: the caller owns the state.
// Blank lines are skipped until the stream is classified and inside a
// structured stream; in a plain stream they replace the status like any
// other text.
func Step(state State, line string) Result {
	res := Result{From: state, To: state}
	if state != Plain && strings.TrimSpace(line) == "" {
		return res
	}
	switch state {
	case Unclassified:
		if h, ok := protocol.ParseHeader(line); ok {
			res.To = HeaderSeen
			res.Events = h.ClickEvents
			return res
		}
		res.To = Plain
		res.Status, res.Updated = protocol.PlainFragment(line), true
	case HeaderSeen:
		res.To = Structured
		if strings.TrimSpace(line) == "[" {
			return res
		}
		res.Status, res.Updated = structured(line)
	case Structured:
		res.Status, res.Updated = structured(line)
	case Plain:
		res.Status, res.Updated = protocol.PlainFragment(line), true
	}
	return res
}

// structured extracts the status carried by one array line. The bare closing
// "]" carries none; anything else that is not an array is shown as text.
func structured(line string) (string, bool) {
	if inner, ok := protocol.UnwrapArray(line); ok {
		return inner, true
	}
	if strings.TrimSpace(line) == "]" {
		return "", false
	}
	return protocol.PlainFragment(line), true
}

// Detector carries the per-subprocess classification state.
type Detector struct {
	state  State
	events bool
}

// State returns the current classification.
func (d *Detector) State() State { return d.state }

// SupportsEvents reports whether the subprocess declared click events.
func (d *Detector) SupportsEvents() bool { return d.events }

// Feed applies one line and returns its effect. SupportsEvents is set at
// most once, by the header.
func (d *Detector) Feed(line string) Result {
	res := Step(d.state, line)
	if res.From == Unclassified && res.To == HeaderSeen {
		d.events = res.Events
	}
	d.state = res.To
	return res
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	d.state = Unclassified
	d.events = false
}
