package mux

import (
	"fmt"
	"io"

	"github.com/loykin/barmux/internal/metrics"
	"github.com/loykin/barmux/internal/protocol"
)

// route forwards one host line to every live subprocess that declared click
// events. Blank lines and bare array separators are dropped. A failed write
// is fatal: the event stream cannot be resynchronized afterwards.
func (m *Mux) route(line string) error {
	event, ok := protocol.EventLine(line)
	if !ok {
		return nil
	}
	for _, s := range m.reg.EventTargets() {
		if _, err := io.WriteString(s.Handle, event+"\n"); err != nil {
			return fmt.Errorf("forward event to slot %d (%s, pid %d): %w", s.Slot, s.Command, s.Handle.PID(), err)
		}
		metrics.IncEventForwarded()
	}
	return nil
}
