package mux

import (
	"github.com/loykin/barmux/internal/protocol"
	"github.com/loykin/barmux/internal/registry"
)

// Render returns the combined status line for reg: the current fragments of
// the live subprocesses in slot order. Subprocesses without a status
// contribute nothing.
func Render(reg *registry.Registry) string {
	return protocol.Line(reg.Statuses())
}
