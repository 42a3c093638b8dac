// Package linebuf splits a stream of read chunks into lines, retaining
// unterminated data across reads.
package linebuf

import "bytes"

// DefaultMaxLine bounds how much unterminated data a Buffer keeps before
// emitting it as a line anyway.
const DefaultMaxLine = 1 << 20

// Buffer accumulates chunks and yields complete newline-terminated lines.
// It is not safe for concurrent use; the demultiplexing loop owns it.
type Buffer struct {
	pending []byte
	max     int
}

// New returns a Buffer that force-emits pending data once it grows past max
// bytes. max <= 0 selects DefaultMaxLine.
func New(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &Buffer{max: max}
}

// Write appends chunk and returns every line completed by it, without the
// trailing "\n" or "\r\n".
func (b *Buffer) Write(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, trimCR(b.pending[:i]))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) > b.max {
		lines = append(lines, trimCR(b.pending))
		b.pending = nil
	}
	if len(b.pending) == 0 {
		// drop the consumed backing array
		b.pending = nil
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and empties the buffer.
// It is called at end-of-stream.
func (b *Buffer) Flush() (string, bool) {
	if len(b.pending) == 0 {
		return "", false
	}
	s := trimCR(b.pending)
	b.pending = nil
	return s, true
}

// Pending reports the number of buffered bytes not yet emitted.
func (b *Buffer) Pending() int { return len(b.pending) }

func trimCR(p []byte) string {
	return string(bytes.TrimSuffix(p, []byte("\r")))
}
