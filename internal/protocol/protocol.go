// Package protocol implements the host-facing side of the i3bar status
// protocol: the header, the endless array of status lines, and the escaping
// used to turn plain text into a status fragment.
package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Version is the protocol version barmux announces to the host.
const Version = 1

// Header is the first object exchanged on a structured stream. The same type
// is used to announce barmux to the host and to recognize a subprocess that
// speaks the protocol itself.
type Header struct {
	Version     int  `json:"version"`
	ClickEvents bool `json:"click_events,omitempty"`
}

// ParseHeader reports whether line is a protocol header: a JSON object with a
// numeric "version" member.
func ParseHeader(line string) (Header, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"version"`) {
		return Header{}, false
	}
	var raw struct {
		Version     *int  `json:"version"`
		ClickEvents *bool `json:"click_events"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil || raw.Version == nil {
		return Header{}, false
	}
	h := Header{Version: *raw.Version}
	if raw.ClickEvents != nil {
		h.ClickEvents = *raw.ClickEvents
	}
	return h, true
}

var textEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
var textUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)

// EscapeText escapes backslashes and double quotes so s can be embedded in a
// JSON string literal.
func EscapeText(s string) string { return textEscaper.Replace(s) }

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string { return textUnescaper.Replace(s) }

// PlainFragment wraps a line of arbitrary text as a minimal status fragment.
func PlainFragment(text string) string {
	return `{"full_text":"` + EscapeText(text) + `"}`
}

// UnwrapArray extracts the content of a status line of the form
// `,[ ... ]` or `[ ... ]`. The content is returned verbatim.
func UnwrapArray(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, ",")
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

// ErrClosed is returned by Writer methods after Close.
var ErrClosed = errors.New("protocol: writer closed")

// Writer emits the host-facing stream. Begin must be called once before
// any status line; Close ends the top-level array.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	begun  bool
	closed bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Begin writes the header announcing click-event support followed by the
// opening bracket of the status array.
func (p *Writer) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.begun {
		return nil
	}
	hdr, err := json.Marshal(Header{Version: Version, ClickEvents: true})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(p.w, "%s\n[\n", hdr); err != nil {
		return err
	}
	p.begun = true
	return p.w.Flush()
}

// WriteLine writes one combined status line as rendered by Line.
func (p *Writer) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, err := p.w.WriteString(line); err != nil {
		return err
	}
	return p.w.Flush()
}

// Close terminates the status array. It is idempotent.
func (p *Writer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if _, err := p.w.WriteString("]\n"); err != nil {
		return err
	}
	return p.w.Flush()
}

// Line renders the combined status line for fragments, including the
// trailing separator that continues the open array.
func Line(fragments []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	n := 0
	for _, f := range fragments {
		if f == "" {
			continue
		}
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f)
		n++
	}
	sb.WriteString("],\n")
	return sb.String()
}

// EventLine normalizes one line read from the host: surrounding whitespace
// and a leading array separator ("," or "[") are removed. The boolean is
// false when nothing is left to forward.
func EventLine(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s != "" && (s[0] == ',' || s[0] == '[') {
		s = strings.TrimSpace(s[1:])
	}
	return s, s != ""
}
