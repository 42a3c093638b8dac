package env

import (
	"strings"
	"testing"
)

// FuzzExpandMerge feeds global and per-command variables through Merge and
// checks the result stays a well-formed environment.
func FuzzExpandMerge(f *testing.F) {
	// newline-separated K=V pairs: global, then per-command
	f.Add([]byte("BARMUX_ICONS=/usr/share/icons\nBARMUX_BATTERY_ICON=${BARMUX_ICONS}/battery.svg"), []byte("LABEL=${BARMUX_BATTERY_ICON}-bat"))
	f.Add([]byte("BARMUX_INTERVAL=5"), []byte("BARMUX_INTERVAL=${BARMUX_INTERVAL}0"))
	f.Add([]byte("BARMUX_A=$BARMUX_B"), []byte("BARMUX_B=${BARMUX_A}"))
	f.Add([]byte("BARMUX_EMPTY="), []byte("=orphan\nBARMUX_COLOR=#00ff00"))

	f.Fuzz(func(t *testing.T, globalB []byte, perB []byte) {
		// Decode slices from newline-separated bytes
		global := splitNZ(string(globalB))
		per := splitNZ(string(perB))
		if len(global) > 20 {
			global = global[:20]
		}
		if len(per) > 20 {
			per = per[:20]
		}

		e := New()
		for _, kv := range global {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				e = e.WithSet(kv[:i], kv[i+1:])
			}
		}
		out := e.Merge(per)
		// every entry is KEY=VALUE with a non-empty key
		for _, kv := range out {
			if !strings.Contains(kv, "=") {
				t.Fatalf("bad pair: %q", kv)
			}
			if strings.HasPrefix(kv, "=") {
				t.Fatalf("empty key: %q", kv)
			}
		}
		// without any '$' in the input, no placeholder can appear in the output
		containsDollar := false
		for _, s := range append(append([]string{}, global...), per...) {
			if strings.ContainsRune(s, '$') {
				containsDollar = true
				break
			}
		}
		if !containsDollar {
			for _, kv := range out {
				if strings.Contains(kv, "${") {
					t.Fatalf("unexpected placeholder remains: %q", kv)
				}
			}
		}
	})
}

// splitNZ splits s by newlines and returns non-empty trimmed lines.
func splitNZ(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}
