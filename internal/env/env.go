// Package env composes the environment handed to status commands.
package env

import (
	"os"
	"sort"
	"strings"
)

// Env holds barmux-wide variables layered over the inherited OS environment.
// The zero value is not usable; call New.
type Env struct {
	vars map[string]string
	base map[string]string // OS environment, captured lazily
}

func New() *Env { return &Env{vars: make(map[string]string)} }

// FromPairs builds an Env from "KEY=VALUE" entries; malformed entries are skipped.
func FromPairs(kvs []string) *Env {
	e := New()
	for _, kv := range kvs {
		if k, v, ok := split(kv); ok {
			e.vars[k] = v
		}
	}
	return e
}

// WithSet returns a copy of e with k set to v.
func (e *Env) WithSet(k, v string) *Env {
	n := &Env{vars: make(map[string]string, len(e.vars)+1), base: e.base}
	for ck, cv := range e.vars {
		n.vars[ck] = cv
	}
	if k != "" {
		n.vars[k] = v
	}
	return n
}

// Len returns the number of barmux-wide variables.
func (e *Env) Len() int { return len(e.vars) }

// Merge composes the final environment: OS env, then barmux-wide variables,
// then perProc entries. ${VAR} references are expanded once against the
// composed map. The result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	if e.base == nil {
		e.base = osEnv()
	}
	m := make(map[string]string, len(e.base)+len(e.vars)+len(perProc))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.vars {
		m[k] = v
	}
	for _, kv := range perProc {
		if k, v, ok := split(kv); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

// expand replaces ${NAME} with its value from m; unknown names expand to
// the empty string and other "$" sequences are left untouched.
func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var sb strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			break
		}
		sb.WriteString(s[:i])
		sb.WriteString(m[s[i+2:i+j]])
		s = s[i+j+1:]
	}
	sb.WriteString(s)
	return sb.String()
}

func osEnv() map[string]string {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := split(kv); ok {
			base[k] = v
		}
	}
	return base
}

func split(kv string) (string, string, bool) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", false
	}
	return k, v, true
}
