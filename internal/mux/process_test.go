//go:build unix

package mux

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script writes body to a file and returns a command line running it.
func script(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return "sh " + p
}

func TestRun_RealProcesses(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "battery.pid")
	battery := script(t, dir, "battery.sh", "echo $$ > "+pidFile+"\necho 'Battery 80%'\nexec sleep 30\n")
	volume := script(t, dir, "volume.sh", `echo '{"version":1,"click_events":true}'
echo '['
echo '[{"full_text":"Vol 50%"}]'
while read -r ev; do
  echo ',[{"full_text":"Vol muted"}]'
done
`)

	m, err := New(Options{
		Commands:    []string{battery, volume},
		Spawn:       ProcessSpawner(nil, io.Discard),
		StopTimeout: 500 * time.Millisecond,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)

	hostR, hostW := io.Pipe()
	outR, outW := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := m.Run(context.Background(), hostR, outW, nil)
		_ = outW.Close()
		errc <- err
	}()
	lines := make(chan string, 1024)
	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	expect := func(want string) {
		t.Helper()
		deadline := time.After(waitFor)
		for {
			select {
			case l, ok := <-lines:
				require.True(t, ok, "output closed before %q", want)
				if l == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	expect(hostHeader)
	expect(`[{"full_text":"Battery 80%"},{"full_text":"Vol 50%"}],`)

	_, err = io.WriteString(hostW, "[\n{\"name\":\"volume\",\"button\":1}\n")
	require.NoError(t, err)
	expect(`[{"full_text":"Battery 80%"},{"full_text":"Vol muted"}],`)

	require.NoError(t, hostW.Close())
	expect("]")
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("run did not return")
	}

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.ErrorIs(t, syscall.Kill(pid, 0), syscall.ESRCH)
}

func TestRun_RealSpawnFailure(t *testing.T) {
	m, err := New(Options{
		Commands: []string{"/definitely/not/here/status"},
		Spawn:    ProcessSpawner(nil, io.Discard),
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	var out strings.Builder
	err = m.Run(context.Background(), strings.NewReader(""), &out, nil)
	require.Error(t, err)
	assert.Empty(t, out.String())
}
