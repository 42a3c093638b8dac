package process

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "barmux.pid")
	specs := []Spec{{Command: "date"}, {Command: "sh -c 'echo hi'"}}
	require.NoError(t, WritePIDFile(p, 4242, specs))

	pid, got, err := ReadPIDFile(p)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
	assert.Equal(t, specs, got)
}

func TestReadPIDFile_PIDOnlyAndGarbage(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.pid")
	require.NoError(t, os.WriteFile(plain, []byte("77\n"), 0o644))
	pid, specs, err := ReadPIDFile(plain)
	require.NoError(t, err)
	assert.Equal(t, 77, pid)
	assert.Nil(t, specs)

	junk := filepath.Join(dir, "junk.pid")
	require.NoError(t, os.WriteFile(junk, []byte("78\n{not json"), 0o644))
	pid, specs, err = ReadPIDFile(junk)
	require.NoError(t, err)
	assert.Equal(t, 78, pid)
	assert.Nil(t, specs)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("abc\n"), 0o644))
	_, _, err = ReadPIDFile(bad)
	assert.Error(t, err)
}

func TestSignalPIDFile(t *testing.T) {
	p, err := Start(Spec{Command: "sleep 30"}, nil, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "child.pid")
	require.NoError(t, WritePIDFile(path, p.PID(), nil))

	pid, err := SignalPIDFile(path, syscall.SIGTERM)
	require.NoError(t, err)
	assert.Equal(t, p.PID(), pid)
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	p.CloseIO()

	_, err = SignalPIDFile(path, syscall.SIGTERM)
	assert.ErrorIs(t, err, ErrNotRunning)
}
