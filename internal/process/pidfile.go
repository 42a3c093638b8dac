//go:build !windows

package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrNotRunning is returned by SignalPIDFile when the recorded process is gone.
var ErrNotRunning = errors.New("process not running")

// WritePIDFile writes pid on the first line followed by the JSON-encoded
// specs of the status commands the process runs.
func WritePIDFile(path string, pid int, specs []Spec) error {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(pid))
	sb.WriteByte('\n')
	if len(specs) > 0 {
		b, err := json.Marshal(specs)
		if err != nil {
			return err
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// ReadPIDFile reads a PID file written by WritePIDFile.
// It returns the PID and, if present, the specs that follow.
// For files that contain only the PID, specs will be nil.
func ReadPIDFile(path string) (int, []Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, nil, fmt.Errorf("pid file %s: %w", path, err)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return pid, nil, nil
	}
	var specs []Spec
	if err := json.Unmarshal([]byte(rest), &specs); err != nil {
		// the PID is still usable
		return pid, nil, nil
	}
	return pid, specs, nil
}

// SignalPIDFile sends sig to the process recorded in the PID file at path and
// returns its PID.
func SignalPIDFile(path string, sig syscall.Signal) (int, error) {
	pid, _, err := ReadPIDFile(path)
	if err != nil {
		return 0, err
	}
	if pid <= 0 || !processExists(pid) {
		return pid, fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
	}
	return pid, syscall.Kill(pid, sig)
}
