//go:build !windows

package process

import "syscall"

const (
	sigTerm = syscall.SIGTERM
	sigKill = syscall.SIGKILL
)

// signalGroup sends sig to the process group led by pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// processExists reports whether pid can still be signalled.
func processExists(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
