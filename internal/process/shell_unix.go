//go:build !windows

package process

import "os/exec"

// getShellCommand runs script through /bin/sh, the way status bar configs
// usually spell their commands.
func getShellCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}
