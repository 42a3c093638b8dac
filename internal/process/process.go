package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// killWait bounds how long Stop waits for the reaper after SIGKILL.
const killWait = 500 * time.Millisecond

// ErrNotReaped is returned by Stop when the child outlived SIGKILL's wait window.
var ErrNotReaped = errors.New("process did not exit after kill")

// Process is one running child with a pipe to its stdin and a pipe from its
// stdout. The parent holds only the far ends of both pipes, so the child sees
// EOF on stdin when the parent closes it and the parent sees EOF on stdout
// when the child exits.
type Process struct {
	pid   int
	stdin *os.File // write end
	out   *os.File // read end

	mu       sync.Mutex
	exitErr  error
	ioClosed bool
	waitDone chan struct{} // closed once cmd.Wait returns
}

// Start spawns spec with merged environment env (nil inherits barmux's own)
// and stderr connected to errOut (nil discards it).
func Start(spec Spec, env []string, errOut io.Writer) (*Process, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		if len(env) == 0 {
			env = os.Environ()
		}
		env = append(append([]string(nil), env...), spec.Env...)
	}
	if len(env) > 0 {
		cmd.Env = env
	}
	configureSysProcAttr(cmd)

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		_ = inR.Close()
		_ = inW.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = errOut

	if err := cmd.Start(); err != nil {
		_ = inR.Close()
		_ = inW.Close()
		_ = outR.Close()
		_ = outW.Close()
		return nil, err
	}
	// the child owns these ends now
	_ = inR.Close()
	_ = outW.Close()

	p := &Process{
		pid:      cmd.Process.Pid,
		stdin:    inW,
		out:      outR,
		waitDone: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.waitDone)
	}()
	return p, nil
}

func (p *Process) PID() int { return p.pid }

// Stdout is the readable end of the child's standard output.
func (p *Process) Stdout() io.Reader { return p.out }

// Write sends b to the child's standard input.
func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.ioClosed
	p.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	return p.stdin.Write(b)
}

// Done is closed once the child has been reaped.
func (p *Process) Done() <-chan struct{} { return p.waitDone }

// Exited performs a non-blocking check whether the child has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}

// ExitErr returns the error reported by Wait; nil while running or on a clean exit.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// CloseIO closes both pipe ends held by the parent. Blocked readers of
// Stdout return with an error. It is idempotent.
func (p *Process) CloseIO() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ioClosed {
		return
	}
	p.ioClosed = true
	_ = p.stdin.Close()
	_ = p.out.Close()
}

// Stop closes the pipes and terminates the child: a child that already
// exited is left alone, otherwise its process group receives SIGTERM and,
// after wait, SIGKILL.
func (p *Process) Stop(wait time.Duration) error {
	p.CloseIO()
	if p.Exited() {
		return nil
	}
	_ = signalGroup(p.pid, sigTerm)
	select {
	case <-p.waitDone:
		return nil
	case <-time.After(wait):
	}
	_ = signalGroup(p.pid, sigKill)
	select {
	case <-p.waitDone:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("pid %d: %w", p.pid, ErrNotReaped)
	}
}
