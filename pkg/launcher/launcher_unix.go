//go:build unix

package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

const platformDefaultShell = "/bin/bash"

// buildCommand wraps the command text in the resolved shell. The child gets its
// own process group so Stop and Kill reach the whole tree.
func buildCommand(shellPath, command string) *exec.Cmd {
	cmd := exec.Command(shellPath, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// Stop sends SIGTERM to the process group.
func (p *process) Stop() error {
	return p.signalGroup(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process group.
func (p *process) Kill() error {
	return p.signalGroup(syscall.SIGKILL)
}

func (p *process) signalGroup(sig syscall.Signal) error {
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		// The group may be gone while the leader lingers; fall back to it.
		if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("signal pid %d: %w", pid, err)
		}
	}
	return nil
}
