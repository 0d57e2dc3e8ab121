//go:build windows

package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const platformDefaultShell = "cmd.exe"

// buildCommand wraps the command text in the resolved shell. cmd.exe and the
// PowerShell family take the command text after different flags.
func buildCommand(shellPath, command string) *exec.Cmd {
	switch strings.ToLower(filepath.Base(shellPath)) {
	case "powershell.exe", "pwsh.exe":
		return exec.Command(shellPath, "-Command", command)
	default:
		return exec.Command(shellPath, "/C", command)
	}
}

// Stop degrades to Kill; there is no graceful signal for a detached child here.
func (p *process) Stop() error {
	return p.Kill()
}

func (p *process) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}
