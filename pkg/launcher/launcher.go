package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyCommand is returned when the command text is blank
	ErrEmptyCommand = errors.New("command cannot be empty")

	// ErrShellNotFound is returned when the shell selector cannot be resolved
	ErrShellNotFound = errors.New("shell not found")
)

// Process is a handle to one running command. The output stream merges stdout
// and stderr and reaches EOF when the process exits.
type Process interface {
	// Output returns the merged output stream.
	Output() io.ReadCloser
	// ExitCode reports the exit code without blocking; ok is false while the
	// process is still running.
	ExitCode() (code int, ok bool)
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) (int, error)
	// Stop requests a graceful shutdown.
	Stop() error
	// Kill forcibly terminates the process.
	Kill() error
}

// Launcher spawns shell commands. The shell selector is either empty (platform
// default), a bare executable name resolved via PATH, or an explicit path.
type Launcher interface {
	Launch(ctx context.Context, command, shell string) (Process, error)
}

// ShellLauncher runs commands through a resolved shell on the host.
type ShellLauncher struct {
	defaultShell string
}

// NewShellLauncher creates a launcher. An empty defaultShell falls back to the
// platform default.
func NewShellLauncher(defaultShell string) *ShellLauncher {
	if defaultShell == "" {
		defaultShell = platformDefaultShell
	}
	return &ShellLauncher{defaultShell: defaultShell}
}

// resolveShell maps a shell selector to an executable path.
func (l *ShellLauncher) resolveShell(shell string) (string, error) {
	if shell == "" {
		shell = l.defaultShell
	}
	// Anything with a path separator is taken literally.
	if strings.ContainsAny(shell, `/\`) {
		if _, err := os.Stat(shell); err != nil {
			return "", fmt.Errorf("%w: %s", ErrShellNotFound, shell)
		}
		return shell, nil
	}
	path, err := exec.LookPath(shell)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrShellNotFound, shell)
	}
	return path, nil
}

// Launch starts the command and returns its handle. It fails without side
// effects when the shell cannot be resolved or the process cannot spawn.
func (l *ShellLauncher) Launch(ctx context.Context, command, shell string) (Process, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	shellPath, err := l.resolveShell(shell)
	if err != nil {
		return nil, err
	}

	cmd := buildCommand(shellPath, command)

	// A single pipe shared by stdout and stderr gives the merged stream; EOF
	// arrives once every holder of the write end has exited.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", shellPath, err)
	}

	// The child holds its own copy of the write end.
	pw.Close()

	p := &process{
		cmd:  cmd,
		out:  pr,
		done: make(chan struct{}),
	}
	go p.reap()

	log.Debug().
		Str("shell", shellPath).
		Int("pid", cmd.Process.Pid).
		Msg("Process launched")

	return p, nil
}

// process wraps exec.Cmd behind the Process contract.
type process struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

// reap collects the exit status as soon as the process finishes.
func (p *process) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			err = nil
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	p.exitCode = code
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *process) Output() io.ReadCloser {
	return p.out
}

func (p *process) ExitCode() (int, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, true
	default:
		return 0, false
	}
}

func (p *process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, p.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
