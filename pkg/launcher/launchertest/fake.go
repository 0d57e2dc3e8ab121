// Package launchertest provides scriptable fakes for the launcher contract,
// for use in tests that need deterministic process behavior.
package launchertest

import (
	"context"
	"io"
	"sync"

	"github.com/mahendra/kerani/pkg/launcher"
)

// FakeProcess is a scriptable launcher.Process. Tests feed output with
// WriteOutput, end it with Exit, or abort the stream with FailOutput.
type FakeProcess struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	done chan struct{}

	mu         sync.Mutex
	exitCode   int
	exited     bool
	stopped    bool
	killed     bool
	IgnoreStop bool // when set, Stop records the call but the process keeps running
}

// NewFakeProcess creates a running fake process with an open output stream.
func NewFakeProcess() *FakeProcess {
	pr, pw := io.Pipe()
	return &FakeProcess{
		pr:   pr,
		pw:   pw,
		done: make(chan struct{}),
	}
}

// WriteOutput appends data to the merged output stream. It blocks until a
// reader consumes the data, mirroring pipe semantics.
func (p *FakeProcess) WriteOutput(s string) {
	p.pw.Write([]byte(s))
}

// Exit ends the process: the output stream hits EOF and the exit code becomes
// observable. Calling Exit twice is a no-op.
func (p *FakeProcess) Exit(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()

	p.pw.Close()
	close(p.done)
}

// FailOutput aborts the output stream with err so readers observe a stream
// error instead of EOF. The process itself never reports an exit code.
func (p *FakeProcess) FailOutput(err error) {
	p.pw.CloseWithError(err)
}

func (p *FakeProcess) Output() io.ReadCloser {
	return p.pr
}

func (p *FakeProcess) ExitCode() (int, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, true
	default:
		return 0, false
	}
}

func (p *FakeProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stop records the graceful-stop request and, unless IgnoreStop is set, exits
// with code 143 the way a SIGTERM'd shell would.
func (p *FakeProcess) Stop() error {
	p.mu.Lock()
	p.stopped = true
	ignore := p.IgnoreStop
	p.mu.Unlock()

	if !ignore {
		p.Exit(143)
	}
	return nil
}

// Kill records the kill and exits with code 137.
func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.Exit(137)
	return nil
}

// Stopped reports whether Stop was called.
func (p *FakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Killed reports whether Kill was called.
func (p *FakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// FakeLauncher hands out FakeProcesses. When Script is set it runs in its own
// goroutine against each launched process, playing the role of the child.
type FakeLauncher struct {
	Err    error
	Script func(command string, p *FakeProcess)

	mu       sync.Mutex
	launched []*FakeProcess
	commands []string
}

func (l *FakeLauncher) Launch(ctx context.Context, command, shell string) (launcher.Process, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	p := NewFakeProcess()

	l.mu.Lock()
	l.launched = append(l.launched, p)
	l.commands = append(l.commands, command)
	script := l.Script
	l.mu.Unlock()

	if script != nil {
		go script(command, p)
	}
	return p, nil
}

// Launched returns every process handed out so far.
func (l *FakeLauncher) Launched() []*FakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*FakeProcess, len(l.launched))
	copy(out, l.launched)
	return out
}

// Commands returns the command text of every Launch call.
func (l *FakeLauncher) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.commands))
	copy(out, l.commands)
	return out
}
