//go:build unix

package launcher

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launchAndWait(t *testing.T, command string) (string, int) {
	t.Helper()

	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), command, "")
	require.NoError(t, err)

	out, err := io.ReadAll(p.Output())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := p.Wait(ctx)
	require.NoError(t, err)

	return string(out), code
}

func TestShellLauncher_CapturesStdout(t *testing.T) {
	out, code := launchAndWait(t, "echo hello")
	assert.Equal(t, "hello\n", out)
	assert.Equal(t, 0, code)
}

func TestShellLauncher_MergesStderr(t *testing.T) {
	out, code := launchAndWait(t, "echo out; echo err 1>&2")
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n")
	assert.Equal(t, 0, code)
}

func TestShellLauncher_ReportsExitCode(t *testing.T) {
	_, code := launchAndWait(t, "exit 42")
	assert.Equal(t, 42, code)
}

func TestShellLauncher_EmptyCommand(t *testing.T) {
	l := NewShellLauncher("")

	for _, command := range []string{"", "   ", "\t\n"} {
		p, err := l.Launch(context.Background(), command, "")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrEmptyCommand)
	}
}

func TestShellLauncher_ShellNotFound(t *testing.T) {
	l := NewShellLauncher("")

	tests := []struct {
		name  string
		shell string
	}{
		{name: "unknown name on PATH", shell: "definitely-not-a-shell-kerani"},
		{name: "explicit path missing", shell: "/nonexistent/bin/sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := l.Launch(context.Background(), "echo hi", tt.shell)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrShellNotFound)
		})
	}
}

func TestShellLauncher_ExplicitShellPath(t *testing.T) {
	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), "echo via-sh", "/bin/sh")
	require.NoError(t, err)

	out, err := io.ReadAll(p.Output())
	require.NoError(t, err)
	assert.Equal(t, "via-sh\n", string(out))

	_, err = p.Wait(context.Background())
	require.NoError(t, err)
}

func TestProcess_ExitCodeNonBlocking(t *testing.T) {
	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), "sleep 5", "")
	require.NoError(t, err)
	defer p.Kill()

	_, done := p.ExitCode()
	assert.False(t, done)
}

func TestProcess_StopEndsProcess(t *testing.T) {
	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), "sleep 30", "")
	require.NoError(t, err)

	require.NoError(t, p.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, 0, code)

	got, done := p.ExitCode()
	assert.True(t, done)
	assert.Equal(t, code, got)
}

func TestProcess_KillEndsProcessGroup(t *testing.T) {
	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), "sleep 30 & sleep 30", "")
	require.NoError(t, err)

	require.NoError(t, p.Kill())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = p.Wait(ctx)
	require.NoError(t, err)

	// The output pipe must hit EOF: no orphan holds the write end open.
	readDone := make(chan struct{})
	go func() {
		io.ReadAll(p.Output())
		close(readDone)
	}()
	select {
	case <-readDone:
	case <-time.After(5 * time.Second):
		t.Fatal("output pipe never reached EOF after kill")
	}
}

func TestProcess_WaitHonorsContext(t *testing.T) {
	l := NewShellLauncher("")
	p, err := l.Launch(context.Background(), "sleep 30", "")
	require.NoError(t, err)
	defer p.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
