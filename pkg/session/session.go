package session

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mahendra/kerani/pkg/launcher"
)

// Session tracks one live command: its process handle, output buffers and
// completion state. Buffer and flag fields are guarded by mu; the registry's
// coarse lock covers only map membership and id allocation.
type Session struct {
	ID        int
	CreatedAt time.Time

	proc   launcher.Process
	events chan Event

	mu          sync.Mutex
	accumulated strings.Builder
	pending     strings.Builder
	completed   bool
	exitCode    *int
}

// appendOutput records a chunk in both the append-only accumulated buffer and
// the pending buffer. Called only by the session's reader goroutine.
func (s *Session) appendOutput(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated.WriteString(chunk)
	s.pending.WriteString(chunk)
}

// takePending returns and clears the output not yet delivered to any caller.
func (s *Session) takePending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending.String()
	s.pending.Reset()
	return out
}

// markCompleted records a natural or forced exit.
func (s *Session) markCompleted(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
	s.exitCode = &code
}

// markErrored records a stream failure, salvaging the exit code if the process
// already finished.
func (s *Session) markErrored() {
	code, ok := s.proc.ExitCode()
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.exitCode = &code
	}
}

// finalState snapshots the accumulated output and exit code for archival.
func (s *Session) finalState() (string, *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated.String(), s.exitCode
}

func (s *Session) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Session) exitStatus() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// status snapshots the fields List reports.
func (s *Session) status(now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:         s.ID,
		Completed:         s.completed,
		RuntimeSeconds:    now.Sub(s.CreatedAt).Seconds(),
		HasNewOutput:      s.pending.Len() > 0,
		TotalOutputLength: s.accumulated.Len(),
	}
}

// Completed is the archived record of a finished session. It is created exactly
// once, at the moment the session leaves the active map.
type Completed struct {
	ID        int
	Output    string
	ExitCode  *int
	StartedAt time.Time
	EndedAt   time.Time
}

// Summary renders the record for a late read: exit code, runtime and the full
// retained output.
func (c *Completed) Summary() string {
	runtime := c.EndedAt.Sub(c.StartedAt).Seconds()
	var b strings.Builder
	b.WriteString("Process completed with exit code ")
	b.WriteString(formatExitCode(c.ExitCode))
	b.WriteString("\nRuntime: ")
	b.WriteString(strconv.FormatFloat(runtime, 'f', 2, 64))
	b.WriteString("s\nFinal output:\n")
	b.WriteString(c.Output)
	return b.String()
}

func formatExitCode(code *int) string {
	if code == nil {
		return "unknown"
	}
	return strconv.Itoa(*code)
}

// StartResult is what Start reports after its initial drain window.
type StartResult struct {
	SessionID     int
	InitialOutput string
	StillRunning  bool
	Err           string
}

// ReadResult is what Read reports. TimeoutReached is true only when the wait
// expired without any event arriving.
type ReadResult struct {
	Output         string
	TimeoutReached bool
}

// Status is one row of List's snapshot of active sessions.
type Status struct {
	SessionID         int     `json:"session_id"`
	Completed         bool    `json:"is_completed"`
	RuntimeSeconds    float64 `json:"runtime_seconds"`
	HasNewOutput      bool    `json:"has_new_output"`
	TotalOutputLength int     `json:"total_output_length"`
}
