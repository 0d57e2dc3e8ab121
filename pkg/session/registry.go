package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mahendra/kerani/internal/metrics"
	"github.com/mahendra/kerani/pkg/launcher"
)

const (
	// DefaultArchiveCapacity bounds the completed-session archive.
	DefaultArchiveCapacity = 100

	// DefaultTerminateGrace is how long Terminate waits after a graceful stop
	// before escalating to a forced kill.
	DefaultTerminateGrace = 2 * time.Second
)

// Config holds registry tunables. Zero values select the defaults.
type Config struct {
	ArchiveCapacity int
	TerminateGrace  time.Duration
}

// Registry owns session id allocation, the active-session map and the bounded
// archive of completed sessions. A single mutex guards exactly those; it is
// never held while waiting on process I/O or a session's event queue.
type Registry struct {
	launcher launcher.Launcher
	metrics  *metrics.Metrics
	cfg      Config

	mu      sync.Mutex
	nextID  int
	active  map[int]*Session
	archive map[int]*Completed
}

// New creates a registry. The metrics handle may be nil.
func New(l launcher.Launcher, cfg Config, m *metrics.Metrics) *Registry {
	if cfg.ArchiveCapacity <= 0 {
		cfg.ArchiveCapacity = DefaultArchiveCapacity
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}

	r := &Registry{
		launcher: l,
		metrics:  m,
		cfg:      cfg,
		nextID:   1,
		active:   make(map[int]*Session),
		archive:  make(map[int]*Completed),
	}

	log.Info().
		Int("archive_capacity", cfg.ArchiveCapacity).
		Dur("terminate_grace", cfg.TerminateGrace).
		Msg("Session registry initialized")

	return r
}

// Start spawns the command and drains its output for up to timeout. The
// session keeps running in the background when the window closes first. A
// spawn failure is the only path that registers no session: it reports the
// sentinel id -1 and an error message.
func (r *Registry) Start(ctx context.Context, command, shell string, timeout time.Duration) StartResult {
	proc, err := r.launcher.Launch(ctx, command, shell)
	if err != nil {
		log.Error().Err(err).Str("command", truncateCommand(command)).Msg("Failed to start command")
		if r.metrics != nil {
			r.metrics.SpawnFailuresTotal.Inc()
		}
		return StartResult{
			SessionID:    -1,
			StillRunning: false,
			Err:          fmt.Sprintf("Failed to execute command: %v", err),
		}
	}

	s := &Session{
		CreatedAt: time.Now(),
		proc:      proc,
		events:    make(chan Event, eventQueueCapacity),
	}

	r.mu.Lock()
	s.ID = r.nextID
	r.nextID++
	r.active[s.ID] = s
	r.mu.Unlock()

	go readOutput(s)

	if r.metrics != nil {
		r.metrics.SessionsStartedTotal.Inc()
		r.metrics.SessionsActive.Inc()
	}

	log.Info().
		Int("session_id", s.ID).
		Str("command", truncateCommand(command)).
		Msg("Command started")

	start := time.Now()
	initial, stillRunning, errMsg := r.drainInitial(s, timeout)

	if r.metrics != nil {
		r.metrics.StartWindowDuration.Observe(time.Since(start).Seconds())
		r.metrics.OutputBytesTotal.Add(float64(len(initial)))
	}

	log.Debug().
		Int("session_id", s.ID).
		Int("initial_output_len", len(initial)).
		Bool("still_running", stillRunning).
		Msg("Initial output window closed")

	return StartResult{
		SessionID:     s.ID,
		InitialOutput: initial,
		StillRunning:  stillRunning,
		Err:           errMsg,
	}
}

// drainInitial collects output for the start window. It returns when the
// window expires or the session reaches a terminal event, whichever is first.
func (r *Registry) drainInitial(s *Session, timeout time.Duration) (initial string, stillRunning bool, errMsg string) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var collected string
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				// Terminal event was consumed concurrently; the session is on
				// its way to the archive.
				return collected + s.takePending(), false, ""
			}
			switch ev.Kind {
			case EventOutput:
				collected += s.takePending()
			case EventCompleted:
				s.markCompleted(ev.ExitCode)
				collected += s.takePending()
				r.moveToArchive(s)
				return collected, false, ""
			case EventError:
				collected += s.takePending()
				r.moveToArchive(s)
				return collected, false, fmt.Sprintf("Process error: %s", ev.Err)
			}
		case <-deadline.C:
			return collected, true, ""
		}
	}
}

// Read returns new output from a session, waiting up to timeout when none is
// pending. Archived sessions answer immediately with their retained summary;
// unknown ids answer immediately with an informational message.
func (r *Registry) Read(sessionID int, timeout time.Duration) ReadResult {
	r.mu.Lock()
	if rec, ok := r.archive[sessionID]; ok {
		r.mu.Unlock()
		r.countRead("archived")
		return ReadResult{Output: rec.Summary()}
	}
	s, ok := r.active[sessionID]
	r.mu.Unlock()

	if !ok {
		r.countRead("not_found")
		return ReadResult{Output: fmt.Sprintf("No session found for ID %d", sessionID)}
	}

	if pending := s.takePending(); pending != "" {
		r.countRead("output")
		if r.metrics != nil {
			r.metrics.OutputBytesTotal.Add(float64(len(pending)))
		}
		return ReadResult{Output: pending}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return r.readFinished(sessionID, s)
			}
			switch ev.Kind {
			case EventOutput:
				out := s.takePending()
				if out == "" {
					// Stale notification: an earlier caller already took the
					// chunk. Keep waiting.
					continue
				}
				r.countRead("output")
				if r.metrics != nil {
					r.metrics.OutputBytesTotal.Add(float64(len(out)))
				}
				return ReadResult{Output: out}
			case EventCompleted:
				s.markCompleted(ev.ExitCode)
				out := s.takePending()
				r.moveToArchive(s)
				r.countRead("completed")
				if out != "" {
					return ReadResult{Output: out}
				}
				return ReadResult{Output: fmt.Sprintf("Process completed with exit code %d", ev.ExitCode)}
			case EventError:
				out := s.takePending()
				r.moveToArchive(s)
				r.countRead("error")
				msg := fmt.Sprintf("Process error: %s", ev.Err)
				if out != "" {
					msg = out + msg
				}
				return ReadResult{Output: msg}
			}
		case <-deadline.C:
			r.countRead("timeout")
			return ReadResult{Output: "No new output available", TimeoutReached: true}
		}
	}
}

// readFinished handles the race where another caller consumed the terminal
// event: surface whatever final state is on record.
func (r *Registry) readFinished(sessionID int, s *Session) ReadResult {
	r.mu.Lock()
	rec, archived := r.archive[sessionID]
	r.mu.Unlock()

	if !archived {
		r.moveToArchive(s)
		r.mu.Lock()
		rec = r.archive[sessionID]
		r.mu.Unlock()
	}
	r.countRead("completed")
	if rec != nil {
		return ReadResult{Output: fmt.Sprintf("Process completed with exit code %s", formatExitCode(rec.ExitCode))}
	}
	// The record was archived and already evicted.
	return ReadResult{Output: fmt.Sprintf("No session found for ID %d", sessionID)}
}

// Terminate stops an active session: graceful stop first, forced kill after
// the grace period, then archival. It reports false for ids that are unknown
// or already archived, and on any stop failure (logged, state unchanged).
func (r *Registry) Terminate(sessionID int) bool {
	r.mu.Lock()
	s, ok := r.active[sessionID]
	r.mu.Unlock()

	if !ok {
		log.Debug().Int("session_id", sessionID).Msg("Terminate requested for unknown session")
		r.countTermination("not_found")
		return false
	}

	if err := r.stopProcess(s); err != nil {
		log.Error().Err(err).Int("session_id", sessionID).Msg("Failed to terminate session")
		r.countTermination("error")
		return false
	}

	r.moveToArchive(s)
	r.countTermination("ok")

	log.Info().Int("session_id", sessionID).Msg("Session terminated")
	return true
}

// stopProcess asks the process to stop, waits out the grace period, then
// kills. The observed exit status is recorded on the session.
func (r *Registry) stopProcess(s *Session) error {
	if code, done := s.proc.ExitCode(); done {
		s.markCompleted(code)
		return nil
	}

	if err := s.proc.Stop(); err != nil {
		return fmt.Errorf("graceful stop: %w", err)
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), r.cfg.TerminateGrace)
	defer cancel()
	if code, err := s.proc.Wait(graceCtx); err == nil {
		s.markCompleted(code)
		return nil
	}

	if err := s.proc.Kill(); err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	code, err := s.proc.Wait(context.Background())
	if err != nil {
		return fmt.Errorf("wait after kill: %w", err)
	}
	s.markCompleted(code)
	return nil
}

// List returns a read-only snapshot of active sessions, ordered by id.
func (r *Registry) List() []Status {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	now := time.Now()
	statuses := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.status(now))
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].SessionID < statuses[j].SessionID
	})
	return statuses
}

// IsActive reports whether the id is currently in the active map.
func (r *Registry) IsActive(sessionID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

// Counts reports the occupancy of the active map and the archive.
func (r *Registry) Counts() (active, archived int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), len(r.archive)
}

// EvictArchivedBefore removes archive entries that ended before cutoff and
// returns how many were evicted.
func (r *Registry) EvictArchivedBefore(cutoff time.Time) int {
	r.mu.Lock()
	evicted := 0
	for id, rec := range r.archive {
		if rec.EndedAt.Before(cutoff) {
			delete(r.archive, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		if r.metrics != nil {
			r.metrics.ArchiveEvictionsTotal.Add(float64(evicted))
		}
		log.Debug().Int("evicted", evicted).Msg("Evicted aged archive entries")
	}
	return evicted
}

// moveToArchive atomically moves a session from the active map into the
// archive, evicting the lowest id while over capacity. It is a no-op when a
// concurrent caller archived the session first.
func (r *Registry) moveToArchive(s *Session) {
	output, code := s.finalState()
	rec := &Completed{
		ID:        s.ID,
		Output:    output,
		ExitCode:  code,
		StartedAt: s.CreatedAt,
		EndedAt:   time.Now(),
	}

	r.mu.Lock()
	if _, ok := r.active[s.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.active, s.ID)
	r.archive[s.ID] = rec

	evicted := 0
	for len(r.archive) > r.cfg.ArchiveCapacity {
		oldest := -1
		for id := range r.archive {
			if oldest == -1 || id < oldest {
				oldest = id
			}
		}
		delete(r.archive, oldest)
		evicted++
	}
	r.mu.Unlock()

	// Release the reader goroutine if it is still producing notifications.
	go drainDiscard(s.events)

	if r.metrics != nil {
		r.metrics.SessionsActive.Dec()
		r.metrics.SessionsArchivedTotal.Inc()
		if evicted > 0 {
			r.metrics.ArchiveEvictionsTotal.Add(float64(evicted))
		}
	}

	log.Info().
		Int("session_id", s.ID).
		Str("exit_code", formatExitCode(code)).
		Int("output_len", len(output)).
		Msg("Session archived")
}

func drainDiscard(events <-chan Event) {
	for range events {
	}
}

func (r *Registry) countRead(outcome string) {
	if r.metrics != nil {
		r.metrics.ReadsTotal.WithLabelValues(outcome).Inc()
	}
}

func (r *Registry) countTermination(result string) {
	if r.metrics != nil {
		r.metrics.TerminationsTotal.WithLabelValues(result).Inc()
	}
}

func truncateCommand(command string) string {
	const max = 100
	if len(command) <= max {
		return command
	}
	return command[:max] + "..."
}
