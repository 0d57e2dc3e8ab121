// Package session manages background command executions: spawning, output
// streaming, lifecycle and archival.
//
// Invariants:
// - Session ids are monotonic and never reused.
// - A session id lives in exactly one of the active map or the archive.
// - A session's output events are delivered in the order its reader saw them.
// - The archive never exceeds its capacity; overflow evicts the lowest id.
//
// Usage:
//
//	reg := session.New(launcher.NewShellLauncher(""), session.Config{}, nil)
//	res := reg.Start(context.Background(), "echo hello", "", 2*time.Second)
//	more := reg.Read(res.SessionID, 5*time.Second)
//	_ = more
package session
