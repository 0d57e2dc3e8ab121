// Package tools exposes the session registry operations in the wire shape the
// platform-facing tool layer consumes: an action name plus a parameter map in,
// a response map out.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mahendra/kerani/pkg/session"
)

// Options holds handler defaults applied when a request omits a timeout.
type Options struct {
	DefaultStartTimeout time.Duration
	DefaultReadTimeout  time.Duration
}

// Handler validates and dispatches tool actions against a registry.
type Handler struct {
	registry *session.Registry
	schemas  map[string]*gojsonschema.Schema
	opts     Options
}

// NewHandler creates a handler. Zero option values select 30s/5s defaults.
func NewHandler(registry *session.Registry, opts Options) (*Handler, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.DefaultStartTimeout <= 0 {
		opts.DefaultStartTimeout = 30 * time.Second
	}
	if opts.DefaultReadTimeout <= 0 {
		opts.DefaultReadTimeout = 5 * time.Second
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	return &Handler{
		registry: registry,
		schemas:  schemas,
		opts:     opts,
	}, nil
}

// Actions lists the dispatchable action names.
func (h *Handler) Actions() []string {
	return []string{ActionExecuteCommand, ActionReadOutput, ActionForceTerminate, ActionListSessions}
}

// Dispatch validates params against the action's schema and runs it. Unknown
// actions and invalid parameters come back as error responses, not failures,
// to keep the interface forgiving for interactive callers.
func (h *Handler) Dispatch(ctx context.Context, action string, params map[string]interface{}) map[string]interface{} {
	schema, ok := h.schemas[action]
	if !ok {
		return errorResponse(fmt.Sprintf("unknown action: %s", action))
	}
	if err := validateParams(schema, params); err != nil {
		return errorResponse(fmt.Sprintf("invalid parameters for %s: %v", action, err))
	}

	switch action {
	case ActionExecuteCommand:
		return h.executeCommand(ctx, params)
	case ActionReadOutput:
		return h.readOutput(params)
	case ActionForceTerminate:
		return h.forceTerminate(params)
	case ActionListSessions:
		return h.listSessions()
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", action))
	}
}

func (h *Handler) executeCommand(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	command, _ := stringParam(params, "command")
	shell, _ := stringParam(params, "shell")
	timeout := h.opts.DefaultStartTimeout
	if ms, ok := intParam(params, "timeout_ms"); ok {
		timeout = time.Duration(ms) * time.Millisecond
	}

	res := h.registry.Start(ctx, command, shell, timeout)
	if res.Err != "" {
		return map[string]interface{}{
			"success":    false,
			"error":      res.Err,
			"session_id": res.SessionID,
		}
	}

	message := fmt.Sprintf("Command started with session ID %d", res.SessionID)
	if res.StillRunning {
		message += "\nCommand is still running. Use read_output to get more output."
	}

	return map[string]interface{}{
		"success":        true,
		"session_id":     res.SessionID,
		"initial_output": res.InitialOutput,
		"is_running":     res.StillRunning,
		"message":        message,
	}
}

func (h *Handler) readOutput(params map[string]interface{}) map[string]interface{} {
	sessionID, _ := intParam(params, "session_id")
	timeout := h.opts.DefaultReadTimeout
	if ms, ok := intParam(params, "timeout_ms"); ok {
		timeout = time.Duration(ms) * time.Millisecond
	}

	res := h.registry.Read(sessionID, timeout)

	return map[string]interface{}{
		"success":         true,
		"session_id":      sessionID,
		"output":          res.Output,
		"timeout_reached": res.TimeoutReached,
		"has_output":      len(strings.TrimSpace(res.Output)) > 0,
	}
}

func (h *Handler) forceTerminate(params map[string]interface{}) map[string]interface{} {
	sessionID, _ := intParam(params, "session_id")

	if !h.registry.Terminate(sessionID) {
		return map[string]interface{}{
			"success":    false,
			"session_id": sessionID,
			"error":      fmt.Sprintf("No active session found for ID %d", sessionID),
		}
	}

	return map[string]interface{}{
		"success":    true,
		"session_id": sessionID,
		"message":    fmt.Sprintf("Successfully terminated session %d", sessionID),
	}
}

func (h *Handler) listSessions() map[string]interface{} {
	sessions := h.registry.List()

	log.Debug().Int("count", len(sessions)).Msg("Listed active sessions")

	return map[string]interface{}{
		"success":         true,
		"active_sessions": sessions,
		"total_sessions":  len(sessions),
	}
}

func errorResponse(msg string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   msg,
	}
}

// stringParam extracts a string parameter.
func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// intParam extracts an integer parameter, accepting the float64 that JSON
// decoding produces for numbers.
func intParam(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
