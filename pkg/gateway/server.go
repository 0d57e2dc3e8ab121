// Package gateway serves the session operations over HTTP and websocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mahendra/kerani/pkg/session"
	"github.com/mahendra/kerani/pkg/tools"
)

// Config holds server configuration
type Config struct {
	Addr     string
	Tools    *tools.Handler
	Registry *session.Registry
	Metrics  http.Handler // optional; mounted at /metrics when set

	// StreamReadTimeout bounds each registry read made on behalf of a
	// websocket subscriber. Zero selects one second.
	StreamReadTimeout time.Duration
}

// Server is the HTTP/websocket surface over the session registry.
type Server struct {
	addr              string
	tools             *tools.Handler
	registry          *session.Registry
	metrics           http.Handler
	streamReadTimeout time.Duration

	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tools handler is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.StreamReadTimeout <= 0 {
		cfg.StreamReadTimeout = time.Second
	}

	return &Server{
		addr:              cfg.Addr,
		tools:             cfg.Tools,
		registry:          cfg.Registry,
		metrics:           cfg.Metrics,
		streamReadTimeout: cfg.StreamReadTimeout,
		logger:            log.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool surface, no cross-origin policy
			},
		},
	}, nil
}

// Handler returns the routing table, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/system", s.handleSystem)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Gateway listening")
	return nil
}

// Shutdown stops the server, waiting for in-flight requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// systemRequest is the dispatch envelope: an action name plus its parameters.
type systemRequest struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	var req systemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn().Err(err).Msg("Malformed system request")
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("malformed request body: %v", err),
		})
		return
	}

	logger.Debug().Str("action", req.Action).Msg("Dispatching system action")

	resp := s.tools.Dispatch(r.Context(), req.Action, req.Params)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp := s.tools.Dispatch(r.Context(), tools.ActionListSessions, nil)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, archived := s.registry.Counts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"active_sessions":   active,
		"archived_sessions": archived,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
