package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StreamMessage is one frame of a session's output stream.
type StreamMessage struct {
	SessionID int    `json:"session_id"`
	Output    string `json:"output"`
	Final     bool   `json:"final"`
}

// handleStream upgrades to websocket and forwards a session's output. Frames
// are produced by bounded registry reads, so the single-consumer queue
// discipline holds; a competing read_output caller simply shares the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Int("session_id", sessionID).
		Logger()
	logger.Debug().Msg("Output stream opened")

	// Detect the subscriber going away: the read pump fails once the peer
	// closes or drops.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Debug().Msg("Output stream closed by peer")
			return
		case <-r.Context().Done():
			return
		default:
		}

		res := s.registry.Read(sessionID, s.streamReadTimeout)
		final := !s.registry.IsActive(sessionID)

		if !res.TimeoutReached {
			msg := StreamMessage{SessionID: sessionID, Output: res.Output, Final: final}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("Output stream write failed")
				return
			}
		}

		if final {
			logger.Debug().Msg("Output stream finished")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
