package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamResult is one reply on the stream. Exactly one of the embedded
// responses is populated, matching Status.
type StreamResult struct {
	Status int `json:"status"`
	*PredictResponse
	*ErrorResponse
}

// handleStream upgrades to a WebSocket and answers each text message, a JSON
// object of request fields, with one StreamResult in order. Every message
// counts against the rate limit.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	if !s.trackStream(conn, true) {
		closeGoingAway(conn)
		return
	}
	defer func() {
		s.trackStream(conn, false)
		conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("Stream closed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if !s.allow() {
			result := StreamResult{
				Status:        http.StatusTooManyRequests,
				ErrorResponse: &ErrorResponse{Error: rateLimitMessage},
			}
			if err := conn.WriteJSON(result); err != nil {
				log.Debug().Err(err).Msg("Failed to write stream result")
				return
			}
			continue
		}

		status, resp := s.predictJSON(msg)
		result := StreamResult{Status: status}
		switch v := resp.(type) {
		case PredictResponse:
			result.PredictResponse = &v
		case ErrorResponse:
			result.ErrorResponse = &v
		}
		if err := conn.WriteJSON(result); err != nil {
			log.Debug().Err(err).Msg("Failed to write stream result")
			return
		}
	}
}

// trackStream registers or forgets conn. Registration fails once shutdown
// has begun.
func (s *Server) trackStream(conn *websocket.Conn, open bool) bool {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	if !open {
		delete(s.streams, conn)
		return true
	}
	if s.closing {
		return false
	}
	s.streams[conn] = struct{}{}
	return true
}

func (s *Server) closeStreams() {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	s.closing = true
	for conn := range s.streams {
		closeGoingAway(conn)
	}
}

func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	conn.Close()
}
