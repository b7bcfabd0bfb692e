package web

import (
	"fmt"
	"net/http"
	"time"

	"chatline/domain/event"
	"chatline/runtime"
	"chatline/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

type inboundFrame struct {
	Action string `json:"action"`
	ChatID string `json:"chat_id"`
	Body   string `json:"body"`
}

type outboundFrame struct {
	Action  string           `json:"action"`
	Message *messageResponse `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handleWebSocket establishes the push channel. The token travels as a
// query parameter because browsers cannot set headers on an upgrade; it
// is validated before the upgrade and never cached past this connection.
//
// The registered sink only buffers events; this handler owns the socket
// and splits it into a read loop (inbound send_message frames) and a
// write pump (delivery, error frames, keepalive pings). Registration is
// undone on any exit path, idempotently.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}
	userID, err := s.gate.Authenticate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	snk := sink.NewChannelSink(s.connectionBufferSize)
	handle, err := s.chatService.Connect(userID, snk)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.log.Info("Client connected", "user_id", userID, "connection_id", handle.ID)

	defer func() {
		s.chatService.Disconnect(handle.ID)
		_ = conn.Close()
		s.log.Info("Client disconnected", "user_id", userID, "connection_id", handle.ID)
	}()

	// Error frames produced by the read loop go through the pump as
	// well; gorilla connections allow a single writer only.
	errFrames := make(chan outboundFrame, 4)
	done := make(chan struct{})
	go s.writePump(conn, snk, errFrames, done)
	defer close(done)

	s.readLoop(r, conn, handle, errFrames)
}

func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, handle *runtime.Connection, errFrames chan<- outboundFrame) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("WebSocket read error", "connection_id", handle.ID, "error", err)
			}
			return
		}

		switch frame.Action {
		case "send_message":
			chatID, err := uuid.Parse(frame.ChatID)
			if err != nil {
				offerError(errFrames, "invalid chat_id")
				continue
			}
			if frame.Body == "" {
				offerError(errFrames, "body is required")
				continue
			}
			if _, err := s.chatService.SendMessage(r.Context(), chatID, handle.UserID, frame.Body); err != nil {
				offerError(errFrames, err.Error())
			}
		default:
			offerError(errFrames, fmt.Sprintf("unknown action %q", frame.Action))
		}
	}
}

// writePump is the single writer of the socket. It drains the delivery
// sink, forwards error frames, and keeps the connection alive with pings.
// A write failure just ends the pump; the read loop notices the broken
// socket and the deferred cleanup deregisters the handle.
func (s *Server) writePump(conn *websocket.Conn, snk *sink.ChannelSink, errFrames <-chan outboundFrame, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-snk.Events:
			stored, ok := evt.(event.MessageStored)
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			frame := outboundFrame{Action: "new_message", Message: toMessagePtr(stored)}
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Debug("Push write failed", "error", err)
				return
			}
		case frame := <-errFrames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// offerError never blocks the read loop; a backed-up error queue is
// dropped rather than letting a misbehaving client stall reads.
func offerError(errFrames chan<- outboundFrame, message string) {
	select {
	case errFrames <- outboundFrame{Action: "error", Error: message}:
	default:
	}
}

func toMessagePtr(stored event.MessageStored) *messageResponse {
	payload := toMessageResponse(stored.Message)
	return &payload
}
