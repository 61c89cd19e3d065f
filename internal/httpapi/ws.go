package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/recall/internal/convo"
	"github.com/antoniostano/recall/internal/protocol"
)

// handleChatWS serves an interactive conversation over a websocket: each
// inbound user_message runs one full turn through the orchestrator and the
// reply comes back as an assistant_reply frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	clientID := resolveClientID(r, "")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWSMessage(conn, string(protocol.TypeErrorEvent), protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeUserMessage)).Inc()

		reply, err := s.orchestrator.Converse(r.Context(), clientID, msg.Text)
		if err != nil {
			code := "converse_failed"
			if errors.Is(err, convo.ErrEmptyPrompt) {
				code = "missing_prompt"
			}
			s.writeWSMessage(conn, string(protocol.TypeErrorEvent), protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   code,
				Detail: err.Error(),
			})
			continue
		}

		s.writeWSMessage(conn, string(protocol.TypeAssistantReply), protocol.AssistantReply{
			Type:   protocol.TypeAssistantReply,
			TurnID: uuid.NewString(),
			Text:   reply,
		})
	}
}

func (s *Server) writeWSMessage(conn *websocket.Conn, msgType string, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues("outbound", msgType).Inc()
}
