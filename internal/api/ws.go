package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aquatrade/backend/internal/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsFrame is one websocket message: a text fragment, a structured trade
// payload, or the end-of-turn marker.
type wsFrame struct {
	Type  string                 `json:"type"` // chunk, trade, done, error
	Text  string                 `json:"text,omitempty"`
	Trade *core.TradePreparation `json:"trade,omitempty"`
}

// handleChatWS serves a chat turn over a websocket: the client sends one
// message-history document, the server streams frames back and closes the
// turn with a done frame. A dropped connection cancels the upstream
// generation through the request context.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	wallet := walletFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if len(req.Messages) == 0 {
			conn.WriteJSON(wsFrame{Type: "error", Text: "messages are required"})
			continue
		}

		events, err := s.agent.ChatStream(r.Context(), wallet, req.Messages)
		if err != nil {
			conn.WriteJSON(wsFrame{Type: "error", Text: err.Error()})
			continue
		}

		for ev := range events {
			frame := wsFrame{Type: "chunk", Text: ev.Text}
			if ev.Trade != nil {
				frame = wsFrame{Type: "trade", Trade: ev.Trade}
			}
			if err := writeFrame(conn, frame); err != nil {
				return
			}
		}
		if err := writeFrame(conn, wsFrame{Type: "done"}); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame wsFrame) error {
	blob, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, blob)
}
