package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/propdesk/propdesk/internal/models"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is a frame sent to moderators
type StreamMessage struct {
	Type  string              `json:"type"`
	Event *models.ReviewEvent `json:"event,omitempty"`
	Data  string              `json:"data,omitempty"`
}

func (s *Server) handleReviewStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		respondError(w, http.StatusServiceUnavailable, "stream_unavailable", "review stream is not configured")
		return
	}

	companyID := r.URL.Query().Get("company_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sub := s.deps.Hub.Subscribe()
	defer sub.Close()

	client := ClientFromContext(r.Context())
	clientName := ""
	if client != nil {
		clientName = client.Name
	}
	slog.Info("review stream connected", "client", clientName, "company_id", companyID)

	if err := sendStreamMessage(conn, StreamMessage{Type: "connected", Data: "Subscribed to review events"}); err != nil {
		return
	}

	// Reader: handles pongs and notices the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("review stream read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("review stream disconnected", "client", clientName)
			return
		case event, ok := <-sub.Events():
			if !ok {
				sendStreamMessage(conn, StreamMessage{Type: "error", Data: "subscription dropped"})
				return
			}
			if companyID != "" && event.CompanyID != companyID {
				continue
			}
			if err := sendStreamMessage(conn, StreamMessage{Type: "event", Event: &event}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}
