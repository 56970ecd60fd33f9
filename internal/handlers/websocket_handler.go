package handlers

import (
	"log"
	"net/http"
	"time"

	"airdrop-backend/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketHandler streams airdrop lifecycle events to connected clients.
type WebSocketHandler struct {
	emitter  *events.Emitter
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(emitter *events.Emitter) *WebSocketHandler {
	return &WebSocketHandler{
		emitter: emitter,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleEvents handles GET /ws/events.
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ [WebSocket] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	// Buffered so a slow client drops events instead of blocking emitters.
	eventChan := make(chan events.Event, 256)

	unsubscribe := h.emitter.Subscribe(func(evt events.Event) {
		select {
		case eventChan <- evt:
		default:
			log.Printf("⚠️ [WebSocket] Client %s event buffer full, dropping %s", clientID, evt.Type)
		}
	})
	defer unsubscribe()

	log.Printf("📡 [WebSocket] Client connected: %s", clientID)

	conn.WriteJSON(map[string]interface{}{
		"type":      "connected",
		"client_id": clientID,
		"timestamp": time.Now(),
	})

	// Read loop only watches for disconnect; clients do not send commands.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case evt := <-eventChan:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				log.Printf("📡 [WebSocket] Client %s write failed, closing: %v", clientID, err)
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Printf("📡 [WebSocket] Client disconnected: %s", clientID)
			return
		}
	}
}
