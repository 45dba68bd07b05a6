// -----------------------------------------------------------------------
// WebSocket Handler - Live execution update streams for observers
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketHandler streams execution updates to observers. Each connection
// observes exactly one execution; the first frame is always the execution
// snapshot, and the connection closes after the terminal update.
type WebSocketHandler struct {
	subscriptions interfaces.SubscriptionService
	logger        arbor.ILogger
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(subscriptions interfaces.SubscriptionService, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// HandleWebSocket upgrades the connection and pumps updates for the
// execution named by the execution_id query parameter.
// GET /ws?execution_id=exec_...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	executionID := r.URL.Query().Get("execution_id")
	if executionID == "" {
		WriteError(w, http.StatusBadRequest, "execution_id query parameter is required")
		return
	}

	sub, err := h.subscriptions.Subscribe(executionID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Execution not found: "+executionID)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.subscriptions.Unsubscribe(sub.ID)
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.logger.Info().
		Str("execution_id", executionID).
		Str("subscription_id", sub.ID).
		Str("remote", r.RemoteAddr).
		Msg("Observer connected")

	// Serializes writes between the update pump and the ping loop.
	var writeMu sync.Mutex
	done := make(chan struct{})

	// Read loop exists only to detect client disconnect.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go h.pingLoop(conn, &writeMu, done)

	defer func() {
		h.subscriptions.Unsubscribe(sub.ID)
		conn.Close()
		h.logger.Info().
			Str("execution_id", executionID).
			Str("subscription_id", sub.ID).
			Msg("Observer disconnected")
	}()

	for {
		select {
		case update, ok := <-sub.Updates:
			if !ok {
				// Execution retired; the terminal update was already sent.
				return
			}
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := conn.WriteJSON(update)
			writeMu.Unlock()
			if err != nil {
				h.logger.Debug().Err(err).
					Str("subscription_id", sub.ID).
					Msg("WebSocket write failed")
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
