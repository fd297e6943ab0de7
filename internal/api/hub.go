package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// Hub fans scan progress updates out to connected WebSocket clients.
// ⭐ SSOT: 掃描進度推播只在這裡
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan interface{}
}

// NewHub creates a progress broadcast hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log.WithField("module", "ws_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 前端與 API 不同源, 進度資料也不是敏感資訊
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan interface{}),
	}
}

// ServeWS upgrades the connection and streams progress until the client
// disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	// Slow clients drop updates rather than blocking the scan
	send := make(chan interface{}, 16)

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	h.logger.WithField("clients", h.clientCount()).Debug("WebSocket client connected")

	go h.writeLoop(conn, send)
	h.readLoop(conn)
}

// BroadcastProgress sends a progress update to every connected client
func (h *Hub) BroadcastProgress(update contracts.ProgressUpdate) {
	h.broadcast(map[string]interface{}{
		"type":      "progress",
		"processed": update.Processed,
		"total":     update.Total,
		"passed":    update.Passed,
	})
}

// BroadcastResult sends the terminal scan result to every connected client
func (h *Hub) BroadcastResult(result *contracts.ScanResult) {
	h.broadcast(map[string]interface{}{
		"type":   "result",
		"result": result,
	})
}

func (h *Hub) broadcast(msg interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
			// buffer full, client is too slow
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, send chan interface{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.remove(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(conn)
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.WithField("clients", h.clientCount()).Debug("WebSocket client disconnected")
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
