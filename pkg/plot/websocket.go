package plot

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raykavin/kagiline/pkg/logger"
)

const broadcastBuffer = 256

// WebSocketMessage is pushed to browser clients
type WebSocketMessage struct {
	Type    string `json:"type"`
	Pair    string `json:"pair"`
	Payload any    `json:"payload"`
}

// WebSocketHub pushes new lines to the clients watching a pair
type WebSocketHub struct {
	sync.RWMutex
	clients   map[*websocket.Conn]string
	upgrader  websocket.Upgrader
	broadcast chan WebSocketMessage
	closed    bool
	chart     *Chart
	log       logger.Logger
}

func NewWebSocketHub(log logger.Logger, chart *Chart) *WebSocketHub {
	hub := &WebSocketHub{
		clients: make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		broadcast: make(chan WebSocketMessage, broadcastBuffer),
		chart:     chart,
		log:       log,
	}
	go hub.run()
	return hub
}

// Broadcast queues a drawn line or marker. Slow clients lose messages rather
// than stall the chart.
func (h *WebSocketHub) Broadcast(pair string, shape *Shape, marker *Marker) {
	message := WebSocketMessage{Pair: pair}
	switch {
	case shape != nil:
		message.Type, message.Payload = "shape", shape
	case marker != nil:
		message.Type, message.Payload = "marker", marker
	default:
		return
	}

	h.RLock()
	defer h.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.log.WithField("pair", pair).Warn("websocket broadcast queue full")
	}
}

func (h *WebSocketHub) run() {
	for message := range h.broadcast {
		h.RLock()
		for conn, pair := range h.clients {
			if pair != message.Pair {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(message); err != nil {
				h.log.WithError(err).Warn("websocket write failed")
				conn.Close()
			}
		}
		h.RUnlock()
	}
}

// HandleWebSocket upgrades the request and sends the current drawing of the pair
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		http.Error(w, "Missing pair parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("failed to upgrade connection")
		return
	}

	// exclusive lock: gorilla connections allow one concurrent writer
	h.Lock()
	h.clients[conn] = pair
	count := len(h.clients)
	err = conn.WriteJSON(WebSocketMessage{Type: "initial", Pair: pair, Payload: h.chart.data(pair)})
	h.Unlock()
	h.log.WithField("pair", pair).Debugf("websocket client connected, %d total", count)
	if err != nil {
		h.log.WithError(err).Warn("failed to send initial data")
	}

	go h.readLoop(conn)
}

// readLoop only watches for disconnects
func (h *WebSocketHub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.Lock()
		delete(h.clients, conn)
		h.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}

// Close stops broadcasting and disconnects every client
func (h *WebSocketHub) Close() {
	h.Lock()
	defer h.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.broadcast)
	for conn := range h.clients {
		conn.Close()
	}
}
