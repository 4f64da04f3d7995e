package api

import (
	"net/http"
	"sync"
	"time"

	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout    = 10 * time.Second
	pingInterval    = 30 * time.Second
	clientSendDepth = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes change-feed events to connected websocket clients so
// dashboards update without polling. Slow clients are disconnected
// rather than allowed to block the broadcast path.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan *models.ChangeEvent
}

// NewHub creates a new websocket hub
func NewHub() *Hub {
	return &Hub{
		logger:  util.GetLogger(),
		clients: make(map[*client]bool),
	}
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(ev *models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Client can't keep up; drop it.
			close(c.send)
			delete(h.clients, c)
			util.WSClientsConnected.Dec()
		}
	}
}

// Serve upgrades the request and streams change events until the client
// goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan *models.ChangeEvent, clientSendDepth),
	}

	h.mu.Lock()
	h.clients[cl] = true
	h.mu.Unlock()
	util.WSClientsConnected.Inc()

	go h.writeLoop(cl)
	h.readLoop(cl)
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cl.conn.Close()

	for {
		select {
		case ev, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeTimeout))
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains the connection so pings/pongs and close frames are
// processed, and removes the client when it disconnects.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.mu.Lock()
		if h.clients[cl] {
			delete(h.clients, cl)
			close(cl.send)
			util.WSClientsConnected.Dec()
		}
		h.mu.Unlock()
		cl.conn.Close()
	}()

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
