package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uaarena/session-engine/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is what subscribers receive for every session notification.
type WSMessage struct {
	Type     string         `json:"type"`
	GameID   string         `json:"game_id"`
	PlayerID string         `json:"player_id,omitempty"`
	Turn     int            `json:"turn"`
	Phase    int            `json:"phase"`
	Version  int64          `json:"version"`
	Data     map[string]any `json:"data,omitempty"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	gameID   string
}

type gameMessage struct {
	gameID  string
	payload []byte
}

// Hub fans engine notifications out to the websocket subscribers of each
// session. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan gameMessage
	count      chan chan int
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan gameMessage, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, subs := range h.clients {
				for c := range subs {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]bool)
			return

		case c := <-h.register:
			subs := h.clients[c.gameID]
			if subs == nil {
				subs = make(map[*client]bool)
				h.clients[c.gameID] = subs
			}
			subs[c] = true
			h.logger.Debug("websocket subscribed",
				zap.String("game_id", c.gameID),
				zap.String("player_id", c.playerID),
			)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.gameID] {
				select {
				case c.send <- msg.payload:
				default:
					h.logger.Warn("dropping slow websocket subscriber",
						zap.String("game_id", c.gameID),
						zap.String("player_id", c.playerID),
					)
					h.remove(c)
				}
			}

		case reply := <-h.count:
			n := 0
			for _, subs := range h.clients {
				n += len(subs)
			}
			reply <- n
		}
	}
}

func (h *Hub) remove(c *client) {
	subs, ok := h.clients[c.gameID]
	if !ok || !subs[c] {
		return
	}
	delete(subs, c)
	close(c.send)
	if len(subs) == 0 {
		delete(h.clients, c.gameID)
	}
	h.logger.Debug("websocket unsubscribed",
		zap.String("game_id", c.gameID),
		zap.String("player_id", c.playerID),
	)
}

// Subscribers returns the number of connected clients across all sessions.
func (h *Hub) Subscribers() int {
	reply := make(chan int)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Notify is an engine notification handler.
func (h *Hub) Notify(n game.GameNotification) {
	payload, err := json.Marshal(WSMessage{
		Type:     n.Type,
		GameID:   n.GameID,
		PlayerID: n.PlayerID,
		Turn:     n.Turn,
		Phase:    int(n.Phase),
		Version:  n.Version,
		Data:     n.Data,
	})
	if err != nil {
		h.logger.Error("failed to encode notification", zap.String("game_id", n.GameID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- gameMessage{gameID: n.GameID, payload: payload}:
	case <-h.done:
	}
}

// Serve upgrades the request and subscribes the connection to gameID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, gameID, playerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		gameID:   gameID,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// readPump only drains control frames; subscribers never send commands over
// the socket.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
