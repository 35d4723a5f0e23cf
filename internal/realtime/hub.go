// Package realtime pushes newly stored chat messages to websocket subscribers.
package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/model"
)

const (
	EventInsert   = "INSERT"
	TableMessages = "messages"

	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is the frame written to subscribers for every stored message.
type Event struct {
	Type   string        `json:"type"`
	Table  string        `json:"table"`
	Record model.Message `json:"record"`
}

type client struct {
	chatID uint64
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

type Hub struct {
	mu       sync.RWMutex
	chats    map[uint64]map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub returns a hub; checkOrigin nil accepts every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		chats: map[uint64]map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.chats[c.chatID] == nil {
		h.chats[c.chatID] = map[*client]struct{}{}
	}
	h.chats[c.chatID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.chats[c.chatID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.chats, c.chatID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// Subscribers reports how many connections currently follow chatID.
func (h *Hub) Subscribers(chatID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats[chatID])
}

// Publish fans msg out to the chat's subscribers. A subscriber whose buffer is
// full is disconnected so the publisher never blocks.
func (h *Hub) Publish(msg model.Message) {
	ev := Event{Type: EventInsert, Table: TableMessages, Record: msg}
	var slow []*client
	h.mu.RLock()
	for c := range h.chats[msg.ChatID] {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		log.Printf("[realtime] dropping slow subscriber chat=%d", c.chatID)
		h.unregister(c)
	}
}

// Serve upgrades the request and streams chatID's events until either side closes.
func (h *Hub) Serve(c echo.Context, chatID uint64) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		log.Printf("[realtime] upgrade failed chat=%d err=%v", chatID, err)
		return nil
	}
	cl := &client{chatID: chatID, conn: conn, send: make(chan Event, sendBuffer), done: make(chan struct{})}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		cl.close()
		return nil
	}
	defer h.unregister(cl)

	go cl.writeLoop()
	cl.readLoop()
	return nil
}

// readLoop only drains control frames; subscribers never send data.
func (c *client) readLoop() {
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

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.chats {
		for c := range set {
			all = append(all, c)
		}
	}
	h.chats = map[uint64]map[*client]struct{}{}
	h.mu.Unlock()
	for _, c := range all {
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		}
		c.close()
	}
	log.Printf("[realtime] hub closed subscribers=%d", len(all))
}
