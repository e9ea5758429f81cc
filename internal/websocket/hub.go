package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Event types pushed to clients. The chat aggregator also subscribes to
// these to invalidate its snapshots.
const (
	EventMessage     = "message"
	EventTyping      = "typing"
	EventReadReceipt = "read_receipt"
	EventMatch       = "match"
	EventUnmatch     = "unmatch"
	EventCallRing    = "call_ring"
	EventCallEnded   = "call_ended"
)

// Hub fans events out to connected clients. The clients map and each
// client's channel membership are shared between the Run loop and the
// Notify* callers, so every access goes through mu.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    uint
	channelID string // currently joined chat channel, empty when idle; guarded by hub.mu
}

type Event struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
	SenderID  uint   `json:"sender_id,omitempty"`
	UserID    uint   `json:"user_id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logrus.WithField("user_id", client.userID).Debug("ws client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logrus.WithField("user_id", client.userID).Debug("ws client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.deliverLocked(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliverLocked drops clients whose send buffer is full. Callers hold mu.
func (h *Hub) deliverLocked(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) BroadcastToChannel(channelID string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.channelID == channelID {
			h.deliverLocked(client, message)
		}
	}
}

func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.userID == userID {
			h.deliverLocked(client, message)
		}
	}
}

// setChannel records which chat channel the client currently has open.
func (h *Hub) setChannel(client *Client, channelID string) {
	h.mu.Lock()
	client.channelID = channelID
	h.mu.Unlock()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyUser marshals and delivers an event to every connection of userID.
func (h *Hub) NotifyUser(userID uint, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal ws event")
		return
	}
	h.BroadcastToUser(userID, data)
}

// NotifyChannel delivers an event to every connection currently joined to
// the chat channel.
func (h *Hub) NotifyChannel(channelID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal ws event")
		return
	}
	h.BroadcastToChannel(channelID, data)
}

func HandleWebSocket(hub *Hub, c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID.(uint),
	}

	hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("websocket read error")
			}
			break
		}

		var event Event
		if err := json.Unmarshal(messageBytes, &event); err != nil {
			logrus.WithError(err).Warn("unparseable ws event")
			continue
		}

		switch event.Type {
		case "join_channel":
			c.hub.setChannel(c, event.ChannelID)
		case "leave_channel":
			c.hub.setChannel(c, "")
		case EventTyping:
			c.hub.NotifyChannel(event.ChannelID, Event{
				Type:      EventTyping,
				ChannelID: event.ChannelID,
				UserID:    c.userID,
				IsTyping:  event.IsTyping,
			})
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logrus.WithError(err).Warn("websocket write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
