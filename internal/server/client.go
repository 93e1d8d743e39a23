package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	// MaxMessageSize bounds one client frame. It leaves room for a stored
	// chat message echoed back with every character JSON escaped.
	MaxMessageSize = 64 << 10
	sendBufferSize = 256
)

// Client is one live connection. userId is empty for anonymous connections.
type Client struct {
	id     string
	userId string
	conn   *websocket.Conn
	hub    *Hub
	router *Router
	log    *log.Logger
	send   chan *ServerMessage
	// rooms is guarded by hub.mu
	rooms    map[string]struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(userId string, conn *websocket.Conn, hub *Hub, router *Router, l *log.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		userId: userId,
		conn:   conn,
		hub:    hub,
		router: router,
		log:    l,
		send:   make(chan *ServerMessage, sendBufferSize),
		rooms:  make(map[string]struct{}),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) UserId() string {
	return c.userId
}

func (c *Client) Authenticated() bool {
	return c.userId != ""
}

// Serve starts the read and write pumps. It does not block. Once the hub
// is shut down Serve closes the connection instead.
func (c *Client) Serve() {
	if !c.hub.trackPumps() {
		c.conn.Close()
		return
	}
	go func() {
		defer c.hub.pumps.Done()
		c.Write()
	}()
	go func() {
		defer c.hub.pumps.Done()
		c.Read()
	}()
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.router.Dispatch(c, raw)
	}
}

// Reply queues msg for this connection only.
func (c *Client) Reply(msg *ServerMessage) bool {
	return c.queueMessage(msg)
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to queue message for connection %s, channel is full", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.hub.Unregister(c)
	c.stopClient()
}
