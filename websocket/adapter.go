package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"screenmirror-signaling-server/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// 64 KB, enough headroom for large SDP blobs.
	maxMessageSize = 64 * 1024
)

type Conn struct {
	id         string
	ws         *websocket.Conn
	send       chan []byte
	registry   domain.Registry
	router     domain.MessageRouter
	reconciler domain.DisconnectHandler
}

func NewConn(id string, ws *websocket.Conn, reg domain.Registry, router domain.MessageRouter, rec domain.DisconnectHandler) *Conn {
	return &Conn{
		id:         id,
		ws:         ws,
		send:       make(chan []byte, 256),
		registry:   reg,
		router:     router,
		reconciler: rec,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	c.registry.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		// Room cleanup must run while the remaining members are still
		// registered, so they receive the disconnect notifications.
		c.registry.Deliver(c.reconciler.Disconnect(c.id))
		c.registry.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "connId", c.id, "error", err)
			}
			return
		}

		c.registry.Deliver(c.router.Route(c.id, data))
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
