package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendQueueSize  = 16
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one query connection. send is never closed; done signals that
// the connection is finished.
type Client struct {
	hub  *QueryServer
	conn *websocket.Conn
	id   string
	send chan any

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *QueryServer, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan any, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// -----------------------------------------------------------------------------
// readPump - processes requests strictly in arrival order
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
			c.close()
		}
		c.hub.Logger.Info("Client disconnected (id=%s)", c.id)
	}()

	// No read deadline: consumers may stay idle indefinitely.
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Warning("WebSocket error: %v", err)
			}
			return
		}

		reply := c.hub.HandleClientMessage(c, message)

		select {
		case c.send <- reply:
		case <-c.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - sends queued replies and events to the client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Warning("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
