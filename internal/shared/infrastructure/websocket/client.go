package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware in front of the mux.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between one websocket connection and the hub.
// Only the hub goroutine writes to send, closes it or touches lastSeq.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID
	lastSeq uint64
}

func (c *Client) UserID() uuid.UUID { return c.userID }

// readPump drains inbound frames so control messages are processed. The UI
// never sends application data; anything it sends is discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
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

func (c *Client) writePump() {
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

// ServeWs upgrades the request, registers the connection for userID and
// starts its pumps. On upgrade failure the upgrader has already written the
// HTTP error and nil is returned.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID uuid.UUID) *Client {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Debug("[WebSocket] upgrade failed")
		return nil
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), userID: userID}
	select {
	case hub.register <- client:
	case <-hub.stop:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return client
}
