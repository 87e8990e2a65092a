package websocket

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnicastMessage is addressed to every connection of UserID, or only to
// Client when it is set. A non-zero Seq orders messages per connection: one
// whose Seq is not above the last delivered Seq is dropped.
type UnicastMessage struct {
	UserID  uuid.UUID
	Client  *Client
	Seq     uint64
	Message []byte
}

// Hub maintains the set of active clients and routes messages to the
// connections of a single user.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages addressed to one user.
	unicast chan UnicastMessage

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	stop     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		unicast:    make(chan UnicastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),

		clients: make(map[*Client]bool),
		stop:    make(chan struct{}),
		logger:  logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("[WebSocket Hub] client registered", zap.String("user_id", client.userID.String()))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("[WebSocket Hub] client unregistered", zap.String("user_id", client.userID.String()))
			}
		case msg := <-h.unicast:
			h.route(msg)
		case <-h.stop:
			h.logger.Info("[WebSocket Hub] stopping", zap.Int("clients", len(h.clients)))
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// route runs on the hub goroutine, which is the only writer to and closer
// of client.send.
func (h *Hub) route(msg UnicastMessage) {
	for client := range h.clients {
		if msg.Client != nil {
			if client != msg.Client {
				continue
			}
		} else if client.userID != msg.UserID {
			continue
		}
		if msg.Seq != 0 {
			if msg.Seq <= client.lastSeq {
				continue
			}
			client.lastSeq = msg.Seq
		}
		select {
		case client.send <- msg.Message:
		default:
			// Slow consumer; the UI reconnects and refetches.
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

// SendToUser queues message for every connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) {
	h.enqueue(UnicastMessage{UserID: userID, Message: message})
}

// SendToUserSeq is SendToUser for versioned payloads.
func (h *Hub) SendToUserSeq(userID uuid.UUID, seq uint64, message []byte) {
	h.enqueue(UnicastMessage{UserID: userID, Seq: seq, Message: message})
}

// SendToClient queues message for one connection if it is still registered.
func (h *Hub) SendToClient(client *Client, seq uint64, message []byte) {
	h.enqueue(UnicastMessage{UserID: client.userID, Client: client, Seq: seq, Message: message})
}

func (h *Hub) enqueue(msg UnicastMessage) {
	select {
	case h.unicast <- msg:
	case <-h.stop:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
