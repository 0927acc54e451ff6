package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	eventsChannel = "huddle:events"
	topicPrefix   = "huddle:topic:"
)

// Hub manages all WebSocket connections and event delivery. Redis Pub/Sub
// carries events across instances so delivery works under horizontal scaling.
type Hub struct {
	// userID -> set of client connections (one user can have multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client

	// Invoked on a user's first connection and after their last disconnect.
	// Fires on crashes and network loss too: the read pump unblocks on any
	// connection error.
	onStatusChange func(userID uuid.UUID, online bool)
}

// NewHub creates a new Hub
func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeEvents(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		// First connection: user just came online
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, true)
		}
	}
	h.clients[client.UserID][client] = true
	log.Printf("✅ Client connected: %s (total connections: %d)", client.UserID, len(h.clients[client.UserID]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.UserID]; ok {
		// A slow client may already have been dropped by the delivery path;
		// closing its channel twice would panic
		if _, active := clients[client]; active {
			delete(clients, client)
			close(client.send)
		}

		if len(clients) == 0 {
			// Last connection gone: user is offline
			delete(h.clients, client.UserID)
			if h.onStatusChange != nil {
				go h.onStatusChange(client.UserID, false)
			}
		}
	}
	log.Printf("❌ Client disconnected: %s", client.UserID)
}

// SendToUser delivers an event to a specific user (all their connections,
// on every instance)
func (h *Hub) SendToUser(userID uuid.UUID, event *model.Event) {
	h.publish(eventsChannel, &envelope{TargetUserID: userID, Event: event})
}

// SendToUsers delivers an event to multiple users
func (h *Hub) SendToUsers(userIDs []uuid.UUID, event *model.Event) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

// PublishTopic pushes an event to every subscriber of a topic (for example
// conversation:<id>, call:<id>, typing:<conversationID>). Handler invocation
// order per subscription follows channel delivery order, which follows
// server write order.
func (h *Hub) PublishTopic(topic string, event *model.Event) {
	h.publish(topicPrefix+topic, &envelope{Event: event})
}

// Subscribe attaches a handler to a topic and returns a cancel func that
// tears the subscription down.
func (h *Hub) Subscribe(ctx context.Context, topic string, handler func(model.Event)) (cancel func()) {
	subCtx, stop := context.WithCancel(ctx)
	pubsub := h.rdb.Subscribe(subCtx, topicPrefix+topic)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("Error unmarshaling topic event: %v", err)
					continue
				}
				if env.Event != nil {
					handler(*env.Event)
				}
			}
		}
	}()

	return stop
}

// IsUserOnline checks if a user has any active connections on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ========== Redis Pub/Sub plumbing ==========

// envelope wraps an event with an optional target user for cross-instance
// delivery
type envelope struct {
	TargetUserID uuid.UUID    `json:"target_user_id,omitempty"`
	Event        *model.Event `json:"event"`
}

func (h *Hub) publish(channel string, env *envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("Error marshaling for Redis: %v", err)
		return
	}
	if err := h.rdb.Publish(context.Background(), channel, data).Err(); err != nil {
		log.Printf("Error publishing to Redis: %v", err)
	}
}

// subscribeEvents delivers user-targeted events arriving from any instance
// to clients connected here
func (h *Hub) subscribeEvents(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	log.Println("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("Error unmarshaling Redis message: %v", err)
				continue
			}
			if env.TargetUserID != uuid.Nil && env.Event != nil {
				h.sendToLocalUser(env.TargetUserID, env.Event)
			}
		}
	}
}

// sendToLocalUser takes the write lock: dropping a slow client mutates the
// client set
func (h *Hub) sendToLocalUser(userID uuid.UUID, event *model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[userID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}
	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, close connection
			close(client.send)
			delete(clients, client)
		}
	}
}
