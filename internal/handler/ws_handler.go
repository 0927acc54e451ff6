package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/realtime"
	"github.com/huddleapp/huddle/internal/service"
	"github.com/huddleapp/huddle/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub             *realtime.Hub
	msgService      *service.MessageService
	presenceService *service.PresenceService
	callService     *service.CallService
	jwtManager      *auth.JWTManager
}

func NewWSHandler(
	hub *realtime.Hub,
	msgService *service.MessageService,
	presenceService *service.PresenceService,
	callService *service.CallService,
	jwtManager *auth.JWTManager,
) *WSHandler {
	return &WSHandler{
		hub:             hub,
		msgService:      msgService,
		presenceService: presenceService,
		callService:     callService,
		jwtManager:      jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection
// Client connects with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Authenticate via query parameter (WebSocket can't use Authorization header)
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := realtime.NewClient(h.hub, conn, claims.UserID, claims.Name)
	h.hub.Register(client)

	log.Printf("✅ WS Connected: UserID=%s Name=%s", claims.UserID, claims.Name)

	go client.WritePump()
	go client.ReadPump(h.handleWSMessage)
}

// handleWSMessage processes incoming WebSocket events from clients
func (h *WSHandler) handleWSMessage(client *realtime.Client, event model.Event) {
	log.Printf("📩 WS Received from %s (%s): %s", client.Name, client.UserID, event.Type)

	switch event.Type {
	case model.EventNewMessage:
		h.handleNewMessage(client, event)

	case model.EventTyping:
		h.handleTyping(client, event)

	case model.EventStopTyping:
		h.handleStopTyping(client, event)

	case model.EventMessageRead:
		h.handleMessageRead(client, event)

	case model.EventPresence:
		h.handlePresence(client, event)

	// WebRTC signaling events pass through untouched
	case model.EventCallOffer, model.EventCallAnswer, model.EventCallICE:
		h.handleCallSignaling(client, event)

	default:
		log.Printf("Unknown WebSocket event type: %s", event.Type)
	}
}

// handleNewMessage persists a chat message sent over the socket. Delivery to
// the other participants happens inside the message pipeline.
func (h *WSHandler) handleNewMessage(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID   `json:"conversation_id"`
		Content        string      `json:"content"`
		Type           string      `json:"type"`
		ReplyToID      *uuid.UUID  `json:"reply_to_id"`
		Mentions       []uuid.UUID `json:"mentions"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		log.Printf("Error parsing new_message payload: %v", err)
		return
	}

	_, err := h.msgService.SendMessage(context.Background(), client.UserID, payload.ConversationID, model.SendMessageRequest{
		Content:   payload.Content,
		Type:      model.MessageType(payload.Type),
		ReplyToID: payload.ReplyToID,
		Mentions:  payload.Mentions,
	}, nil)
	if err != nil {
		log.Printf("Error saving message: %v", err)
	}
}

// handleTyping records the typing signal; expiry and fan-out live in the
// presence service
func (h *WSHandler) handleTyping(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	h.presenceService.StartTyping(payload.ConversationID, client.UserID, client.Name)
}

// handleStopTyping clears the typing signal immediately
func (h *WSHandler) handleStopTyping(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	h.presenceService.StopTyping(payload.ConversationID, client.UserID)
}

// handleMessageRead processes read receipt events
func (h *WSHandler) handleMessageRead(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	if err := h.msgService.MarkMessagesAsRead(payload.ConversationID, client.UserID); err != nil {
		log.Printf("Error marking messages read: %v", err)
	}
}

// handlePresence lets a client set an explicit status (away, busy)
func (h *WSHandler) handlePresence(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		Status model.PresenceStatus `json:"status"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return
	}

	switch payload.Status {
	case model.PresenceOnline, model.PresenceAway, model.PresenceBusy:
		if err := h.presenceService.SetStatus(context.Background(), client.UserID, payload.Status); err != nil {
			log.Printf("Error setting presence: %v", err)
		}
	}
}

// handleCallSignaling forwards WebRTC negotiation payloads to the target user
func (h *WSHandler) handleCallSignaling(client *realtime.Client, event model.Event) {
	payloadBytes, _ := json.Marshal(event.Payload)
	var payload struct {
		To uuid.UUID `json:"to"`
	}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		log.Printf("Error parsing call signaling payload: %v", err)
		return
	}

	h.callService.RelaySignal(client.UserID, payload.To, event.Type, event.Payload)
}
