package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Conversation DTOs ==========

type CreateConversationRequest struct {
	Type           ConversationType `json:"type" binding:"required,oneof=direct group project workspace"`
	Name           string           `json:"name" binding:"max=100"`
	Description    string           `json:"description" binding:"max=500"`
	ParticipantIDs []uuid.UUID      `json:"participant_ids"`
}

type UpdateConversationRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Avatar      *string `json:"avatar" binding:"omitempty,max=500"`
}

type AddParticipantsRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1"`
}

type UpdateParticipantSettingsRequest struct {
	Muted          *bool `json:"muted"`
	DesktopEnabled *bool `json:"desktop_enabled"`
	MobileEnabled  *bool `json:"mobile_enabled"`
	EmailEnabled   *bool `json:"email_enabled"`
	Pinned         *bool `json:"pinned"`
	Archived       *bool `json:"archived"`
}

// ConversationResponse is a conversation enriched with the caller's unread
// count and participant profile summaries.
type ConversationResponse struct {
	Conversation
	UnreadCount         int           `json:"unread_count"`
	ParticipantProfiles []UserSummary `json:"participant_profiles"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Content     string            `json:"content"`
	Type        MessageType       `json:"type"`
	ReplyToID   *uuid.UUID        `json:"reply_to_id"`
	Mentions    []uuid.UUID       `json:"mentions"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

// AttachmentInput carries pre-uploaded attachment metadata. Raw bytes go
// through the upload endpoints first; the message pipeline records the
// resulting URL on the message.
type AttachmentInput struct {
	URL      string   `json:"url" binding:"required"`
	Name     string   `json:"name"`
	Size     int64    `json:"size"`
	MimeType string   `json:"mime_type"`
	Duration float64  `json:"duration,omitempty"`
	Waveform Waveform `json:"waveform,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageListRequest struct {
	Before string `form:"before"` // cursor: message ID to page backwards from
	Limit  int    `form:"limit,default=50"`
}

// ========== Reaction DTOs ==========

type AddReactionRequest struct {
	Type string `json:"type" binding:"required,max=50"` // emoji key
}

// ========== Call DTOs ==========

type StartCallRequest struct {
	ConversationID uuid.UUID `json:"conversation_id" binding:"required"`
	Type           CallType  `json:"type" binding:"required,oneof=audio video"`
}

// ========== Notification DTOs ==========

type NotificationListRequest struct {
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// ========== Presence DTOs ==========

type OnlineUsersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1"`
}

// ========== Upload DTOs ==========

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required,oneof=web android ios"`
}

// ========== Realtime event DTOs ==========

// Event is the envelope for every realtime message pushed over WebSocket
// and Redis Pub/Sub.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Realtime event types
const (
	EventNewMessage      = "new_message"
	EventMessageUpdated  = "message_updated"
	EventMessageDeleted  = "message_deleted"
	EventMessageRead     = "message_read"
	EventReactionAdded   = "reaction_added"
	EventReactionRemoved = "reaction_removed"
	EventConversation    = "conversation_updated"
	EventTyping          = "typing"
	EventStopTyping      = "stop_typing"
	EventPresence        = "presence"
	EventCall            = "call_updated"
	EventNotification    = "notification"

	// WebRTC signaling pass-through (media negotiation stays peer-to-peer)
	EventCallOffer  = "call_offer"
	EventCallAnswer = "call_answer"
	EventCallICE    = "call_ice_candidate"
)

type TypingEvent struct {
	ConversationID uuid.UUID    `json:"conversation_id"`
	TypingUsers    []TypingUser `json:"typing_users"`
}

type PresenceEvent struct {
	UserID   uuid.UUID      `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

type MessageReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type ReactionEvent struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Type           string    `json:"type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
