package model

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus defines a user's ephemeral connectivity status
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
)

// PresenceRecord is the ephemeral per-user status kept in Redis. It is
// mirrored asynchronously into the users table (is_online/last_seen) for
// durable queries; the Redis copy is authoritative.
type PresenceRecord struct {
	UserID     uuid.UUID      `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	LastActive time.Time      `json:"last_active"`
	Typing     *TypingState   `json:"typing,omitempty"`
}

// TypingState is the short-lived sub-state recording which conversation the
// user is composing a message in. It expires automatically.
type TypingState struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	LastTypedAt    time.Time `json:"last_typed_at"`
}

// TypingUser is one entry of the derived typing view for a conversation
type TypingUser struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}
