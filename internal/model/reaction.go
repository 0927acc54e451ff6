package model

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is one ledger row: a single user's emoji annotation on a message.
// The unique index backs the idempotency guarantee: at most one row per
// (message_id, user_id, type). Existence of a row implies the user appears in
// Message.Reactions[type].
type Reaction struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageID uuid.UUID `json:"message_id" gorm:"type:uuid;uniqueIndex:idx_reaction_tuple;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_reaction_tuple;not null"`
	UserName  string    `json:"user_name" gorm:"size:100"`
	Type      string    `json:"type" gorm:"size:50;uniqueIndex:idx_reaction_tuple;not null"` // emoji key
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Message Message `json:"-" gorm:"foreignKey:MessageID"`
}
