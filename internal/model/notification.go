package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType defines what event a notification is about
type NotificationType string

const (
	NotificationNewMessage   NotificationType = "new_message"
	NotificationMention      NotificationType = "mention"
	NotificationReaction     NotificationType = "reaction"
	NotificationCall         NotificationType = "call"
	NotificationAddedToGroup NotificationType = "added_to_group"
)

// ChatNotification is an asynchronous alert delivered to a user.
// Mute is honored for new_message but bypassed for mention/call/added_to_group.
type ChatNotification struct {
	ID             uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID        `json:"user_id" gorm:"type:uuid;index;not null"`
	ConversationID uuid.UUID        `json:"conversation_id" gorm:"type:uuid;not null"`
	MessageID      *uuid.UUID       `json:"message_id,omitempty" gorm:"type:uuid"`
	Type           NotificationType `json:"type" gorm:"type:varchar(20);not null"`
	Content        string           `json:"content" gorm:"size:500"`
	Read           bool             `json:"read" gorm:"default:false"`
	CreatedAt      time.Time        `json:"created_at" gorm:"index"`
	DeletedAt      gorm.DeletedAt   `json:"-" gorm:"index"`
}

// BypassesMute reports whether this notification type is delivered even when
// the target user muted the conversation.
func (t NotificationType) BypassesMute() bool {
	switch t {
	case NotificationMention, NotificationCall, NotificationAddedToGroup:
		return true
	}
	return false
}
