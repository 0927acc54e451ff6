package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeSystem    MessageType = "system"
	MessageTypeVoiceNote MessageType = "voice_note"
	MessageTypeImage     MessageType = "image"
	MessageTypeVideo     MessageType = "video"
	MessageTypeAudio     MessageType = "audio"
	MessageTypeFile      MessageType = "file"
)

// MessageStatus defines the delivery status of a message
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// DeletedMessageContent replaces the content of a soft-deleted message
const DeletedMessageContent = "This message was deleted"

// Message represents an ordered, attributable unit of content in a conversation.
// created_at is assigned at write time and is the sole ordering key.
type Message struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID     `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID     `json:"sender_id" gorm:"type:uuid;index;not null"`
	Type           MessageType   `json:"type" gorm:"type:varchar(20);default:'text'"`
	Content        string        `json:"content" gorm:"type:text"`
	Status         MessageStatus `json:"status" gorm:"type:varchar(20);default:'sent'"`

	// Denormalized reply summary, resolved at send time
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty" gorm:"type:uuid"`
	ReplyToContent string     `json:"reply_to_content,omitempty" gorm:"size:500"`
	ReplyToSender  *uuid.UUID `json:"reply_to_sender,omitempty" gorm:"type:uuid"`

	Mentions        UUIDList     `json:"mentions" gorm:"type:jsonb;default:'[]'"`
	Reactions       ReactionsMap `json:"reactions" gorm:"type:jsonb;default:'{}'"`
	ReadBy          ReadByMap    `json:"read_by" gorm:"type:jsonb;default:'{}'"`
	DeletedForUsers UUIDList     `json:"deleted_for_users" gorm:"type:jsonb;default:'[]'"`

	Edited    bool           `json:"edited" gorm:"default:false"`
	EditedAt  *time.Time     `json:"edited_at,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Sender       User                `json:"sender" gorm:"foreignKey:SenderID"`
	Conversation Conversation        `json:"-" gorm:"foreignKey:ConversationID"`
	Attachments  []MessageAttachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID"`

	// Aggregated reaction details, computed per page from the reaction ledger
	ReactionsDetails map[string]ReactionDetail `json:"reactions_details,omitempty" gorm:"-"`
}

// ReactionDetail is the per-emoji aggregation returned with message pages
type ReactionDetail struct {
	Count     int         `json:"count"`
	UserIDs   []uuid.UUID `json:"user_ids"`
	UserNames []string    `json:"user_names"`
}

// IsDeletedFor reports whether the message was soft-deleted for the user
func (m *Message) IsDeletedFor(userID uuid.UUID) bool {
	return m.DeletedForUsers.Contains(userID)
}
