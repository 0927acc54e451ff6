package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationType defines what kind of channel a conversation is
type ConversationType string

const (
	ConversationTypeDirect    ConversationType = "direct"
	ConversationTypeGroup     ConversationType = "group"
	ConversationTypeProject   ConversationType = "project"
	ConversationTypeWorkspace ConversationType = "workspace"
)

// Conversation represents a chat channel (direct, group, project or workspace)
type Conversation struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Type        ConversationType `json:"type" gorm:"type:varchar(20);default:'direct'"`
	Name        string           `json:"name" gorm:"size:100"`        // empty for direct
	Description string           `json:"description" gorm:"size:500"` // empty for direct
	Avatar      string           `json:"avatar,omitempty" gorm:"size:500"`
	CreatedBy   uuid.UUID        `json:"created_by" gorm:"type:uuid"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `json:"-" gorm:"index"`

	// Denormalized last-message summary, written in the same transaction as
	// the message itself. Best-effort cache, not an ordering guarantee.
	LastMessageID        *uuid.UUID  `json:"-" gorm:"type:uuid"`
	LastMessageContent   string      `json:"-" gorm:"size:500"`
	LastMessageSenderID  *uuid.UUID  `json:"-" gorm:"type:uuid"`
	LastMessageType      MessageType `json:"-" gorm:"type:varchar(20)"`
	LastMessageCreatedAt *time.Time  `json:"-"`

	// Relations
	Participants []ConversationParticipant `json:"participants,omitempty" gorm:"foreignKey:ConversationID"`
	LastMessage  *LastMessageSummary       `json:"last_message,omitempty" gorm:"-"` // built from the denormalized columns
}

// LastMessageSummary is the embedded summary of a conversation's most recent message
type LastMessageSummary struct {
	ID        uuid.UUID   `json:"id"`
	Content   string      `json:"content"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// LastMessageSummaryValue builds the API summary from the denormalized columns
func (c *Conversation) LastMessageSummaryValue() *LastMessageSummary {
	if c.LastMessageID == nil || c.LastMessageCreatedAt == nil {
		return nil
	}
	summary := &LastMessageSummary{
		ID:        *c.LastMessageID,
		Content:   c.LastMessageContent,
		Type:      c.LastMessageType,
		CreatedAt: *c.LastMessageCreatedAt,
	}
	if c.LastMessageSenderID != nil {
		summary.SenderID = *c.LastMessageSenderID
	}
	return summary
}

// ParticipantRole defines the role of a participant in a conversation
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// ConversationParticipant is the per-user membership record carrying
// per-user settings (unread watermark, notification flags, pin/archive).
// At most one record exists per (conversation_id, user_id).
type ConversationParticipant struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID       `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_participant;not null"`
	UserID         uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_conv_participant;not null"`
	Role           ParticipantRole `json:"role" gorm:"type:varchar(20);default:'member'"`
	JoinedAt       time.Time       `json:"joined_at"`
	LastRead       *time.Time      `json:"last_read,omitempty"` // unread watermark
	Muted          bool            `json:"muted" gorm:"default:false"`
	DesktopEnabled bool            `json:"desktop_enabled" gorm:"default:true"`
	MobileEnabled  bool            `json:"mobile_enabled" gorm:"default:true"`
	EmailEnabled   bool            `json:"email_enabled" gorm:"default:false"`
	Pinned         bool            `json:"pinned" gorm:"default:false"`
	Archived       bool            `json:"archived" gorm:"default:false"`
	DeletedAt      gorm.DeletedAt  `json:"-" gorm:"index"`

	// Relations
	User         User         `json:"user" gorm:"foreignKey:UserID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}
