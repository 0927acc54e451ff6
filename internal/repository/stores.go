package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// Store interfaces consumed by the service layer. The GORM repositories below
// are the production implementations; tests run the services against
// in-memory fakes satisfying the same contracts.

// UserStore reads the identity directory and mirrors presence.
type UserStore interface {
	FindByID(id uuid.UUID) (*model.User, error)
	FindByIDs(ids []uuid.UUID) ([]model.User, error)
	UpdateOnlineStatus(id uuid.UUID, isOnline bool) error
}

// ConversationStore persists conversations and their participant records.
type ConversationStore interface {
	WithTx(tx *gorm.DB) ConversationStore
	Create(conv *model.Conversation) error
	FindByID(id uuid.UUID) (*model.Conversation, error)
	FindByIDs(ids []uuid.UUID) ([]model.Conversation, error)
	FindDirectConversation(userID1, userID2 uuid.UUID) (*model.Conversation, error)
	GetUserMemberships(userID uuid.UUID) ([]model.ConversationParticipant, error)
	GetParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error)
	GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error)
	IsParticipant(conversationID, userID uuid.UUID) (bool, error)
	AddParticipant(p *model.ConversationParticipant) error
	RemoveParticipant(conversationID, userID uuid.UUID) error
	UpdateParticipant(conversationID, userID uuid.UUID, updates map[string]interface{}) error
	UpdateLastRead(conversationID, userID uuid.UUID, at time.Time) error
	Update(conversationID uuid.UUID, updates map[string]interface{}) error
	SetLastMessage(conversationID uuid.UUID, msg *model.Message) error
	UpdateLastMessageContent(conversationID, messageID uuid.UUID, content string) error
	ClearLastMessage(conversationID uuid.UUID) error
}

// MessageStore persists messages and their attachments.
type MessageStore interface {
	WithTx(tx *gorm.DB) MessageStore
	Create(msg *model.Message) error
	FindByID(id uuid.UUID) (*model.Message, error)
	GetConversationMessages(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error)
	GetLatestMessage(conversationID uuid.UUID, excluding *uuid.UUID) (*model.Message, error)
	GetUnreadMessages(conversationID, userID uuid.UUID) ([]model.Message, error)
	CountUnread(conversationID, userID uuid.UUID, lastRead *time.Time) (int64, error)
	UpdateColumns(id uuid.UUID, updates map[string]interface{}) error
	CreateAttachment(att *model.MessageAttachment) error
	ClearAttachments(messageID uuid.UUID) error
}

// ReactionStore persists the reaction ledger.
type ReactionStore interface {
	WithTx(tx *gorm.DB) ReactionStore
	Create(reaction *model.Reaction) error
	FindTuple(messageID, userID uuid.UUID, emoji string) (*model.Reaction, error)
	DeleteTuple(messageID, userID uuid.UUID, emoji string) error
	ListByMessageIDs(messageIDs []uuid.UUID) ([]model.Reaction, error)
}

// CallStore persists call records and their participant sub-states.
type CallStore interface {
	WithTx(tx *gorm.DB) CallStore
	Create(call *model.ChatCall) error
	FindByID(id uuid.UUID) (*model.ChatCall, error)
	FindActiveByConversation(conversationID uuid.UUID) (*model.ChatCall, error)
	Update(callID uuid.UUID, updates map[string]interface{}) error
	UpdateParticipant(callID, userID uuid.UUID, updates map[string]interface{}) error
	SaveParticipants(call *model.ChatCall) error
}

// NotificationStore persists notification rows.
type NotificationStore interface {
	Create(n *model.ChatNotification) error
	FindByID(id uuid.UUID) (*model.ChatNotification, error)
	ListForUser(userID uuid.UUID, limit, offset int) ([]model.ChatNotification, error)
	MarkRead(id uuid.UUID) error
	MarkAllRead(userID uuid.UUID) error
	Delete(id uuid.UUID) error
	CountUnread(userID uuid.UUID) (int64, error)
}

var (
	_ UserStore         = (*UserRepository)(nil)
	_ ConversationStore = (*ConversationRepository)(nil)
	_ MessageStore      = (*MessageRepository)(nil)
	_ ReactionStore     = (*ReactionRepository)(nil)
	_ CallStore         = (*CallRepository)(nil)
	_ NotificationStore = (*NotificationRepository)(nil)
)
