package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) MessageStore {
	return &MessageRepository{db: tx}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Preload("Sender").
		Preload("Attachments").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetConversationMessages returns paginated messages for a conversation,
// newest-first with a backward cursor
func (r *MessageRepository) GetConversationMessages(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.
		Preload("Sender").
		Preload("Attachments").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit)

	// Cursor-based pagination: get messages before a specific message
	if before != nil {
		var beforeMsg model.Message
		if err := r.db.Select("created_at").Where("id = ?", before).First(&beforeMsg).Error; err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", beforeMsg.CreatedAt)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// GetLatestMessage returns the most recent message in a conversation,
// excluding one (used to re-resolve the denormalized summary after a delete)
func (r *MessageRepository) GetLatestMessage(conversationID uuid.UUID, excluding *uuid.UUID) (*model.Message, error) {
	var msg model.Message
	query := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if excluding != nil {
		query = query.Where("id != ?", excluding)
	}
	if err := query.First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetUnreadMessages returns messages not yet read by the user, oldest first
func (r *MessageRepository) GetUnreadMessages(conversationID, userID uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.
		Where("conversation_id = ? AND sender_id != ?", conversationID, userID).
		Where("NOT jsonb_exists(read_by, ?)", userID.String()).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// CountUnread counts messages authored by others after the user's watermark
func (r *MessageRepository) CountUnread(conversationID, userID uuid.UUID, lastRead *time.Time) (int64, error) {
	var count int64
	query := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationID, userID)
	if lastRead != nil {
		query = query.Where("created_at > ?", *lastRead)
	}
	err := query.Count(&count).Error
	return count, err
}

// UpdateColumns applies partial updates to a message
func (r *MessageRepository) UpdateColumns(id uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CreateAttachment inserts a new message attachment
func (r *MessageRepository) CreateAttachment(att *model.MessageAttachment) error {
	return r.db.Create(att).Error
}

// ClearAttachments soft-deletes all attachments of a message
func (r *MessageRepository) ClearAttachments(messageID uuid.UUID) error {
	return r.db.
		Where("message_id = ?", messageID).
		Delete(&model.MessageAttachment{}).Error
}
