package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// ConversationRepository handles database operations for Conversation and
// ConversationParticipant
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ConversationRepository) WithTx(tx *gorm.DB) ConversationStore {
	return &ConversationRepository{db: tx}
}

// Create inserts a conversation together with its participant records
func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID with participants
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Preload("Participants.User").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByIDs bulk-fetches conversations with participants, batching in groups
// of directoryBatchLimit to respect the store's multi-id query limit
func (r *ConversationRepository) FindByIDs(ids []uuid.UUID) ([]model.Conversation, error) {
	conversations := []model.Conversation{}
	for start := 0; start < len(ids); start += directoryBatchLimit {
		end := start + directoryBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		var batch []model.Conversation
		err := r.db.
			Preload("Participants.User").
			Where("id IN ?", ids[start:end]).
			Find(&batch).Error
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, batch...)
	}
	return conversations, nil
}

// FindDirectConversation finds an existing direct conversation between two users
func (r *ConversationRepository) FindDirectConversation(userID1, userID2 uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Table("conversations").
		Joins("JOIN conversation_participants cp1 ON cp1.conversation_id = conversations.id").
		Joins("JOIN conversation_participants cp2 ON cp2.conversation_id = conversations.id").
		Where("conversations.type = ?", model.ConversationTypeDirect).
		Where("cp1.user_id = ?", userID1).
		Where("cp2.user_id = ?", userID2).
		Preload("Participants.User").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserMemberships returns all participant records for a user
func (r *ConversationRepository) GetUserMemberships(userID uuid.UUID) ([]model.ConversationParticipant, error) {
	var memberships []model.ConversationParticipant
	err := r.db.
		Where("user_id = ?", userID).
		Find(&memberships).Error
	return memberships, err
}

// GetParticipant returns the membership record for (conversation, user)
func (r *ConversationRepository) GetParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error) {
	var p model.ConversationParticipant
	err := r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipants returns all membership records for a conversation
func (r *ConversationRepository) GetParticipants(conversationID uuid.UUID) ([]model.ConversationParticipant, error) {
	var participants []model.ConversationParticipant
	err := r.db.
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Find(&participants).Error
	return participants, err
}

// GetParticipantIDs returns all participant user IDs for a conversation
func (r *ConversationRepository) GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsParticipant checks if a user belongs to a conversation
func (r *ConversationRepository) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddParticipant adds a user to a conversation
func (r *ConversationRepository) AddParticipant(p *model.ConversationParticipant) error {
	return r.db.Create(p).Error
}

// RemoveParticipant soft-deletes a membership record
func (r *ConversationRepository) RemoveParticipant(conversationID, userID uuid.UUID) error {
	return r.db.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&model.ConversationParticipant{}).Error
}

// UpdateParticipant applies partial updates to a membership record
func (r *ConversationRepository) UpdateParticipant(conversationID, userID uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(updates).Error
}

// UpdateLastRead advances the unread watermark for a participant
func (r *ConversationRepository) UpdateLastRead(conversationID, userID uuid.UUID, at time.Time) error {
	return r.db.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read", at).Error
}

// Update applies partial updates to a conversation
func (r *ConversationRepository) Update(conversationID uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
}

// SetLastMessage writes the denormalized last-message summary. The created_at
// guard keeps the cache from regressing to an older message when concurrent
// sends land out of order (last writer by created_at wins).
func (r *ConversationRepository) SetLastMessage(conversationID uuid.UUID, msg *model.Message) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Where("last_message_created_at IS NULL OR last_message_created_at <= ?", msg.CreatedAt).
		Updates(map[string]interface{}{
			"last_message_id":         msg.ID,
			"last_message_content":    msg.Content,
			"last_message_sender_id":  msg.SenderID,
			"last_message_type":       msg.Type,
			"last_message_created_at": msg.CreatedAt,
			"updated_at":              gorm.Expr("NOW()"),
		}).Error
}

// UpdateLastMessageContent propagates an edit of the current last message
// into the denormalized summary
func (r *ConversationRepository) UpdateLastMessageContent(conversationID, messageID uuid.UUID, content string) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ? AND last_message_id = ?", conversationID, messageID).
		Update("last_message_content", content).Error
}

// ClearLastMessage empties the denormalized summary
func (r *ConversationRepository) ClearLastMessage(conversationID uuid.UUID) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id":         nil,
			"last_message_content":    "",
			"last_message_sender_id":  nil,
			"last_message_type":       "",
			"last_message_created_at": nil,
		}).Error
}
