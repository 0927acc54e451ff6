package repository

import (
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// ReactionRepository handles database operations for the reaction ledger
type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ReactionRepository) WithTx(tx *gorm.DB) ReactionStore {
	return &ReactionRepository{db: tx}
}

// Create inserts a new reaction row
func (r *ReactionRepository) Create(reaction *model.Reaction) error {
	return r.db.Create(reaction).Error
}

// FindTuple returns the reaction for (message, user, emoji), if any
func (r *ReactionRepository) FindTuple(messageID, userID uuid.UUID, emoji string) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.
		Where("message_id = ? AND user_id = ? AND type = ?", messageID, userID, emoji).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

// DeleteTuple removes the reaction for (message, user, emoji); no-op if absent
func (r *ReactionRepository) DeleteTuple(messageID, userID uuid.UUID, emoji string) error {
	return r.db.
		Where("message_id = ? AND user_id = ? AND type = ?", messageID, userID, emoji).
		Delete(&model.Reaction{}).Error
}

// ListByMessageIDs returns all reactions for a page of messages, batching the
// in-set query in groups of directoryBatchLimit
func (r *ReactionRepository) ListByMessageIDs(messageIDs []uuid.UUID) ([]model.Reaction, error) {
	reactions := []model.Reaction{}
	for start := 0; start < len(messageIDs); start += directoryBatchLimit {
		end := start + directoryBatchLimit
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		var batch []model.Reaction
		if err := r.db.Where("message_id IN ?", messageIDs[start:end]).Find(&batch).Error; err != nil {
			return nil, err
		}
		reactions = append(reactions, batch...)
	}
	return reactions, nil
}
