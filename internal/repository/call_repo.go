package repository

import (
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// CallRepository handles database operations for ChatCall
type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *CallRepository) WithTx(tx *gorm.DB) CallStore {
	return &CallRepository{db: tx}
}

// Create inserts a call together with its participant records
func (r *CallRepository) Create(call *model.ChatCall) error {
	return r.db.Create(call).Error
}

// FindByID finds a call with its participants
func (r *CallRepository) FindByID(id uuid.UUID) (*model.ChatCall, error) {
	var call model.ChatCall
	err := r.db.
		Preload("Participants").
		Where("id = ?", id).
		First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// FindActiveByConversation returns the ringing/ongoing call for a
// conversation, if one exists. At most one can exist at a time.
func (r *CallRepository) FindActiveByConversation(conversationID uuid.UUID) (*model.ChatCall, error) {
	var call model.ChatCall
	err := r.db.
		Preload("Participants").
		Where("conversation_id = ? AND status IN ?", conversationID,
			[]model.CallStatus{model.CallStatusRinging, model.CallStatusOngoing}).
		First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// Update applies partial updates to a call
func (r *CallRepository) Update(callID uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.ChatCall{}).
		Where("id = ?", callID).
		Updates(updates).Error
}

// UpdateParticipant applies partial updates to one participant record
func (r *CallRepository) UpdateParticipant(callID, userID uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.CallParticipant{}).
		Where("call_id = ? AND user_id = ?", callID, userID).
		Updates(updates).Error
}

// SaveParticipants persists the current state of every participant record
func (r *CallRepository) SaveParticipants(call *model.ChatCall) error {
	for i := range call.Participants {
		if err := r.db.Save(&call.Participants[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
