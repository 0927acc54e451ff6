package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"gorm.io/gorm"
)

// ReactionService keeps the per-message reaction summary and the ledger rows
// consistent: both sides change in the same transaction or not at all.
type ReactionService struct {
	db        *gorm.DB
	convRepo  repository.ConversationStore
	msgRepo   repository.MessageStore
	reactRepo repository.ReactionStore
	userRepo  repository.UserStore
	notifier  Notifier
	hub       EventBus
}

func NewReactionService(
	db *gorm.DB,
	convRepo repository.ConversationStore,
	msgRepo repository.MessageStore,
	reactRepo repository.ReactionStore,
	userRepo repository.UserStore,
	notifier Notifier,
	hub EventBus,
) *ReactionService {
	return &ReactionService{
		db:        db,
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		reactRepo: reactRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		hub:       hub,
	}
}

// AddReaction records an emoji reaction. Idempotent: reacting twice with the
// same emoji succeeds without duplicating, and distinct emojis from the same
// user coexist.
func (s *ReactionService) AddReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*model.Message, error) {
	if emoji == "" {
		return nil, fmt.Errorf("reaction type is required: %w", apperr.ErrValidation)
	}

	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}
		return nil, err
	}

	isParticipant, err := s.convRepo.IsParticipant(msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}

	if _, err := s.reactRepo.FindTuple(messageID, userID, emoji); err == nil {
		return msg, nil // already reacted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = model.ReactionsMap{}
	}
	reactions.Add(emoji, userID)

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.reactRepo.WithTx(tx).Create(&model.Reaction{
			MessageID: messageID,
			UserID:    userID,
			UserName:  user.Name,
			Type:      emoji,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return s.msgRepo.WithTx(tx).UpdateColumns(messageID, map[string]interface{}{
			"reactions": reactions,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add reaction: %w", err)
	}

	s.broadcastReaction(msg.ConversationID, model.EventReactionAdded, messageID, userID, emoji)

	if msg.SenderID != userID {
		s.notifier.Notify(ctx, msg.SenderID, msg.ConversationID, &messageID,
			model.NotificationReaction, fmt.Sprintf("%s reacted %s to your message", user.Name, emoji))
	}

	return s.msgRepo.FindByID(messageID)
}

// RemoveReaction withdraws a previously added reaction. Removing an absent
// reaction is a successful no-op.
func (s *ReactionService) RemoveReaction(messageID, userID uuid.UUID, emoji string) (*model.Message, error) {
	if emoji == "" {
		return nil, fmt.Errorf("reaction type is required: %w", apperr.ErrValidation)
	}

	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}
		return nil, err
	}

	isParticipant, err := s.convRepo.IsParticipant(msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}

	if _, err := s.reactRepo.FindTuple(messageID, userID, emoji); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return msg, nil // nothing to withdraw
		}
		return nil, err
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = model.ReactionsMap{}
	}
	reactions.Remove(emoji, userID)

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.reactRepo.WithTx(tx).DeleteTuple(messageID, userID, emoji); err != nil {
			return err
		}
		return s.msgRepo.WithTx(tx).UpdateColumns(messageID, map[string]interface{}{
			"reactions": reactions,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove reaction: %w", err)
	}

	s.broadcastReaction(msg.ConversationID, model.EventReactionRemoved, messageID, userID, emoji)
	return s.msgRepo.FindByID(messageID)
}

func (s *ReactionService) broadcastReaction(conversationID uuid.UUID, eventType string, messageID, userID uuid.UUID, emoji string) {
	event := &model.Event{Type: eventType, Payload: model.ReactionEvent{
		MessageID:      messageID,
		ConversationID: conversationID,
		UserID:         userID,
		Type:           emoji,
	}}
	s.hub.PublishTopic("conversation:"+conversationID.String(), event)
	if ids, err := s.convRepo.GetParticipantIDs(conversationID); err == nil {
		s.hub.SendToUsers(ids, event)
	}
}
