package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/huddleapp/huddle/pkg/storage"
	"gorm.io/gorm"
)

// ConversationService owns the conversation lifecycle: creation, metadata,
// membership and per-participant settings.
type ConversationService struct {
	db       *gorm.DB
	convRepo repository.ConversationStore
	msgRepo  repository.MessageStore
	userRepo repository.UserStore
	blobs    storage.Storage
	notifier Notifier
	hub      EventBus
}

func NewConversationService(
	db *gorm.DB,
	convRepo repository.ConversationStore,
	msgRepo repository.MessageStore,
	userRepo repository.UserStore,
	blobs storage.Storage,
	notifier Notifier,
	hub EventBus,
) *ConversationService {
	return &ConversationService{
		db:       db,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		blobs:    blobs,
		notifier: notifier,
		hub:      hub,
	}
}

// CreateConversation creates a conversation with its creator as admin, the
// invitees as members and an opening system message, all in one atomic batch.
// For direct conversations an existing channel between the pair is returned
// instead of creating a duplicate.
func (s *ConversationService) CreateConversation(ctx context.Context, creatorID uuid.UUID, req model.CreateConversationRequest) (*model.Conversation, error) {
	participantIDs := dedupeIDs(req.ParticipantIDs, creatorID)

	if req.Type == model.ConversationTypeDirect {
		if len(participantIDs) != 1 {
			return nil, fmt.Errorf("direct conversations need exactly one other participant: %w", apperr.ErrValidation)
		}
		if existing, err := s.convRepo.FindDirectConversation(creatorID, participantIDs[0]); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	} else {
		if strings.TrimSpace(req.Name) == "" {
			return nil, fmt.Errorf("named conversations require a name: %w", apperr.ErrValidation)
		}
		if len(participantIDs) == 0 {
			return nil, fmt.Errorf("conversations need at least one invited participant: %w", apperr.ErrValidation)
		}
	}

	// Reject unknown invitees up front so the batch never half-applies
	known, err := s.userRepo.FindByIDs(participantIDs)
	if err != nil {
		return nil, err
	}
	if len(known) != len(participantIDs) {
		return nil, fmt.Errorf("one or more participants do not exist: %w", apperr.ErrValidation)
	}

	creator, err := s.userRepo.FindByID(creatorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:          uuid.New(),
		Type:        req.Type,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Type == model.ConversationTypeDirect {
		conv.Name = ""
		conv.Description = ""
	}

	members := make([]model.ConversationParticipant, 0, len(participantIDs)+1)
	members = append(members, model.ConversationParticipant{
		ConversationID: conv.ID,
		UserID:         creatorID,
		Role:           model.RoleAdmin,
		JoinedAt:       now,
	})
	for _, id := range participantIDs {
		members = append(members, model.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           model.RoleMember,
			JoinedAt:       now,
		})
	}
	conv.Participants = members

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.convRepo.WithTx(tx).Create(conv); err != nil {
			return err
		}
		content := fmt.Sprintf("%s started the conversation", creator.Name)
		if conv.Type == model.ConversationTypeDirect {
			content = fmt.Sprintf("%s started a chat", creator.Name)
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, conv.ID, creatorID, content)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	full, err := s.convRepo.FindByID(conv.ID)
	if err != nil {
		return nil, err
	}

	label := full.Name
	if label == "" {
		label = creator.Name
	}
	s.notifier.NotifyMany(ctx, participantIDs, creatorID, conv.ID, nil,
		model.NotificationAddedToGroup, fmt.Sprintf("%s added you to %s", creator.Name, label))
	s.hub.SendToUsers(append(participantIDs, creatorID), &model.Event{Type: model.EventConversation, Payload: full})

	return full, nil
}

// GetConversations lists the caller's conversations newest-activity-first,
// each enriched with their unread count. Channels with no messages yet sort
// last.
func (s *ConversationService) GetConversations(userID uuid.UUID) ([]model.ConversationResponse, error) {
	memberships, err := s.convRepo.GetUserMemberships(userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []model.ConversationResponse{}, nil
	}

	byConv := make(map[uuid.UUID]model.ConversationParticipant, len(memberships))
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		byConv[m.ConversationID] = m
		ids = append(ids, m.ConversationID)
	}

	conversations, err := s.convRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	responses := make([]model.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		conv := conversations[i]
		conv.LastMessage = conv.LastMessageSummaryValue()
		membership := byConv[conv.ID]

		unread, err := s.msgRepo.CountUnread(conv.ID, userID, membership.LastRead)
		if err != nil {
			log.Printf("⚠️ Unread count failed for conversation %s: %v", conv.ID, err)
		}

		profiles := make([]model.UserSummary, 0, len(conv.Participants))
		for j := range conv.Participants {
			profiles = append(profiles, conv.Participants[j].User.Summary())
		}

		responses = append(responses, model.ConversationResponse{
			Conversation:        conv,
			UnreadCount:         int(unread),
			ParticipantProfiles: profiles,
		})
	}

	sort.SliceStable(responses, func(i, j int) bool {
		a, b := responses[i].LastMessageCreatedAt, responses[j].LastMessageCreatedAt
		switch {
		case a == nil && b == nil:
			return responses[i].CreatedAt.After(responses[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return responses, nil
}

// GetConversation fetches a single conversation for a participant
func (s *ConversationService) GetConversation(conversationID, userID uuid.UUID) (*model.ConversationResponse, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return nil, err
	}

	var membership *model.ConversationParticipant
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			membership = &conv.Participants[i]
			break
		}
	}
	if membership == nil {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}

	conv.LastMessage = conv.LastMessageSummaryValue()
	unread, err := s.msgRepo.CountUnread(conversationID, userID, membership.LastRead)
	if err != nil {
		return nil, err
	}

	profiles := make([]model.UserSummary, 0, len(conv.Participants))
	for i := range conv.Participants {
		profiles = append(profiles, conv.Participants[i].User.Summary())
	}

	return &model.ConversationResponse{
		Conversation:        *conv,
		UnreadCount:         int(unread),
		ParticipantProfiles: profiles,
	}, nil
}

// UpdateConversation changes name, description or avatar. Admin-only, and
// direct conversations carry no mutable metadata.
func (s *ConversationService) UpdateConversation(ctx context.Context, conversationID, userID uuid.UUID, req model.UpdateConversationRequest) (*model.Conversation, error) {
	conv, err := s.requireAdmin(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Type == model.ConversationTypeDirect {
		return nil, fmt.Errorf("direct conversations have no editable metadata: %w", apperr.ErrValidation)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty: %w", apperr.ErrValidation)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Avatar != nil {
		// Replacing the avatar drops the previous blob
		if conv.Avatar != "" && conv.Avatar != *req.Avatar {
			if key := s.blobs.ObjectKeyFromURL(conv.Avatar); key != "" {
				if err := s.blobs.Delete(ctx, key); err != nil {
					log.Printf("⚠️ Failed to delete old avatar: %v", err)
				}
			}
		}
		updates["avatar"] = *req.Avatar
	}
	if len(updates) == 0 {
		return conv, nil
	}

	if err := s.convRepo.Update(conversationID, updates); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	updated, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}
	s.broadcastConversation(updated)
	return updated, nil
}

// AddParticipants invites users into a group-like conversation: membership
// rows plus one system message per addition, atomically. Direct conversations
// never grow.
func (s *ConversationService) AddParticipants(ctx context.Context, conversationID, actorID uuid.UUID, userIDs []uuid.UUID) (*model.Conversation, error) {
	conv, err := s.requireAdmin(conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if conv.Type == model.ConversationTypeDirect {
		return nil, fmt.Errorf("direct conversations cannot gain participants: %w", apperr.ErrValidation)
	}

	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		return nil, err
	}

	existing := make(map[uuid.UUID]bool, len(conv.Participants))
	for i := range conv.Participants {
		existing[conv.Participants[i].UserID] = true
	}

	toAdd := make([]model.User, 0, len(userIDs))
	users, err := s.userRepo.FindByIDs(dedupeIDs(userIDs, actorID))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if !existing[u.ID] {
			toAdd = append(toAdd, u)
		}
	}
	if len(toAdd) == 0 {
		return conv, nil
	}

	now := time.Now()
	err = inTx(s.db, func(tx *gorm.DB) error {
		txConvs := s.convRepo.WithTx(tx)
		for _, u := range toAdd {
			if err := txConvs.AddParticipant(&model.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         u.ID,
				Role:           model.RoleMember,
				JoinedAt:       now,
			}); err != nil {
				return err
			}
			content := fmt.Sprintf("%s added %s", actor.Name, u.Name)
			if _, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, conversationID, actorID, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add participants: %w", err)
	}

	updated, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}

	addedIDs := make([]uuid.UUID, len(toAdd))
	for i, u := range toAdd {
		addedIDs[i] = u.ID
	}
	label := updated.Name
	if label == "" {
		label = "a conversation"
	}
	s.notifier.NotifyMany(ctx, addedIDs, actorID, conversationID, nil,
		model.NotificationAddedToGroup, fmt.Sprintf("%s added you to %s", actor.Name, label))
	s.broadcastConversation(updated)
	return updated, nil
}

// RemoveParticipant removes a member (admin action) or lets a user leave.
// The membership removal and the departure system message commit together.
func (s *ConversationService) RemoveParticipant(conversationID, actorID, targetID uuid.UUID) error {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return err
	}
	if conv.Type == model.ConversationTypeDirect {
		return fmt.Errorf("direct conversations cannot lose participants: %w", apperr.ErrValidation)
	}

	if actorID != targetID {
		if _, err := s.requireAdmin(conversationID, actorID); err != nil {
			return err
		}
	}

	isParticipant, err := s.convRepo.IsParticipant(conversationID, targetID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("user %s is not a participant: %w", targetID, apperr.ErrNotFound)
	}

	var content string
	if actorID == targetID {
		actor, err := s.userRepo.FindByID(actorID)
		if err != nil {
			return err
		}
		content = fmt.Sprintf("%s left the conversation", actor.Name)
	} else {
		actor, err := s.userRepo.FindByID(actorID)
		if err != nil {
			return err
		}
		target, err := s.userRepo.FindByID(targetID)
		if err != nil {
			return err
		}
		content = fmt.Sprintf("%s removed %s", actor.Name, target.Name)
	}

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.convRepo.WithTx(tx).RemoveParticipant(conversationID, targetID); err != nil {
			return err
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, conversationID, actorID, content)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if updated, err := s.convRepo.FindByID(conversationID); err == nil {
		s.broadcastConversation(updated)
		// The removed user no longer shows in participants; tell them directly
		s.hub.SendToUser(targetID, &model.Event{Type: model.EventConversation, Payload: updated})
	}
	return nil
}

// UpdateParticipantSettings flips the caller's own per-conversation flags
// (mute, channel toggles, pin, archive)
func (s *ConversationService) UpdateParticipantSettings(conversationID, userID uuid.UUID, req model.UpdateParticipantSettingsRequest) (*model.ConversationParticipant, error) {
	if _, err := s.convRepo.GetParticipant(conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Muted != nil {
		updates["muted"] = *req.Muted
	}
	if req.DesktopEnabled != nil {
		updates["desktop_enabled"] = *req.DesktopEnabled
	}
	if req.MobileEnabled != nil {
		updates["mobile_enabled"] = *req.MobileEnabled
	}
	if req.EmailEnabled != nil {
		updates["email_enabled"] = *req.EmailEnabled
	}
	if req.Pinned != nil {
		updates["pinned"] = *req.Pinned
	}
	if req.Archived != nil {
		updates["archived"] = *req.Archived
	}
	if len(updates) > 0 {
		if err := s.convRepo.UpdateParticipant(conversationID, userID, updates); err != nil {
			return nil, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	return s.convRepo.GetParticipant(conversationID, userID)
}

// Subscribe attaches a handler to a conversation's event stream
func (s *ConversationService) Subscribe(ctx context.Context, conversationID, userID uuid.UUID, handler func(model.Event)) (cancel func(), err error) {
	isParticipant, err := s.convRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}
	return s.hub.Subscribe(ctx, "conversation:"+conversationID.String(), handler), nil
}

func (s *ConversationService) requireAdmin(conversationID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return nil, err
	}
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			if conv.Participants[i].Role != model.RoleAdmin {
				return nil, fmt.Errorf("admin role required: %w", apperr.ErrPermissionDenied)
			}
			return conv, nil
		}
	}
	return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
}

func (s *ConversationService) broadcastConversation(conv *model.Conversation) {
	event := &model.Event{Type: model.EventConversation, Payload: conv}
	s.hub.PublishTopic("conversation:"+conv.ID.String(), event)

	ids := make([]uuid.UUID, 0, len(conv.Participants))
	for i := range conv.Participants {
		ids = append(ids, conv.Participants[i].UserID)
	}
	s.hub.SendToUsers(ids, event)
}

// dedupeIDs drops duplicates and the excluded ID while preserving order
func dedupeIDs(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{exclude: true}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
