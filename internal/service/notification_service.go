package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/huddleapp/huddle/pkg/mailer"
	"github.com/huddleapp/huddle/pkg/push"
	"gorm.io/gorm"
)

// NotificationService is the cross-cutting fan-out consumer: every mutating
// operation that affects another participant routes through Notify. The
// durable row is the primary artifact; WebSocket, FCM and email delivery are
// best-effort side channels whose failures are logged, never propagated.
type NotificationService struct {
	notifRepo repository.NotificationStore
	convRepo  repository.ConversationStore
	userRepo  repository.UserStore
	hub       EventBus
	push      *push.PushService
	mail      *mailer.Mailer
}

func NewNotificationService(
	notifRepo repository.NotificationStore,
	convRepo repository.ConversationStore,
	userRepo repository.UserStore,
	hub EventBus,
	pushService *push.PushService,
	mail *mailer.Mailer,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		convRepo:  convRepo,
		userRepo:  userRepo,
		hub:       hub,
		push:      pushService,
		mail:      mail,
	}
}

// shouldDeliver applies the mute policy: mute silences new_message but is
// intentionally bypassed for direct mention/call/added_to_group events.
func shouldDeliver(p *model.ConversationParticipant, notifType model.NotificationType) bool {
	if p == nil {
		return true // not yet a participant (just being added)
	}
	if !p.Muted {
		return true
	}
	return notifType.BypassesMute()
}

// Notify creates a ChatNotification for one user and pushes it out on the
// side channels. Best-effort by contract: the caller's primary action has
// already committed.
func (s *NotificationService) Notify(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID, notifType model.NotificationType, content string) {
	participant, err := s.convRepo.GetParticipant(conversationID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("⚠️ Notification settings lookup failed for user %s: %v", userID, err)
		return
	}
	if !shouldDeliver(participant, notifType) {
		return
	}

	n := &model.ChatNotification{
		UserID:         userID,
		ConversationID: conversationID,
		MessageID:      messageID,
		Type:           notifType,
		Content:        content,
	}
	if err := s.notifRepo.Create(n); err != nil {
		log.Printf("⚠️ Failed to create notification for user %s: %v", userID, err)
		return
	}

	s.hub.SendToUser(userID, &model.Event{Type: model.EventNotification, Payload: n})

	if err := s.push.Send(ctx, userID, pushTitle(notifType), content, map[string]string{
		"type":            string(notifType),
		"conversation_id": conversationID.String(),
	}); err != nil {
		log.Printf("⚠️ Push delivery failed for user %s: %v", userID, err)
	}

	if notifType == model.NotificationMention && participant != nil && participant.EmailEnabled {
		s.sendMentionEmail(userID, conversationID, content)
	}
}

// NotifyMany fans a notification out to several users, skipping the actor
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []uuid.UUID, actorID, conversationID uuid.UUID, messageID *uuid.UUID, notifType model.NotificationType, content string) {
	for _, userID := range userIDs {
		if userID == actorID {
			continue
		}
		s.Notify(ctx, userID, conversationID, messageID, notifType, content)
	}
}

func (s *NotificationService) sendMentionEmail(userID, conversationID uuid.UUID, content string) {
	if s.mail == nil {
		return
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		log.Printf("⚠️ Mention email lookup failed: %v", err)
		return
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		log.Printf("⚠️ Mention email lookup failed: %v", err)
		return
	}
	name := conv.Name
	if name == "" {
		name = "a conversation"
	}
	if err := s.mail.SendMentionAlert(user.Email, user.Name, name, content); err != nil {
		log.Printf("⚠️ Mention email delivery failed for %s: %v", user.Email, err)
	}
}

func pushTitle(t model.NotificationType) string {
	switch t {
	case model.NotificationMention:
		return "You were mentioned"
	case model.NotificationReaction:
		return "New reaction"
	case model.NotificationCall:
		return "Incoming call"
	case model.NotificationAddedToGroup:
		return "Added to a conversation"
	default:
		return "New message"
	}
}

// ========== Notification queries ==========

// GetNotifications returns a user's notifications, newest-first
func (s *NotificationService) GetNotifications(userID uuid.UUID, limit, offset int) ([]model.ChatNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.notifRepo.ListForUser(userID, limit, offset)
}

// MarkNotificationAsRead flags one notification read; only its owner may
func (s *NotificationService) MarkNotificationAsRead(id, userID uuid.UUID) error {
	n, err := s.notifRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("notification %s: %w", id, apperr.ErrNotFound)
		}
		return err
	}
	if n.UserID != userID {
		return fmt.Errorf("notification %s: %w", id, apperr.ErrPermissionDenied)
	}
	return s.notifRepo.MarkRead(id)
}

// MarkAllNotificationsAsRead flags every unread notification of the user
func (s *NotificationService) MarkAllNotificationsAsRead(userID uuid.UUID) error {
	return s.notifRepo.MarkAllRead(userID)
}

// DeleteNotification removes a notification; only its owner may
func (s *NotificationService) DeleteNotification(id, userID uuid.UUID) error {
	n, err := s.notifRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("notification %s: %w", id, apperr.ErrNotFound)
		}
		return err
	}
	if n.UserID != userID {
		return fmt.Errorf("notification %s: %w", id, apperr.ErrPermissionDenied)
	}
	return s.notifRepo.Delete(id)
}

// GetUnreadNotificationCount counts the user's unread notifications
func (s *NotificationService) GetUnreadNotificationCount(userID uuid.UUID) (int64, error) {
	return s.notifRepo.CountUnread(userID)
}
