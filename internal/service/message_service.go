package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/huddleapp/huddle/pkg/storage"
	"gorm.io/gorm"
)

// MessageService owns message creation, editing, per-user soft deletion,
// read receipts and pagination. Every write that must stay consistent with
// the conversation's denormalized lastMessage happens in one transaction.
type MessageService struct {
	db        *gorm.DB
	convRepo  repository.ConversationStore
	msgRepo   repository.MessageStore
	reactRepo repository.ReactionStore
	userRepo  repository.UserStore
	blobs     storage.Storage
	notifier  Notifier
	hub       EventBus
}

func NewMessageService(
	db *gorm.DB,
	convRepo repository.ConversationStore,
	msgRepo repository.MessageStore,
	reactRepo repository.ReactionStore,
	userRepo repository.UserStore,
	blobs storage.Storage,
	notifier Notifier,
	hub EventBus,
) *MessageService {
	return &MessageService{
		db:        db,
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		reactRepo: reactRepo,
		userRepo:  userRepo,
		blobs:     blobs,
		notifier:  notifier,
		hub:       hub,
	}
}

// FileUpload carries raw attachment bytes handed in by the transport layer
type FileUpload struct {
	Reader      io.Reader
	Size        int64
	Name        string
	ContentType string
	Duration    float64
	Waveform    model.Waveform
}

// ClassifyMimeType maps a MIME type to the attachment taxonomy
func ClassifyMimeType(mimeType string) model.AttachmentType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return model.AttachmentTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return model.AttachmentTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return model.AttachmentTypeAudio
	default:
		return model.AttachmentTypeFile
	}
}

// SendMessage validates membership, uploads attachment bytes under the
// conversation+message namespace, resolves the reply summary, then writes
// the message and the conversation's lastMessage in one atomic batch.
func (s *MessageService) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, req model.SendMessageRequest, files []FileUpload) (*model.Message, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
		}
		return nil, err
	}

	isParticipant, err := s.convRepo.IsParticipant(conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", senderID, apperr.ErrPermissionDenied)
	}

	if req.Content == "" && len(req.Attachments) == 0 && len(files) == 0 {
		return nil, fmt.Errorf("message needs content or attachments: %w", apperr.ErrValidation)
	}

	msgType := req.Type
	if msgType == "" || msgType == model.MessageTypeSystem {
		// system messages are engine-generated only
		msgType = model.MessageTypeText
	}

	// Pre-assign the ID so attachment blobs can live under the message path
	msg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        req.Content,
		Status:         model.MessageStatusSent,
		Mentions:       model.UUIDList(req.Mentions),
		Reactions:      model.ReactionsMap{},
		ReadBy:         model.ReadByMap{},
		CreatedAt:      time.Now(),
	}

	// Resolve the reply summary; silently omitted if the referenced message
	// is gone
	if req.ReplyToID != nil {
		if replied, err := s.msgRepo.FindByID(*req.ReplyToID); err == nil {
			msg.ReplyToID = &replied.ID
			msg.ReplyToContent = truncate(replied.Content, 500)
			sender := replied.SenderID
			msg.ReplyToSender = &sender
		}
	}

	// Upload raw attachment bytes first. Not atomic with the write below: a
	// crash in between orphans blobs, which is an accepted trade-off.
	attachments := make([]model.MessageAttachment, 0, len(files)+len(req.Attachments))
	for _, f := range files {
		objectName := fmt.Sprintf("conversations/%s/%s/%s%s",
			conversationID, msg.ID, uuid.New().String(), filepath.Ext(f.Name))
		result, err := s.blobs.UploadFromReader(ctx, f.Reader, f.Size, objectName, f.ContentType)
		if err != nil {
			return nil, fmt.Errorf("attachment upload failed: %w", err)
		}
		attachments = append(attachments, model.MessageAttachment{
			MessageID: msg.ID,
			Type:      ClassifyMimeType(f.ContentType),
			URL:       result.URL,
			Name:      f.Name,
			Size:      f.Size,
			MimeType:  f.ContentType,
			Duration:  f.Duration,
			Waveform:  f.Waveform,
		})
	}
	for _, a := range req.Attachments {
		attachments = append(attachments, model.MessageAttachment{
			MessageID: msg.ID,
			Type:      ClassifyMimeType(a.MimeType),
			URL:       a.URL,
			Name:      a.Name,
			Size:      a.Size,
			MimeType:  a.MimeType,
			Duration:  a.Duration,
			Waveform:  a.Waveform,
		})
	}

	if msgType == model.MessageTypeText && len(attachments) > 0 && req.Content == "" {
		msg.Type = attachmentMessageType(attachments[0])
	}

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).Create(msg); err != nil {
			return err
		}
		for i := range attachments {
			if err := s.msgRepo.WithTx(tx).CreateAttachment(&attachments[i]); err != nil {
				return err
			}
		}
		return s.convRepo.WithTx(tx).SetLastMessage(conversationID, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	full, err := s.msgRepo.FindByID(msg.ID)
	if err != nil {
		return nil, err
	}

	s.broadcast(conversationID, model.EventNewMessage, full)
	s.fanOutMessageNotifications(ctx, conv, full)

	return full, nil
}

// attachmentMessageType derives the message type from its first attachment.
// Voice notes are audio attachments carrying a waveform.
func attachmentMessageType(a model.MessageAttachment) model.MessageType {
	switch a.Type {
	case model.AttachmentTypeImage:
		return model.MessageTypeImage
	case model.AttachmentTypeVideo:
		return model.MessageTypeVideo
	case model.AttachmentTypeAudio:
		if len(a.Waveform) > 0 {
			return model.MessageTypeVoiceNote
		}
		return model.MessageTypeAudio
	default:
		return model.MessageTypeFile
	}
}

func (s *MessageService) fanOutMessageNotifications(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	preview := msg.Content
	if preview == "" {
		preview = "Sent an attachment"
	}
	preview = truncate(preview, 200)

	mentioned := make(map[uuid.UUID]bool, len(msg.Mentions))
	for _, id := range msg.Mentions {
		mentioned[id] = true
		if id != msg.SenderID {
			s.notifier.Notify(ctx, id, conv.ID, &msg.ID, model.NotificationMention,
				fmt.Sprintf("%s mentioned you: %s", msg.Sender.Name, preview))
		}
	}
	for i := range conv.Participants {
		userID := conv.Participants[i].UserID
		if userID == msg.SenderID || mentioned[userID] {
			continue
		}
		s.notifier.Notify(ctx, userID, conv.ID, &msg.ID, model.NotificationNewMessage,
			fmt.Sprintf("%s: %s", msg.Sender.Name, preview))
	}
}

// GetMessages returns a page of messages ordered oldest-first for display,
// fetched newest-first behind a backward cursor, each enriched with the
// aggregated reaction details for the page.
func (s *MessageService) GetMessages(conversationID, userID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	isParticipant, err := s.convRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.msgRepo.GetConversationMessages(conversationID, before, limit)
	if err != nil {
		return nil, err
	}

	if err := s.attachReactionDetails(messages); err != nil {
		log.Printf("⚠️ Reaction aggregation failed for conversation %s: %v", conversationID, err)
	}

	// Newest-first from the store; oldest-first for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListenToMessages subscribes to a conversation's message events
func (s *MessageService) ListenToMessages(ctx context.Context, conversationID uuid.UUID, handler func(model.Event)) (cancel func()) {
	return s.hub.Subscribe(ctx, "conversation:"+conversationID.String(), handler)
}

func (s *MessageService) attachReactionDetails(messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
	}
	reactions, err := s.reactRepo.ListByMessageIDs(ids)
	if err != nil {
		return err
	}

	grouped := make(map[uuid.UUID]map[string]model.ReactionDetail)
	for _, r := range reactions {
		byEmoji, ok := grouped[r.MessageID]
		if !ok {
			byEmoji = make(map[string]model.ReactionDetail)
			grouped[r.MessageID] = byEmoji
		}
		detail := byEmoji[r.Type]
		detail.Count++
		detail.UserIDs = append(detail.UserIDs, r.UserID)
		detail.UserNames = append(detail.UserNames, r.UserName)
		byEmoji[r.Type] = detail
	}
	for i := range messages {
		if details, ok := grouped[messages[i].ID]; ok {
			messages[i].ReactionsDetails = details
		}
	}
	return nil
}

// MarkMessagesAsRead stamps readBy for every unread message and advances the
// caller's watermark in the same atomic batch. No-ops when nothing is unread.
func (s *MessageService) MarkMessagesAsRead(conversationID, userID uuid.UUID) error {
	isParticipant, err := s.convRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}

	unread, err := s.msgRepo.GetUnreadMessages(conversationID, userID)
	if err != nil {
		return err
	}
	if len(unread) == 0 {
		return nil
	}

	now := time.Now()
	err = inTx(s.db, func(tx *gorm.DB) error {
		txMsgs := s.msgRepo.WithTx(tx)
		for i := range unread {
			readBy := unread[i].ReadBy
			if readBy == nil {
				readBy = model.ReadByMap{}
			}
			readBy[userID.String()] = now
			if err := txMsgs.UpdateColumns(unread[i].ID, map[string]interface{}{
				"read_by": readBy,
				"status":  model.MessageStatusRead,
			}); err != nil {
				return err
			}
		}
		return s.convRepo.WithTx(tx).UpdateLastRead(conversationID, userID, now)
	})
	if err != nil {
		return fmt.Errorf("failed to mark messages as read: %w", err)
	}

	s.broadcast(conversationID, model.EventMessageRead, model.MessageReadEvent{
		ConversationID: conversationID,
		UserID:         userID,
		ReadAt:         now,
	})
	return nil
}

// EditMessage updates content for the original sender, propagating the edit
// into the conversation's lastMessage summary when needed.
func (s *MessageService) EditMessage(messageID uuid.UUID, content string, userID uuid.UUID) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("only the sender can edit: %w", apperr.ErrPermissionDenied)
	}
	if msg.Type == model.MessageTypeSystem {
		return nil, fmt.Errorf("system messages cannot be edited: %w", apperr.ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("content is required: %w", apperr.ErrValidation)
	}

	now := time.Now()
	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).UpdateColumns(messageID, map[string]interface{}{
			"content":   content,
			"edited":    true,
			"edited_at": now,
		}); err != nil {
			return err
		}
		// Consistency propagation into the denormalized summary
		return s.convRepo.WithTx(tx).UpdateLastMessageContent(msg.ConversationID, messageID, content)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	updated, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	s.broadcast(msg.ConversationID, model.EventMessageUpdated, updated)
	return updated, nil
}

// DeleteMessage soft-deletes: content becomes the tombstone, attachments are
// cleared and the deleter lands in deletedForUsers. Permitted for the sender
// or a conversation admin; system messages only for admins. If the deleted
// message was the lastMessage, the summary is re-resolved or cleared.
func (s *MessageService) DeleteMessage(messageID, userID uuid.UUID) error {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}
		return err
	}

	isAdmin := false
	if participant, err := s.convRepo.GetParticipant(msg.ConversationID, userID); err == nil {
		isAdmin = participant.Role == model.RoleAdmin
	}
	if msg.Type == model.MessageTypeSystem {
		if !isAdmin {
			return fmt.Errorf("system messages are admin-deletable only: %w", apperr.ErrPermissionDenied)
		}
	} else if msg.SenderID != userID && !isAdmin {
		return fmt.Errorf("only the sender or an admin can delete: %w", apperr.ErrPermissionDenied)
	}

	deletedFor := msg.DeletedForUsers
	if !deletedFor.Contains(userID) {
		deletedFor = append(deletedFor, userID)
	}

	conv, err := s.convRepo.FindByID(msg.ConversationID)
	if err != nil {
		return err
	}
	wasLastMessage := conv.LastMessageID != nil && *conv.LastMessageID == messageID

	err = inTx(s.db, func(tx *gorm.DB) error {
		txMsgs := s.msgRepo.WithTx(tx)
		if err := txMsgs.UpdateColumns(messageID, map[string]interface{}{
			"content":           model.DeletedMessageContent,
			"deleted_for_users": deletedFor,
		}); err != nil {
			return err
		}
		if err := txMsgs.ClearAttachments(messageID); err != nil {
			return err
		}
		if !wasLastMessage {
			return nil
		}
		// Re-resolve the summary to the most recent remaining message
		txConvs := s.convRepo.WithTx(tx)
		latest, err := txMsgs.GetLatestMessage(msg.ConversationID, &messageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return txConvs.ClearLastMessage(msg.ConversationID)
			}
			return err
		}
		if err := txConvs.ClearLastMessage(msg.ConversationID); err != nil {
			return err
		}
		return txConvs.SetLastMessage(msg.ConversationID, latest)
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	s.broadcast(msg.ConversationID, model.EventMessageDeleted, map[string]interface{}{
		"message_id":      messageID,
		"conversation_id": msg.ConversationID,
		"deleted_by":      userID,
	})
	return nil
}

func (s *MessageService) broadcast(conversationID uuid.UUID, eventType string, payload interface{}) {
	event := &model.Event{Type: eventType, Payload: payload}
	s.hub.PublishTopic("conversation:"+conversationID.String(), event)

	participantIDs, err := s.convRepo.GetParticipantIDs(conversationID)
	if err != nil {
		log.Printf("⚠️ Participant lookup failed for broadcast: %v", err)
		return
	}
	s.hub.SendToUsers(participantIDs, event)
}

// writeSystemMessage creates an engine-generated system message and updates
// the conversation summary inside the caller's transaction. Used by the
// conversation manager and the call state machine.
func writeSystemMessage(tx *gorm.DB, convRepo repository.ConversationStore, msgRepo repository.MessageStore, conversationID, actorID uuid.UUID, content string) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       actorID,
		Type:           model.MessageTypeSystem,
		Content:        content,
		Status:         model.MessageStatusSent,
		Reactions:      model.ReactionsMap{},
		ReadBy:         model.ReadByMap{},
		CreatedAt:      time.Now(),
	}
	if err := msgRepo.WithTx(tx).Create(msg); err != nil {
		return nil, err
	}
	if err := convRepo.WithTx(tx).SetLastMessage(conversationID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
