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

// CallService coordinates the multi-party call state machine. It handles the
// signaling lifecycle only; media negotiation (offers, answers, ICE) passes
// through the hub untouched. Every lifecycle transition drops a system message
// into the conversation so the timeline records the call's history.
type CallService struct {
	db       *gorm.DB
	callRepo repository.CallStore
	convRepo repository.ConversationStore
	msgRepo  repository.MessageStore
	userRepo repository.UserStore
	notifier Notifier
	hub      EventBus
}

func NewCallService(
	db *gorm.DB,
	callRepo repository.CallStore,
	convRepo repository.ConversationStore,
	msgRepo repository.MessageStore,
	userRepo repository.UserStore,
	notifier Notifier,
	hub EventBus,
) *CallService {
	return &CallService{
		db:       db,
		callRepo: callRepo,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		notifier: notifier,
		hub:      hub,
	}
}

// FormatCallDuration renders whole seconds as "Xs", "Xm Ys" or "Xh Ym Zs"
func FormatCallDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

// StartCall opens a ringing call: the initiator joins immediately, everyone
// else is invited. A conversation carries at most one live call; starting
// again while one rings or runs hands the caller that call back when they
// already belong to it, and fails otherwise.
func (s *CallService) StartCall(ctx context.Context, initiatorID uuid.UUID, req model.StartCallRequest) (*model.ChatCall, error) {
	isParticipant, err := s.convRepo.IsParticipant(req.ConversationID, initiatorID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", initiatorID, apperr.ErrPermissionDenied)
	}

	if active, err := s.callRepo.FindActiveByConversation(req.ConversationID); err == nil {
		if active.Participant(initiatorID) != nil {
			return active, nil
		}
		return nil, fmt.Errorf("conversation already has an active call: %w", apperr.ErrInvalidState)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	memberIDs, err := s.convRepo.GetParticipantIDs(req.ConversationID)
	if err != nil {
		return nil, err
	}

	initiator, err := s.userRepo.FindByID(initiatorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	call := &model.ChatCall{
		ID:             uuid.New(),
		ConversationID: req.ConversationID,
		InitiatedBy:    initiatorID,
		Type:           req.Type,
		Status:         model.CallStatusRinging,
		StartedAt:      now,
	}
	for _, id := range memberIDs {
		p := model.CallParticipant{CallID: call.ID, UserID: id, Status: model.CallParticipantInvited}
		if id == initiatorID {
			p.Status = model.CallParticipantJoined
			t := now
			p.JoinedAt = &t
		}
		call.Participants = append(call.Participants, p)
	}

	verb := "voice"
	if call.Type == model.CallTypeVideo {
		verb = "video"
	}
	started := fmt.Sprintf("%s started a %s call", initiator.Name, verb)

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.callRepo.WithTx(tx).Create(call); err != nil {
			return err
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, req.ConversationID, initiatorID, started)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start call: %w", err)
	}

	s.broadcastCall(call)
	s.notifier.NotifyMany(ctx, memberIDs, initiatorID, req.ConversationID, nil,
		model.NotificationCall, started)

	return call, nil
}

// JoinCall moves a participant to joined. The first join after the
// initiator's flips the call from ringing to ongoing. Joining an ended call
// fails; previously declined or left users may rejoin while the call lives.
func (s *CallService) JoinCall(callID, userID uuid.UUID) (*model.ChatCall, error) {
	call, err := s.loadCall(callID)
	if err != nil {
		return nil, err
	}
	if !call.IsActive() {
		return nil, fmt.Errorf("call has ended: %w", apperr.ErrInvalidState)
	}
	p := call.Participant(userID)
	if p == nil {
		return nil, fmt.Errorf("user %s was not invited: %w", userID, apperr.ErrPermissionDenied)
	}
	if p.Status == model.CallParticipantJoined {
		return call, nil
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = inTx(s.db, func(tx *gorm.DB) error {
		txCalls := s.callRepo.WithTx(tx)
		if err := txCalls.UpdateParticipant(callID, userID, map[string]interface{}{
			"status":    model.CallParticipantJoined,
			"joined_at": now,
			"left_at":   nil,
		}); err != nil {
			return err
		}
		if call.Status == model.CallStatusRinging {
			if err := txCalls.Update(callID, map[string]interface{}{
				"status": model.CallStatusOngoing,
			}); err != nil {
				return err
			}
		}
		if userID == call.InitiatedBy {
			return nil
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, call.ConversationID, userID,
			fmt.Sprintf("%s joined the call", user.Name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join call: %w", err)
	}

	updated, err := s.callRepo.FindByID(callID)
	if err != nil {
		return nil, err
	}
	s.broadcastCall(updated)
	return updated, nil
}

// DeclineCall marks an invitee declined. When every invitee has declined the
// call ends as missed.
func (s *CallService) DeclineCall(declinerID, callID uuid.UUID) (*model.ChatCall, error) {
	call, err := s.loadCall(callID)
	if err != nil {
		return nil, err
	}
	if !call.IsActive() {
		return nil, fmt.Errorf("call has ended: %w", apperr.ErrInvalidState)
	}
	p := call.Participant(declinerID)
	if p == nil {
		return nil, fmt.Errorf("user %s was not invited: %w", declinerID, apperr.ErrPermissionDenied)
	}
	if p.Status == model.CallParticipantJoined {
		return nil, fmt.Errorf("joined participants leave, not decline: %w", apperr.ErrInvalidState)
	}

	decliner, err := s.userRepo.FindByID(declinerID)
	if err != nil {
		return nil, err
	}

	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.callRepo.WithTx(tx).UpdateParticipant(callID, declinerID, map[string]interface{}{
			"status": model.CallParticipantDeclined,
		}); err != nil {
			return err
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, call.ConversationID, declinerID,
			fmt.Sprintf("%s declined the call", decliner.Name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decline call: %w", err)
	}

	updated, err := s.callRepo.FindByID(callID)
	if err != nil {
		return nil, err
	}

	if updated.AllInviteesDeclined() {
		return s.finishCall(updated, true, "")
	}
	s.broadcastCall(updated)
	return updated, nil
}

// LeaveCall marks a joined participant as left. The call keeps running while
// anyone remains joined; once the last joined participant leaves it ends.
func (s *CallService) LeaveCall(leaverID, callID uuid.UUID) (*model.ChatCall, error) {
	call, err := s.loadCall(callID)
	if err != nil {
		return nil, err
	}
	if !call.IsActive() {
		return nil, fmt.Errorf("call has ended: %w", apperr.ErrInvalidState)
	}
	p := call.Participant(leaverID)
	if p == nil || p.Status != model.CallParticipantJoined {
		return nil, fmt.Errorf("user %s is not in the call: %w", leaverID, apperr.ErrInvalidState)
	}

	leaver, err := s.userRepo.FindByID(leaverID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = inTx(s.db, func(tx *gorm.DB) error {
		if err := s.callRepo.WithTx(tx).UpdateParticipant(callID, leaverID, map[string]interface{}{
			"status":  model.CallParticipantLeft,
			"left_at": now,
		}); err != nil {
			return err
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, call.ConversationID, leaverID,
			fmt.Sprintf("%s left the call", leaver.Name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to leave call: %w", err)
	}

	updated, err := s.callRepo.FindByID(callID)
	if err != nil {
		return nil, err
	}

	if updated.JoinedCount() == 0 {
		return s.finishCall(updated, false, "")
	}
	s.broadcastCall(updated)
	return updated, nil
}

// EndCall terminates a call for everyone. Only the initiator or a
// conversation admin may force the end.
func (s *CallService) EndCall(enderID, callID uuid.UUID) (*model.ChatCall, error) {
	call, err := s.loadCall(callID)
	if err != nil {
		return nil, err
	}
	if !call.IsActive() {
		return call, nil // already ended, idempotent
	}
	if enderID != call.InitiatedBy {
		member, err := s.convRepo.GetParticipant(call.ConversationID, enderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("only the initiator or an admin can end the call: %w", apperr.ErrPermissionDenied)
			}
			return nil, err
		}
		if member.Role != model.RoleAdmin {
			return nil, fmt.Errorf("only the initiator or an admin can end the call: %w", apperr.ErrPermissionDenied)
		}
	}
	ender, err := s.userRepo.FindByID(enderID)
	if err != nil {
		return nil, err
	}
	return s.finishCall(call, false, ender.Name)
}

// GetActiveCall returns the conversation's live call, if any
func (s *CallService) GetActiveCall(conversationID, userID uuid.UUID) (*model.ChatCall, error) {
	isParticipant, err := s.convRepo.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, apperr.ErrPermissionDenied)
	}
	call, err := s.callRepo.FindActiveByConversation(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no active call: %w", apperr.ErrNotFound)
		}
		return nil, err
	}
	return call, nil
}

// RelaySignal passes WebRTC negotiation payloads between call peers without
// inspecting them
func (s *CallService) RelaySignal(senderID, targetID uuid.UUID, eventType string, payload interface{}) {
	s.hub.SendToUser(targetID, &model.Event{Type: eventType, Payload: map[string]interface{}{
		"from":   senderID,
		"signal": payload,
	}})
}

// Subscribe attaches a handler to a call's signaling event stream
func (s *CallService) Subscribe(ctx context.Context, callID uuid.UUID, handler func(model.Event)) (cancel func()) {
	return s.hub.Subscribe(ctx, "call:"+callID.String(), handler)
}

// finishCall transitions the call to ended, writes the outcome system message
// and persists everything in one batch. A missed call (never answered) reads
// "Missed call"; an answered one carries the formatted duration, prefixed by
// the ender's name when someone explicitly ended it.
func (s *CallService) finishCall(call *model.ChatCall, missed bool, endedBy string) (*model.ChatCall, error) {
	now := time.Now()
	wasRinging := call.Status == model.CallStatusRinging
	call.End(now)

	content := fmt.Sprintf("Call ended · %s", FormatCallDuration(call.Duration))
	if endedBy != "" {
		content = fmt.Sprintf("%s ended the call · %s", endedBy, FormatCallDuration(call.Duration))
	}
	if missed || wasRinging {
		content = "Missed call"
	}

	err := inTx(s.db, func(tx *gorm.DB) error {
		txCalls := s.callRepo.WithTx(tx)
		if err := txCalls.Update(call.ID, map[string]interface{}{
			"status":   call.Status,
			"ended_at": call.EndedAt,
			"duration": call.Duration,
		}); err != nil {
			return err
		}
		if err := txCalls.SaveParticipants(call); err != nil {
			return err
		}
		_, err := writeSystemMessage(tx, s.convRepo, s.msgRepo, call.ConversationID, call.InitiatedBy, content)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to end call: %w", err)
	}

	s.broadcastCall(call)
	return call, nil
}

func (s *CallService) loadCall(callID uuid.UUID) (*model.ChatCall, error) {
	call, err := s.callRepo.FindByID(callID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("call %s: %w", callID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return call, nil
}

func (s *CallService) broadcastCall(call *model.ChatCall) {
	event := &model.Event{Type: model.EventCall, Payload: call}
	s.hub.PublishTopic("call:"+call.ID.String(), event)
	s.hub.PublishTopic("conversation:"+call.ConversationID.String(), event)

	ids := make([]uuid.UUID, 0, len(call.Participants))
	for i := range call.Participants {
		ids = append(ids, call.Participants[i].UserID)
	}
	s.hub.SendToUsers(ids, event)
}
