package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
)

func TestDedupeIDs(t *testing.T) {
	creator := uuid.New()
	a, b := uuid.New(), uuid.New()

	got := dedupeIDs([]uuid.UUID{a, b, a, creator, b}, creator)
	if len(got) != 2 {
		t.Fatalf("expected 2 unique IDs, got %d: %v", len(got), got)
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("order not preserved: %v", got)
	}
	for _, id := range got {
		if id == creator {
			t.Fatal("excluded ID must not appear")
		}
	}
}

// conversationFixture wires a ConversationService against in-memory stores
type conversationFixture struct {
	svc      *ConversationService
	convs    *fakeConversationStore
	msgs     *fakeMessageStore
	notifier *fakeNotifier
	alice    *model.User
	bob      *model.User
	cara     *model.User
}

func newConversationFixture() *conversationFixture {
	alice := seedUser("Alice")
	bob := seedUser("Bob")
	cara := seedUser("Cara")

	convs := newFakeConversationStore()
	msgs := newFakeMessageStore()
	users := newFakeUserStore(alice, bob, cara)
	notifier := &fakeNotifier{}
	svc := NewConversationService(nil, convs, msgs, users, nil, notifier, &fakeBus{})

	return &conversationFixture{svc: svc, convs: convs, msgs: msgs, notifier: notifier, alice: alice, bob: bob, cara: cara}
}

func TestCreateGroupConversation(t *testing.T) {
	f := newConversationFixture()

	conv, err := f.svc.CreateConversation(context.Background(), f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Team",
		ParticipantIDs: []uuid.UUID{f.bob.ID, f.cara.ID},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if len(conv.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(conv.Participants))
	}
	for i := range conv.Participants {
		p := conv.Participants[i]
		wantRole := model.RoleMember
		if p.UserID == f.alice.ID {
			wantRole = model.RoleAdmin
		}
		if p.Role != wantRole {
			t.Fatalf("participant %s role = %s, want %s", p.UserID, p.Role, wantRole)
		}
	}

	sys := f.msgs.systemMessages(conv.ID)
	if len(sys) != 1 {
		t.Fatalf("system messages = %d, want 1", len(sys))
	}
	if want := "Alice started the conversation"; sys[0].Content != want {
		t.Fatalf("system message = %q, want %q", sys[0].Content, want)
	}
	if conv.LastMessageID == nil || *conv.LastMessageID != sys[0].ID {
		t.Fatal("summary should point at the opening system message")
	}

	// Only the invitees are notified about the new group
	sent := f.notifier.sent()
	if len(sent) != 2 {
		t.Fatalf("notifications = %d, want 2", len(sent))
	}
	notified := map[uuid.UUID]bool{}
	for _, n := range sent {
		if n.notifType != model.NotificationAddedToGroup {
			t.Fatalf("notification type = %s, want added_to_group", n.notifType)
		}
		notified[n.userID] = true
	}
	if notified[f.alice.ID] || !notified[f.bob.ID] || !notified[f.cara.ID] {
		t.Fatalf("wrong notification targets: %v", notified)
	}
}

func TestCreateGroupWithoutInviteesFails(t *testing.T) {
	f := newConversationFixture()

	_, err := f.svc.CreateConversation(context.Background(), f.alice.ID, model.CreateConversationRequest{
		Type: model.ConversationTypeGroup,
		Name: "Team",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	// The creator alone does not count as an invitee
	_, err = f.svc.CreateConversation(context.Background(), f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Team",
		ParticipantIDs: []uuid.UUID{f.alice.ID},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("creator-only error = %v, want ErrValidation", err)
	}
}

func TestCreateGroupWithoutNameFails(t *testing.T) {
	f := newConversationFixture()

	_, err := f.svc.CreateConversation(context.Background(), f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "   ",
		ParticipantIDs: []uuid.UUID{f.bob.ID},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestCreateDirectConversationReusesExisting(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	first, err := f.svc.CreateConversation(ctx, f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeDirect,
		ParticipantIDs: []uuid.UUID{f.bob.ID},
	})
	if err != nil {
		t.Fatalf("first CreateConversation: %v", err)
	}

	before := len(f.msgs.systemMessages(first.ID))
	again, err := f.svc.CreateConversation(ctx, f.bob.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeDirect,
		ParticipantIDs: []uuid.UUID{f.alice.ID},
	})
	if err != nil {
		t.Fatalf("second CreateConversation: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected the existing channel back, got %s instead of %s", again.ID, first.ID)
	}
	if got := len(f.msgs.systemMessages(first.ID)); got != before {
		t.Fatalf("reuse must not write another system message, went %d -> %d", before, got)
	}
}

func TestAddParticipantsAnnouncesAndNotifies(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	conv, err := f.svc.CreateConversation(ctx, f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Team",
		ParticipantIDs: []uuid.UUID{f.bob.ID},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	creationNotes := len(f.notifier.sent())

	updated, err := f.svc.AddParticipants(ctx, conv.ID, f.alice.ID, []uuid.UUID{f.cara.ID})
	if err != nil {
		t.Fatalf("AddParticipants: %v", err)
	}
	if len(updated.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(updated.Participants))
	}

	sys := f.msgs.systemMessages(conv.ID)
	if want := "Alice added Cara"; sys[len(sys)-1].Content != want {
		t.Fatalf("system message = %q, want %q", sys[len(sys)-1].Content, want)
	}
	sent := f.notifier.sent()
	if len(sent) != creationNotes+1 || sent[len(sent)-1].userID != f.cara.ID {
		t.Fatalf("expected one added_to_group notification for Cara, got %v", sent[creationNotes:])
	}

	// Adding an existing member is a no-op
	sysBefore := len(sys)
	if _, err := f.svc.AddParticipants(ctx, conv.ID, f.alice.ID, []uuid.UUID{f.bob.ID}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if got := len(f.msgs.systemMessages(conv.ID)); got != sysBefore {
		t.Fatalf("re-adding a member must not announce, went %d -> %d", sysBefore, got)
	}
}

func TestRemoveParticipantWritesDeparture(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	conv, err := f.svc.CreateConversation(ctx, f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Team",
		ParticipantIDs: []uuid.UUID{f.bob.ID, f.cara.ID},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	// Bob leaves on his own
	if err := f.svc.RemoveParticipant(conv.ID, f.bob.ID, f.bob.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	sys := f.msgs.systemMessages(conv.ID)
	if want := "Bob left the conversation"; sys[len(sys)-1].Content != want {
		t.Fatalf("system message = %q, want %q", sys[len(sys)-1].Content, want)
	}

	// A plain member cannot remove someone else
	if err := f.svc.RemoveParticipant(conv.ID, f.cara.ID, f.alice.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("member removal error = %v, want ErrPermissionDenied", err)
	}

	// The admin can
	if err := f.svc.RemoveParticipant(conv.ID, f.alice.ID, f.cara.ID); err != nil {
		t.Fatalf("admin removal: %v", err)
	}
	sys = f.msgs.systemMessages(conv.ID)
	if want := "Alice removed Cara"; sys[len(sys)-1].Content != want {
		t.Fatalf("system message = %q, want %q", sys[len(sys)-1].Content, want)
	}
	if got, _ := f.convs.GetParticipantIDs(conv.ID); len(got) != 1 {
		t.Fatalf("participants left = %d, want 1", len(got))
	}
}

func TestGetConversationsSortsByActivityWithUnread(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	quiet, err := f.svc.CreateConversation(ctx, f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Quiet",
		ParticipantIDs: []uuid.UUID{f.bob.ID},
	})
	if err != nil {
		t.Fatalf("create quiet: %v", err)
	}
	busy, err := f.svc.CreateConversation(ctx, f.alice.ID, model.CreateConversationRequest{
		Type:           model.ConversationTypeGroup,
		Name:           "Busy",
		ParticipantIDs: []uuid.UUID{f.bob.ID},
	})
	if err != nil {
		t.Fatalf("create busy: %v", err)
	}

	// Bob posts into Busy after both openings
	later := time.Now().Add(time.Minute)
	msg := seedMessage(busy.ID, f.bob, "ping", later)
	if err := f.msgs.Create(msg); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if err := f.convs.SetLastMessage(busy.ID, msg); err != nil {
		t.Fatalf("set last message: %v", err)
	}

	list, err := f.svc.GetConversations(f.alice.ID)
	if err != nil {
		t.Fatalf("GetConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("conversations = %d, want 2", len(list))
	}
	if list[0].ID != busy.ID || list[1].ID != quiet.ID {
		t.Fatalf("order = [%s %s], want busy first", list[0].Name, list[1].Name)
	}
	if list[0].UnreadCount < 1 {
		t.Fatalf("busy unread = %d, want at least 1", list[0].UnreadCount)
	}
}
