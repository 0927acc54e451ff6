package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huddleapp/huddle/internal/apperr"
	"github.com/huddleapp/huddle/internal/model"
)

func TestFormatCallDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{59, "59s"},
		{60, "1m 0s"},
		{95, "1m 35s"},
		{3599, "59m 59s"},
		{3600, "1h 0m 0s"},
		{3725, "1h 2m 5s"},
		{7322, "2h 2m 2s"},
	}
	for _, tc := range cases {
		if got := FormatCallDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatCallDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

// callFixture wires a CallService against in-memory stores with a three-way
// group: Alice (admin), Bob and Cara (members).
type callFixture struct {
	svc   *CallService
	calls *fakeCallStore
	msgs  *fakeMessageStore
	conv  *model.Conversation
	alice *model.User
	bob   *model.User
	cara  *model.User
}

func newCallFixture() *callFixture {
	alice := seedUser("Alice")
	bob := seedUser("Bob")
	cara := seedUser("Cara")
	conv := seedGroup("Standup", alice, bob, cara)

	calls := newFakeCallStore()
	msgs := newFakeMessageStore()
	convs := newFakeConversationStore(conv)
	users := newFakeUserStore(alice, bob, cara)
	svc := NewCallService(nil, calls, convs, msgs, users, &fakeNotifier{}, &fakeBus{})

	return &callFixture{svc: svc, calls: calls, msgs: msgs, conv: conv, alice: alice, bob: bob, cara: cara}
}

func (f *callFixture) startCall(t *testing.T) *model.ChatCall {
	t.Helper()
	call, err := f.svc.StartCall(context.Background(), f.alice.ID, model.StartCallRequest{
		ConversationID: f.conv.ID,
		Type:           model.CallTypeAudio,
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	return call
}

func (f *callFixture) lastSystemMessage(t *testing.T) *model.Message {
	t.Helper()
	msgs := f.msgs.systemMessages(f.conv.ID)
	if len(msgs) == 0 {
		t.Fatal("expected at least one system message")
	}
	return msgs[len(msgs)-1]
}

func TestStartCallRepeatReturnsLiveCall(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)

	// The initiator retrying and another invited member starting both resolve
	// to the live call instead of erroring
	again, err := f.svc.StartCall(context.Background(), f.alice.ID, model.StartCallRequest{
		ConversationID: f.conv.ID,
		Type:           model.CallTypeAudio,
	})
	if err != nil {
		t.Fatalf("repeat StartCall by initiator: %v", err)
	}
	if again.ID != call.ID {
		t.Fatalf("expected the live call back, got %s instead of %s", again.ID, call.ID)
	}

	byMember, err := f.svc.StartCall(context.Background(), f.bob.ID, model.StartCallRequest{
		ConversationID: f.conv.ID,
		Type:           model.CallTypeVideo,
	})
	if err != nil {
		t.Fatalf("StartCall by invited member: %v", err)
	}
	if byMember.ID != call.ID {
		t.Fatalf("expected the live call back for invited member, got %s", byMember.ID)
	}
}

func TestStartCallWritesSystemMessage(t *testing.T) {
	f := newCallFixture()
	f.startCall(t)

	msgs := f.msgs.systemMessages(f.conv.ID)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 system message, got %d", len(msgs))
	}
	if want := "Alice started a voice call"; msgs[0].Content != want {
		t.Fatalf("system message = %q, want %q", msgs[0].Content, want)
	}
	if f.conv.LastMessageID == nil || *f.conv.LastMessageID != msgs[0].ID {
		t.Fatal("lastMessage summary should point at the call system message")
	}
}

func TestJoinCallFlipsToOngoingAndAnnounces(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)

	joined, err := f.svc.JoinCall(call.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("JoinCall: %v", err)
	}
	if joined.Status != model.CallStatusOngoing {
		t.Fatalf("status = %s, want ongoing", joined.Status)
	}
	if want := "Bob joined the call"; f.lastSystemMessage(t).Content != want {
		t.Fatalf("system message = %q, want %q", f.lastSystemMessage(t).Content, want)
	}

	// An already-joined participant rejoining is a no-op: no extra message
	before := len(f.msgs.systemMessages(f.conv.ID))
	if _, err := f.svc.JoinCall(call.ID, f.bob.ID); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if got := len(f.msgs.systemMessages(f.conv.ID)); got != before {
		t.Fatalf("rejoin should not announce again, messages went %d -> %d", before, got)
	}
}

func TestDeclineCallAnnouncesPerUser(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)

	updated, err := f.svc.DeclineCall(f.bob.ID, call.ID)
	if err != nil {
		t.Fatalf("DeclineCall: %v", err)
	}
	if updated.Status != model.CallStatusRinging {
		t.Fatalf("one pending invitee left, status = %s, want ringing", updated.Status)
	}
	if want := "Bob declined the call"; f.lastSystemMessage(t).Content != want {
		t.Fatalf("system message = %q, want %q", f.lastSystemMessage(t).Content, want)
	}
}

func TestAllInviteesDeclinedEndsAsMissed(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)

	if _, err := f.svc.DeclineCall(f.bob.ID, call.ID); err != nil {
		t.Fatalf("first decline: %v", err)
	}
	ended, err := f.svc.DeclineCall(f.cara.ID, call.ID)
	if err != nil {
		t.Fatalf("second decline: %v", err)
	}
	if ended.Status != model.CallStatusEnded {
		t.Fatalf("status = %s, want ended", ended.Status)
	}
	if ended.Duration != 0 {
		t.Fatalf("missed call duration = %d, want 0", ended.Duration)
	}
	if want := "Missed call"; f.lastSystemMessage(t).Content != want {
		t.Fatalf("system message = %q, want %q", f.lastSystemMessage(t).Content, want)
	}
}

func TestLeaveCallRunsUntilLastParticipantLeaves(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)

	if _, err := f.svc.JoinCall(call.ID, f.bob.ID); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if _, err := f.svc.JoinCall(call.ID, f.cara.ID); err != nil {
		t.Fatalf("cara join: %v", err)
	}

	// Two of three leave; one joined participant keeps the call alive
	after, err := f.svc.LeaveCall(f.bob.ID, call.ID)
	if err != nil {
		t.Fatalf("bob leave: %v", err)
	}
	if after.Status != model.CallStatusOngoing || after.JoinedCount() != 2 {
		t.Fatalf("status=%s joined=%d, want ongoing/2", after.Status, after.JoinedCount())
	}
	if want := "Bob left the call"; f.lastSystemMessage(t).Content != want {
		t.Fatalf("system message = %q, want %q", f.lastSystemMessage(t).Content, want)
	}

	after, err = f.svc.LeaveCall(f.cara.ID, call.ID)
	if err != nil {
		t.Fatalf("cara leave: %v", err)
	}
	if after.Status != model.CallStatusOngoing || after.JoinedCount() != 1 {
		t.Fatalf("status=%s joined=%d, want ongoing/1", after.Status, after.JoinedCount())
	}

	// The last joined participant leaving ends the call
	after, err = f.svc.LeaveCall(f.alice.ID, call.ID)
	if err != nil {
		t.Fatalf("alice leave: %v", err)
	}
	if after.Status != model.CallStatusEnded {
		t.Fatalf("status = %s, want ended", after.Status)
	}
	if !strings.HasPrefix(f.lastSystemMessage(t).Content, "Call ended · ") {
		t.Fatalf("system message = %q, want a call-ended summary", f.lastSystemMessage(t).Content)
	}
}

func TestEndCallRestrictedToInitiatorOrAdmin(t *testing.T) {
	f := newCallFixture()
	call := f.startCall(t)
	if _, err := f.svc.JoinCall(call.ID, f.bob.ID); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	// Bob is a plain member and not the initiator
	if _, err := f.svc.EndCall(f.bob.ID, call.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("member EndCall error = %v, want ErrPermissionDenied", err)
	}
	if got, _ := f.calls.FindByID(call.ID); !got.IsActive() {
		t.Fatal("denied EndCall must leave the call running")
	}

	ended, err := f.svc.EndCall(f.alice.ID, call.ID)
	if err != nil {
		t.Fatalf("initiator EndCall: %v", err)
	}
	if ended.Status != model.CallStatusEnded {
		t.Fatalf("status = %s, want ended", ended.Status)
	}
	if !strings.HasPrefix(f.lastSystemMessage(t).Content, "Alice ended the call · ") {
		t.Fatalf("system message = %q, want the ender named", f.lastSystemMessage(t).Content)
	}

	// Ending again stays idempotent
	if again, err := f.svc.EndCall(f.alice.ID, call.ID); err != nil || again.Status != model.CallStatusEnded {
		t.Fatalf("repeat EndCall = (%v, %v), want idempotent success", again, err)
	}
}

func TestEndCallAllowsConversationAdmin(t *testing.T) {
	f := newCallFixture()
	// Promote Cara to admin; Bob initiates
	for i := range f.conv.Participants {
		if f.conv.Participants[i].UserID == f.cara.ID {
			f.conv.Participants[i].Role = model.RoleAdmin
		}
	}
	call, err := f.svc.StartCall(context.Background(), f.bob.ID, model.StartCallRequest{
		ConversationID: f.conv.ID,
		Type:           model.CallTypeAudio,
	})
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}

	ended, err := f.svc.EndCall(f.cara.ID, call.ID)
	if err != nil {
		t.Fatalf("admin EndCall: %v", err)
	}
	if ended.Status != model.CallStatusEnded {
		t.Fatalf("status = %s, want ended", ended.Status)
	}
}
