package service

import (
	"context"
	"testing"
	"time"

	"github.com/huddleapp/huddle/internal/model"
)

// reactionFixture wires a ReactionService against in-memory stores with one
// message from Alice in a group shared with Bob.
type reactionFixture struct {
	svc      *ReactionService
	reacts   *fakeReactionStore
	msg      *model.Message
	notifier *fakeNotifier
	alice    *model.User
	bob      *model.User
}

func newReactionFixture() *reactionFixture {
	alice := seedUser("Alice")
	bob := seedUser("Bob")
	conv := seedGroup("Standup", alice, bob)
	msg := seedMessage(conv.ID, alice, "Ship it", time.Now())

	reacts := &fakeReactionStore{}
	msgs := newFakeMessageStore(msg)
	convs := newFakeConversationStore(conv)
	users := newFakeUserStore(alice, bob)
	notifier := &fakeNotifier{}
	svc := NewReactionService(nil, convs, msgs, reacts, users, notifier, &fakeBus{})

	return &reactionFixture{svc: svc, reacts: reacts, msg: msg, notifier: notifier, alice: alice, bob: bob}
}

func TestAddReactionIsIdempotent(t *testing.T) {
	f := newReactionFixture()
	ctx := context.Background()

	first, err := f.svc.AddReaction(ctx, f.msg.ID, f.bob.ID, "👍")
	if err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if got := len(first.Reactions["👍"]); got != 1 {
		t.Fatalf("reaction set size = %d, want 1", got)
	}

	// Reacting again with the same emoji succeeds without duplicating
	second, err := f.svc.AddReaction(ctx, f.msg.ID, f.bob.ID, "👍")
	if err != nil {
		t.Fatalf("repeat AddReaction: %v", err)
	}
	if got := len(second.Reactions["👍"]); got != 1 {
		t.Fatalf("reaction set size after repeat = %d, want 1", got)
	}
	if got := len(f.reacts.rows); got != 1 {
		t.Fatalf("ledger rows = %d, want 1", got)
	}
	if got := len(f.notifier.sent()); got != 1 {
		t.Fatalf("notifications = %d, want 1 (repeat must not re-notify)", got)
	}
}

func TestAddReactionDistinctEmojisCoexist(t *testing.T) {
	f := newReactionFixture()
	ctx := context.Background()

	if _, err := f.svc.AddReaction(ctx, f.msg.ID, f.bob.ID, "👍"); err != nil {
		t.Fatalf("first AddReaction: %v", err)
	}
	msg, err := f.svc.AddReaction(ctx, f.msg.ID, f.bob.ID, "🎉")
	if err != nil {
		t.Fatalf("second AddReaction: %v", err)
	}
	if len(msg.Reactions["👍"]) != 1 || len(msg.Reactions["🎉"]) != 1 {
		t.Fatalf("expected both emojis present, got %v", msg.Reactions)
	}
	if got := len(f.reacts.rows); got != 2 {
		t.Fatalf("ledger rows = %d, want 2", got)
	}
}

func TestAddReactionToOwnMessageSkipsNotification(t *testing.T) {
	f := newReactionFixture()

	if _, err := f.svc.AddReaction(context.Background(), f.msg.ID, f.alice.ID, "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if got := len(f.notifier.sent()); got != 0 {
		t.Fatalf("self-reaction must not notify, got %d notifications", got)
	}
}

func TestRemoveReactionAbsentIsNoOp(t *testing.T) {
	f := newReactionFixture()

	msg, err := f.svc.RemoveReaction(f.msg.ID, f.bob.ID, "👍")
	if err != nil {
		t.Fatalf("RemoveReaction on absent reaction: %v", err)
	}
	if len(msg.Reactions) != 0 || len(f.reacts.rows) != 0 {
		t.Fatalf("no-op removal must not change state, got %v / %d rows", msg.Reactions, len(f.reacts.rows))
	}
}

func TestRemoveReactionClearsLedgerAndSummary(t *testing.T) {
	f := newReactionFixture()
	ctx := context.Background()

	if _, err := f.svc.AddReaction(ctx, f.msg.ID, f.bob.ID, "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	msg, err := f.svc.RemoveReaction(f.msg.ID, f.bob.ID, "👍")
	if err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	if _, ok := msg.Reactions["👍"]; ok {
		t.Fatalf("empty reaction set should drop the key, got %v", msg.Reactions)
	}
	if got := len(f.reacts.rows); got != 0 {
		t.Fatalf("ledger rows = %d, want 0", got)
	}
}
