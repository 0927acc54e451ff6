package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "huddle:presence:"
	presenceTTL       = 24 * time.Hour

	// How long a typing signal stays alive without a refresh
	typingTimeout = 5 * time.Second

	// presenceBatchLimit caps multi-key presence reads, mirroring the store's
	// batched in-set query limit
	presenceBatchLimit = 10
)

// presenceRedis is the slice of the Redis API the presence substrate uses.
// *redis.Client is the production implementation.
type presenceRedis interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// PresenceService tracks ephemeral per-user connectivity and typing state.
// Redis is authoritative; the users table is mirrored asynchronously for
// durable last-seen queries. Disconnect handling is driven by the hub: the
// status callback fires on graceful and abrupt disconnects alike.
type PresenceService struct {
	rdb      presenceRedis
	userRepo repository.UserStore
	convRepo repository.ConversationStore
	hub      EventBus
	typing   *typingTracker
}

func NewPresenceService(rdb presenceRedis, userRepo repository.UserStore, convRepo repository.ConversationStore, hub EventBus) *PresenceService {
	s := &PresenceService{
		rdb:      rdb,
		userRepo: userRepo,
		convRepo: convRepo,
		hub:      hub,
	}
	s.typing = newTypingTracker(typingTimeout, s.broadcastTyping, s.persistTypingState)
	return s
}

// HandleStatusChange is the hub's connection callback: first connection marks
// the user online, last disconnect marks them offline. Both copies (Redis and
// the durable mirror) are updated, and interested peers are notified.
func (s *PresenceService) HandleStatusChange(userID uuid.UUID, online bool) {
	ctx := context.Background()
	now := time.Now()

	status := model.PresenceOnline
	if !online {
		status = model.PresenceOffline
		// Disconnect clears any live typing state
		s.typing.clearUser(userID)
	}

	record := model.PresenceRecord{UserID: userID, Status: status, LastActive: now}
	data, err := json.Marshal(record)
	if err == nil {
		if err := s.rdb.Set(ctx, presenceKeyPrefix+userID.String(), data, presenceTTL).Err(); err != nil {
			log.Printf("⚠️ Failed to write presence for %s: %v", userID, err)
		}
	}

	if err := s.userRepo.UpdateOnlineStatus(userID, online); err != nil {
		log.Printf("⚠️ Failed to mirror presence for %s: %v", userID, err)
	}

	s.broadcastPresence(userID, status, now)
	log.Printf("👤 User %s is now %s", userID, status)
}

// SetStatus lets a user set an explicit status (away, busy) while connected.
// The durable mirror tracks connectivity: any non-offline status reads as
// online there.
func (s *PresenceService) SetStatus(ctx context.Context, userID uuid.UUID, status model.PresenceStatus) error {
	now := time.Now()
	record := model.PresenceRecord{UserID: userID, Status: status, LastActive: now}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, presenceKeyPrefix+userID.String(), data, presenceTTL).Err(); err != nil {
		return err
	}
	if err := s.userRepo.UpdateOnlineStatus(userID, status != model.PresenceOffline); err != nil {
		log.Printf("⚠️ Failed to mirror presence for %s: %v", userID, err)
	}
	s.broadcastPresence(userID, status, now)
	return nil
}

// GetPresence reads one user's presence record. Absent keys read as offline.
func (s *PresenceService) GetPresence(ctx context.Context, userID uuid.UUID) (*model.PresenceRecord, error) {
	data, err := s.rdb.Get(ctx, presenceKeyPrefix+userID.String()).Result()
	if err == redis.Nil {
		return &model.PresenceRecord{UserID: userID, Status: model.PresenceOffline}, nil
	}
	if err != nil {
		return nil, err
	}
	var record model.PresenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetOnlineUsers filters a set of user IDs down to those currently online,
// reading presence records with MGET in groups of presenceBatchLimit
func (s *PresenceService) GetOnlineUsers(ctx context.Context, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	online := []uuid.UUID{}
	for start := 0; start < len(userIDs); start += presenceBatchLimit {
		end := start + presenceBatchLimit
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch := userIDs[start:end]
		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = presenceKeyPrefix + id.String()
		}
		values, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue // absent key reads as offline
			}
			var record model.PresenceRecord
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				continue
			}
			if record.Status != model.PresenceOffline {
				online = append(online, batch[i])
			}
		}
	}
	return online, nil
}

// StartTyping records that a user is composing in a conversation. Repeated
// signals refresh the expiry; silence for the timeout clears it.
func (s *PresenceService) StartTyping(conversationID, userID uuid.UUID, name string) {
	s.typing.start(conversationID, userID, name)
}

// StopTyping clears a user's typing state immediately (message sent or input
// cleared)
func (s *PresenceService) StopTyping(conversationID, userID uuid.UUID) {
	s.typing.stop(conversationID, userID)
}

// TypingUsers returns who is currently composing in a conversation
func (s *PresenceService) TypingUsers(conversationID uuid.UUID) []model.TypingUser {
	return s.typing.snapshot(conversationID)
}

// SubscribeTyping attaches a handler to a conversation's typing event stream
func (s *PresenceService) SubscribeTyping(ctx context.Context, conversationID uuid.UUID, handler func(model.Event)) (cancel func()) {
	return s.hub.Subscribe(ctx, "typing:"+conversationID.String(), handler)
}

// persistTypingState mirrors the tracker's view into the user's presence
// record so other instances read the same typing sub-state. Fires on start,
// refresh, stop, expiry and disconnect.
func (s *PresenceService) persistTypingState(userID uuid.UUID, state *model.TypingState) {
	ctx := context.Background()
	record, err := s.GetPresence(ctx, userID)
	if err != nil {
		log.Printf("⚠️ Typing state read failed for %s: %v", userID, err)
		return
	}
	record.Typing = state
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, presenceKeyPrefix+userID.String(), data, presenceTTL).Err(); err != nil {
		log.Printf("⚠️ Typing state write failed for %s: %v", userID, err)
	}
}

func (s *PresenceService) broadcastTyping(conversationID uuid.UUID, users []model.TypingUser) {
	eventType := model.EventTyping
	if len(users) == 0 {
		eventType = model.EventStopTyping
	}
	event := &model.Event{Type: eventType, Payload: model.TypingEvent{
		ConversationID: conversationID,
		TypingUsers:    users,
	}}
	s.hub.PublishTopic("typing:"+conversationID.String(), event)
	if ids, err := s.convRepo.GetParticipantIDs(conversationID); err == nil {
		s.hub.SendToUsers(ids, event)
	}
}

func (s *PresenceService) broadcastPresence(userID uuid.UUID, status model.PresenceStatus, at time.Time) {
	event := &model.Event{Type: model.EventPresence, Payload: model.PresenceEvent{
		UserID:   userID,
		Status:   status,
		LastSeen: at,
	}}
	// Fan out to everyone sharing a conversation with the user
	memberships, err := s.convRepo.GetUserMemberships(userID)
	if err != nil {
		log.Printf("⚠️ Presence fan-out lookup failed for %s: %v", userID, err)
		return
	}
	notified := map[uuid.UUID]bool{userID: true}
	for _, m := range memberships {
		ids, err := s.convRepo.GetParticipantIDs(m.ConversationID)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if !notified[id] {
				notified[id] = true
				s.hub.SendToUser(id, event)
			}
		}
	}
}

// typingTracker holds live typing state per conversation with auto-expiry.
// The timeout is injectable so expiry behavior is testable without waiting
// wall-clock seconds.
type typingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	// conversationID -> userID -> state
	byConv   map[uuid.UUID]map[uuid.UUID]*typingEntry
	onChange func(conversationID uuid.UUID, users []model.TypingUser)
	// Fires with the user's new typing sub-state: non-nil on start and
	// refresh, nil once typing stops, expires or the user disconnects
	onUser func(userID uuid.UUID, state *model.TypingState)
}

type typingEntry struct {
	name  string
	timer *time.Timer
}

func newTypingTracker(timeout time.Duration, onChange func(uuid.UUID, []model.TypingUser), onUser func(uuid.UUID, *model.TypingState)) *typingTracker {
	return &typingTracker{
		timeout:  timeout,
		byConv:   make(map[uuid.UUID]map[uuid.UUID]*typingEntry),
		onChange: onChange,
		onUser:   onUser,
	}
}

func (t *typingTracker) notifyUser(userID uuid.UUID, state *model.TypingState) {
	if t.onUser != nil {
		t.onUser(userID, state)
	}
}

func (t *typingTracker) start(conversationID, userID uuid.UUID, name string) {
	t.mu.Lock()
	users, ok := t.byConv[conversationID]
	if !ok {
		users = make(map[uuid.UUID]*typingEntry)
		t.byConv[conversationID] = users
	}
	if entry, ok := users[userID]; ok {
		// Refresh: push the expiry out
		entry.timer.Reset(t.timeout)
		t.mu.Unlock()
		t.notifyUser(userID, &model.TypingState{ConversationID: conversationID, LastTypedAt: time.Now()})
		return
	}
	entry := &typingEntry{name: name}
	entry.timer = time.AfterFunc(t.timeout, func() {
		t.stop(conversationID, userID)
	})
	users[userID] = entry
	snapshot := t.snapshotLocked(conversationID)
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(conversationID, snapshot)
	}
	t.notifyUser(userID, &model.TypingState{ConversationID: conversationID, LastTypedAt: time.Now()})
}

func (t *typingTracker) stop(conversationID, userID uuid.UUID) {
	t.mu.Lock()
	users, ok := t.byConv[conversationID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry, ok := users[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry.timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byConv, conversationID)
	}
	snapshot := t.snapshotLocked(conversationID)
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(conversationID, snapshot)
	}
	t.notifyUser(userID, nil)
}

// clearUser drops the user's typing state in every conversation (disconnect)
func (t *typingTracker) clearUser(userID uuid.UUID) {
	t.mu.Lock()
	affected := []uuid.UUID{}
	for convID, users := range t.byConv {
		if entry, ok := users[userID]; ok {
			entry.timer.Stop()
			delete(users, userID)
			if len(users) == 0 {
				delete(t.byConv, convID)
			}
			affected = append(affected, convID)
		}
	}
	snapshots := make(map[uuid.UUID][]model.TypingUser, len(affected))
	for _, convID := range affected {
		snapshots[convID] = t.snapshotLocked(convID)
	}
	t.mu.Unlock()

	if t.onChange != nil {
		for convID, users := range snapshots {
			t.onChange(convID, users)
		}
	}
	if len(affected) > 0 {
		t.notifyUser(userID, nil)
	}
}

func (t *typingTracker) snapshot(conversationID uuid.UUID) []model.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(conversationID)
}

func (t *typingTracker) snapshotLocked(conversationID uuid.UUID) []model.TypingUser {
	users := t.byConv[conversationID]
	out := make([]model.TypingUser, 0, len(users))
	for id, entry := range users {
		out = append(out, model.TypingUser{UserID: id, Name: entry.name})
	}
	return out
}
