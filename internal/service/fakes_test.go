package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"gorm.io/gorm"
)

// In-memory store fakes backing the service-level tests. Each fake keeps the
// contract of its GORM counterpart, gorm.ErrRecordNotFound on misses
// included, so the services under test cannot tell the difference.

var (
	_ repository.UserStore         = (*fakeUserStore)(nil)
	_ repository.ConversationStore = (*fakeConversationStore)(nil)
	_ repository.MessageStore      = (*fakeMessageStore)(nil)
	_ repository.ReactionStore     = (*fakeReactionStore)(nil)
	_ repository.CallStore         = (*fakeCallStore)(nil)
	_ Notifier                     = (*fakeNotifier)(nil)
	_ EventBus                     = (*fakeBus)(nil)
)

// ========== users ==========

type fakeUserStore struct {
	users  map[uuid.UUID]*model.User
	online map[uuid.UUID]bool
}

func newFakeUserStore(users ...*model.User) *fakeUserStore {
	f := &fakeUserStore{
		users:  map[uuid.UUID]*model.User{},
		online: map[uuid.UUID]bool{},
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(id uuid.UUID) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) FindByIDs(ids []uuid.UUID) ([]model.User, error) {
	out := []model.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) UpdateOnlineStatus(id uuid.UUID, isOnline bool) error {
	f.online[id] = isOnline
	return nil
}

// ========== conversations ==========

type fakeConversationStore struct {
	convs map[uuid.UUID]*model.Conversation
}

func newFakeConversationStore(convs ...*model.Conversation) *fakeConversationStore {
	f := &fakeConversationStore{convs: map[uuid.UUID]*model.Conversation{}}
	for _, c := range convs {
		f.convs[c.ID] = c
	}
	return f
}

func (f *fakeConversationStore) WithTx(*gorm.DB) repository.ConversationStore { return f }

func (f *fakeConversationStore) Create(conv *model.Conversation) error {
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConversationStore) FindByID(id uuid.UUID) (*model.Conversation, error) {
	if c, ok := f.convs[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationStore) FindByIDs(ids []uuid.UUID) ([]model.Conversation, error) {
	out := []model.Conversation{}
	for _, id := range ids {
		if c, ok := f.convs[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) FindDirectConversation(userID1, userID2 uuid.UUID) (*model.Conversation, error) {
	for _, c := range f.convs {
		if c.Type != model.ConversationTypeDirect {
			continue
		}
		var has1, has2 bool
		for i := range c.Participants {
			if c.Participants[i].UserID == userID1 {
				has1 = true
			}
			if c.Participants[i].UserID == userID2 {
				has2 = true
			}
		}
		if has1 && has2 {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationStore) GetUserMemberships(userID uuid.UUID) ([]model.ConversationParticipant, error) {
	out := []model.ConversationParticipant{}
	for _, c := range f.convs {
		for i := range c.Participants {
			if c.Participants[i].UserID == userID {
				out = append(out, c.Participants[i])
			}
		}
	}
	return out, nil
}

func (f *fakeConversationStore) GetParticipant(conversationID, userID uuid.UUID) (*model.ConversationParticipant, error) {
	c, ok := f.convs[conversationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationStore) GetParticipantIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	c, ok := f.convs[conversationID]
	if !ok {
		return []uuid.UUID{}, nil
	}
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for i := range c.Participants {
		ids = append(ids, c.Participants[i].UserID)
	}
	return ids, nil
}

func (f *fakeConversationStore) IsParticipant(conversationID, userID uuid.UUID) (bool, error) {
	_, err := f.GetParticipant(conversationID, userID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeConversationStore) AddParticipant(p *model.ConversationParticipant) error {
	c, ok := f.convs[p.ConversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Participants = append(c.Participants, *p)
	return nil
}

func (f *fakeConversationStore) RemoveParticipant(conversationID, userID uuid.UUID) error {
	c, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	kept := c.Participants[:0]
	for i := range c.Participants {
		if c.Participants[i].UserID != userID {
			kept = append(kept, c.Participants[i])
		}
	}
	c.Participants = kept
	return nil
}

func (f *fakeConversationStore) UpdateParticipant(conversationID, userID uuid.UUID, updates map[string]interface{}) error {
	p, err := f.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	for col, v := range updates {
		b, ok := v.(bool)
		if !ok {
			continue
		}
		switch col {
		case "muted":
			p.Muted = b
		case "desktop_enabled":
			p.DesktopEnabled = b
		case "mobile_enabled":
			p.MobileEnabled = b
		case "email_enabled":
			p.EmailEnabled = b
		case "pinned":
			p.Pinned = b
		case "archived":
			p.Archived = b
		}
	}
	return nil
}

func (f *fakeConversationStore) UpdateLastRead(conversationID, userID uuid.UUID, at time.Time) error {
	p, err := f.GetParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	t := at
	p.LastRead = &t
	return nil
}

func (f *fakeConversationStore) Update(conversationID uuid.UUID, updates map[string]interface{}) error {
	c, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for col, v := range updates {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch col {
		case "name":
			c.Name = s
		case "description":
			c.Description = s
		case "avatar":
			c.Avatar = s
		}
	}
	return nil
}

func (f *fakeConversationStore) SetLastMessage(conversationID uuid.UUID, msg *model.Message) error {
	c, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.LastMessageCreatedAt != nil && c.LastMessageCreatedAt.After(msg.CreatedAt) {
		return nil
	}
	id := msg.ID
	sender := msg.SenderID
	created := msg.CreatedAt
	c.LastMessageID = &id
	c.LastMessageContent = msg.Content
	c.LastMessageSenderID = &sender
	c.LastMessageType = msg.Type
	c.LastMessageCreatedAt = &created
	return nil
}

func (f *fakeConversationStore) UpdateLastMessageContent(conversationID, messageID uuid.UUID, content string) error {
	c, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if c.LastMessageID != nil && *c.LastMessageID == messageID {
		c.LastMessageContent = content
	}
	return nil
}

func (f *fakeConversationStore) ClearLastMessage(conversationID uuid.UUID) error {
	c, ok := f.convs[conversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.LastMessageID = nil
	c.LastMessageContent = ""
	c.LastMessageSenderID = nil
	c.LastMessageType = ""
	c.LastMessageCreatedAt = nil
	return nil
}

// ========== messages ==========

type fakeMessageStore struct {
	msgs        map[uuid.UUID]*model.Message
	attachments map[uuid.UUID][]model.MessageAttachment
}

func newFakeMessageStore(msgs ...*model.Message) *fakeMessageStore {
	f := &fakeMessageStore{
		msgs:        map[uuid.UUID]*model.Message{},
		attachments: map[uuid.UUID][]model.MessageAttachment{},
	}
	for _, m := range msgs {
		f.msgs[m.ID] = m
	}
	return f
}

func (f *fakeMessageStore) WithTx(*gorm.DB) repository.MessageStore { return f }

func (f *fakeMessageStore) Create(msg *model.Message) error {
	f.msgs[msg.ID] = msg
	return nil
}

func (f *fakeMessageStore) FindByID(id uuid.UUID) (*model.Message, error) {
	if m, ok := f.msgs[id]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageStore) conversationMessages(conversationID uuid.UUID) []*model.Message {
	out := []*model.Message{}
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeMessageStore) GetConversationMessages(conversationID uuid.UUID, before *uuid.UUID, limit int) ([]model.Message, error) {
	all := f.conversationMessages(conversationID)
	if before != nil {
		cursor, ok := f.msgs[*before]
		if !ok {
			return nil, gorm.ErrRecordNotFound
		}
		filtered := all[:0]
		for _, m := range all {
			if m.CreatedAt.Before(cursor.CreatedAt) {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]model.Message, 0, len(all))
	for _, m := range all {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMessageStore) GetLatestMessage(conversationID uuid.UUID, excluding *uuid.UUID) (*model.Message, error) {
	for _, m := range f.conversationMessages(conversationID) {
		if excluding != nil && m.ID == *excluding {
			continue
		}
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageStore) GetUnreadMessages(conversationID, userID uuid.UUID) ([]model.Message, error) {
	out := []model.Message{}
	all := f.conversationMessages(conversationID)
	for i := len(all) - 1; i >= 0; i-- { // oldest first
		m := all[i]
		if m.SenderID == userID {
			continue
		}
		if _, read := m.ReadBy[userID.String()]; read {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMessageStore) CountUnread(conversationID, userID uuid.UUID, lastRead *time.Time) (int64, error) {
	var count int64
	for _, m := range f.conversationMessages(conversationID) {
		if m.SenderID == userID {
			continue
		}
		if lastRead != nil && !m.CreatedAt.After(*lastRead) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeMessageStore) UpdateColumns(id uuid.UUID, updates map[string]interface{}) error {
	m, ok := f.msgs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for col, v := range updates {
		switch col {
		case "content":
			m.Content = v.(string)
		case "edited":
			m.Edited = v.(bool)
		case "edited_at":
			t := v.(time.Time)
			m.EditedAt = &t
		case "status":
			m.Status = v.(model.MessageStatus)
		case "read_by":
			m.ReadBy = v.(model.ReadByMap)
		case "reactions":
			m.Reactions = v.(model.ReactionsMap)
		case "deleted_for_users":
			m.DeletedForUsers = v.(model.UUIDList)
		}
	}
	return nil
}

func (f *fakeMessageStore) CreateAttachment(att *model.MessageAttachment) error {
	f.attachments[att.MessageID] = append(f.attachments[att.MessageID], *att)
	return nil
}

func (f *fakeMessageStore) ClearAttachments(messageID uuid.UUID) error {
	delete(f.attachments, messageID)
	return nil
}

// systemMessages returns the conversation's system messages, oldest first
func (f *fakeMessageStore) systemMessages(conversationID uuid.UUID) []*model.Message {
	all := f.conversationMessages(conversationID)
	out := []*model.Message{}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type == model.MessageTypeSystem {
			out = append(out, all[i])
		}
	}
	return out
}

// ========== reactions ==========

type fakeReactionStore struct {
	rows []model.Reaction
}

func (f *fakeReactionStore) WithTx(*gorm.DB) repository.ReactionStore { return f }

func (f *fakeReactionStore) Create(reaction *model.Reaction) error {
	f.rows = append(f.rows, *reaction)
	return nil
}

func (f *fakeReactionStore) FindTuple(messageID, userID uuid.UUID, emoji string) (*model.Reaction, error) {
	for i := range f.rows {
		r := f.rows[i]
		if r.MessageID == messageID && r.UserID == userID && r.Type == emoji {
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReactionStore) DeleteTuple(messageID, userID uuid.UUID, emoji string) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.MessageID == messageID && r.UserID == userID && r.Type == emoji {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeReactionStore) ListByMessageIDs(messageIDs []uuid.UUID) ([]model.Reaction, error) {
	wanted := map[uuid.UUID]bool{}
	for _, id := range messageIDs {
		wanted[id] = true
	}
	out := []model.Reaction{}
	for _, r := range f.rows {
		if wanted[r.MessageID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// ========== calls ==========

type fakeCallStore struct {
	calls map[uuid.UUID]*model.ChatCall
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{calls: map[uuid.UUID]*model.ChatCall{}}
}

func (f *fakeCallStore) WithTx(*gorm.DB) repository.CallStore { return f }

func (f *fakeCallStore) Create(call *model.ChatCall) error {
	f.calls[call.ID] = call
	return nil
}

func (f *fakeCallStore) FindByID(id uuid.UUID) (*model.ChatCall, error) {
	if c, ok := f.calls[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCallStore) FindActiveByConversation(conversationID uuid.UUID) (*model.ChatCall, error) {
	for _, c := range f.calls {
		if c.ConversationID == conversationID && c.IsActive() {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCallStore) Update(callID uuid.UUID, updates map[string]interface{}) error {
	c, ok := f.calls[callID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			c.Status = v.(model.CallStatus)
		case "ended_at":
			c.EndedAt = v.(*time.Time)
		case "duration":
			c.Duration = v.(int)
		}
	}
	return nil
}

func (f *fakeCallStore) UpdateParticipant(callID, userID uuid.UUID, updates map[string]interface{}) error {
	c, ok := f.calls[callID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p := c.Participant(userID)
	if p == nil {
		return gorm.ErrRecordNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			p.Status = v.(model.CallParticipantStatus)
		case "joined_at":
			t := v.(time.Time)
			p.JoinedAt = &t
		case "left_at":
			if v == nil {
				p.LeftAt = nil
			} else {
				t := v.(time.Time)
				p.LeftAt = &t
			}
		}
	}
	return nil
}

func (f *fakeCallStore) SaveParticipants(call *model.ChatCall) error {
	c, ok := f.calls[call.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Participants = call.Participants
	return nil
}

// ========== fan-out and realtime recorders ==========

type notifierCall struct {
	userID    uuid.UUID
	notifType model.NotificationType
	content   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (f *fakeNotifier) Notify(_ context.Context, userID, _ uuid.UUID, _ *uuid.UUID, notifType model.NotificationType, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{userID: userID, notifType: notifType, content: content})
}

func (f *fakeNotifier) NotifyMany(ctx context.Context, userIDs []uuid.UUID, actorID, conversationID uuid.UUID, messageID *uuid.UUID, notifType model.NotificationType, content string) {
	for _, userID := range userIDs {
		if userID == actorID {
			continue
		}
		f.Notify(ctx, userID, conversationID, messageID, notifType, content)
	}
}

func (f *fakeNotifier) sent() []notifierCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notifierCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeBus struct {
	mu     sync.Mutex
	events []model.Event
}

func (f *fakeBus) SendToUser(_ uuid.UUID, event *model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
}

func (f *fakeBus) SendToUsers(_ []uuid.UUID, event *model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
}

func (f *fakeBus) PublishTopic(_ string, event *model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
}

func (f *fakeBus) Subscribe(_ context.Context, _ string, _ func(model.Event)) (cancel func()) {
	return func() {}
}

// ========== seed helpers ==========

func seedUser(name string) *model.User {
	return &model.User{
		ID:    uuid.New(),
		Name:  name,
		Email: fmt.Sprintf("%s@huddle.local", name),
	}
}

// seedGroup builds a group conversation with the admin and members wired in
func seedGroup(name string, admin *model.User, members ...*model.User) *model.Conversation {
	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.New(),
		Type:      model.ConversationTypeGroup,
		Name:      name,
		CreatedBy: admin.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	conv.Participants = append(conv.Participants, model.ConversationParticipant{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		UserID:         admin.ID,
		Role:           model.RoleAdmin,
		JoinedAt:       now,
		User:           *admin,
	})
	for _, m := range members {
		conv.Participants = append(conv.Participants, model.ConversationParticipant{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			UserID:         m.ID,
			Role:           model.RoleMember,
			JoinedAt:       now,
			User:           *m,
		})
	}
	return conv
}

// seedMessage builds a plain text message at the given instant
func seedMessage(conversationID uuid.UUID, sender *model.User, content string, at time.Time) *model.Message {
	return &model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Type:           model.MessageTypeText,
		Content:        content,
		Status:         model.MessageStatusSent,
		Reactions:      model.ReactionsMap{},
		ReadBy:         model.ReadByMap{},
		CreatedAt:      at,
		Sender:         *sender,
	}
}
