package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// EventBus is the realtime delivery surface the services publish through.
// *realtime.Hub is the production implementation.
type EventBus interface {
	SendToUser(userID uuid.UUID, event *model.Event)
	SendToUsers(userIDs []uuid.UUID, event *model.Event)
	PublishTopic(topic string, event *model.Event)
	Subscribe(ctx context.Context, topic string, handler func(model.Event)) (cancel func())
}

// Notifier is the fan-out contract the mutating services depend on.
// *NotificationService is the production implementation.
type Notifier interface {
	Notify(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID, notifType model.NotificationType, content string)
	NotifyMany(ctx context.Context, userIDs []uuid.UUID, actorID, conversationID uuid.UUID, messageID *uuid.UUID, notifType model.NotificationType, content string)
}

// inTx runs fn inside a database transaction when a handle is present. With no
// handle the configured stores carry the writes directly.
func inTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.Transaction(fn)
}
