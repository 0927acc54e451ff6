package repository

import (
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
)

// NotificationRepository handles database operations for ChatNotification
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification
func (r *NotificationRepository) Create(n *model.ChatNotification) error {
	return r.db.Create(n).Error
}

// FindByID finds a notification by ID
func (r *NotificationRepository) FindByID(id uuid.UUID) (*model.ChatNotification, error) {
	var n model.ChatNotification
	if err := r.db.Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForUser returns notifications newest-first with offset pagination
func (r *NotificationRepository) ListForUser(userID uuid.UUID, limit, offset int) ([]model.ChatNotification, error) {
	notifications := []model.ChatNotification{}
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

// MarkRead flags one notification as read
func (r *NotificationRepository) MarkRead(id uuid.UUID) error {
	return r.db.Model(&model.ChatNotification{}).
		Where("id = ?", id).
		Update("read", true).Error
}

// MarkAllRead flags every unread notification of a user as read
func (r *NotificationRepository) MarkAllRead(userID uuid.UUID) error {
	return r.db.Model(&model.ChatNotification{}).
		Where("user_id = ? AND read = false", userID).
		Update("read", true).Error
}

// Delete soft-deletes a notification
func (r *NotificationRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&model.ChatNotification{}, "id = ?", id).Error
}

// CountUnread counts a user's unread notifications
func (r *NotificationRepository) CountUnread(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.ChatNotification{}).
		Where("user_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}
