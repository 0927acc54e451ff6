package repository

import (
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// directoryBatchLimit caps multi-id lookups, matching the store contract's
// batched "in-set" query limit.
const directoryBatchLimit = 10

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user (used by the seeder)
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs bulk-fetches users, batching in groups of directoryBatchLimit
func (r *UserRepository) FindByIDs(ids []uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	for start := 0; start < len(ids); start += directoryBatchLimit {
		end := start + directoryBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		var batch []model.User
		if err := r.db.Where("id IN ?", ids[start:end]).Find(&batch).Error; err != nil {
			return nil, err
		}
		users = append(users, batch...)
	}
	return users, nil
}

// SearchUsers searches users by name or email (exact substring match)
func (r *UserRepository) SearchUsers(query string, excludeUserID uuid.UUID, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.
		Where("(name ILIKE ? OR email ILIKE ?) AND id != ?", "%"+query+"%", "%"+query+"%", excludeUserID).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// UpdateOnlineStatus mirrors the ephemeral presence state into the durable
// store (is_online + last_seen)
func (r *UserRepository) UpdateOnlineStatus(id uuid.UUID, isOnline bool) error {
	updates := map[string]interface{}{
		"is_online": isOnline,
	}
	if !isOnline {
		updates["last_seen"] = gorm.Expr("NOW()")
	}
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}

// GetUserDevices returns all registered push devices for a user
func (r *UserRepository) GetUserDevices(userID uuid.UUID) ([]model.UserDevice, error) {
	var devices []model.UserDevice
	err := r.db.Where("user_id = ?", userID).Find(&devices).Error
	return devices, err
}

// RegisterDevice upserts a push token for a user's device
func (r *UserRepository) RegisterDevice(device *model.UserDevice) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_type"}),
	}).Create(device).Error
}
