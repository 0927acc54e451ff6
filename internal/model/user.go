package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User mirrors the identity directory's view of a user. Credentials are
// managed by the external identity service; this service only reads profile
// data and maintains the durable presence columns.
type User struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	Email       string         `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Password    string         `json:"-" gorm:"size:255"` // written by the identity service, never read here
	Avatar      string         `json:"avatar" gorm:"size:500;default:''"`
	Role        string         `json:"role" gorm:"size:20;default:'member'"`
	PushEnabled bool           `json:"push_enabled" gorm:"default:true"`
	IsOnline    bool           `json:"is_online" gorm:"default:false"`
	LastSeen    *time.Time     `json:"last_seen"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserSummary is the denormalized sender/participant profile embedded in
// API responses.
type UserSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar"`
	Role   string    `json:"role"`
}

// Summary converts a User to its embedded profile form
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}

// UserDevice stores a push token for one of a user's devices
type UserDevice struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	FCMToken   string    `json:"fcm_token" gorm:"size:500;uniqueIndex;not null"`
	DeviceType string    `json:"device_type" gorm:"size:20"` // web, android, ios
	CreatedAt  time.Time `json:"created_at"`
}
