package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttachmentType defines the type of attachment
type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeVideo AttachmentType = "video"
	AttachmentTypeAudio AttachmentType = "audio"
	AttachmentTypeFile  AttachmentType = "file"
)

// MessageAttachment represents a file attached to a message. Voice notes are
// audio attachments carrying a duration and a waveform.
type MessageAttachment struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageID uuid.UUID      `json:"message_id" gorm:"type:uuid;index;not null"`
	Type      AttachmentType `json:"type" gorm:"type:varchar(20);not null"`
	URL       string         `json:"url" gorm:"size:1000;not null"`
	Name      string         `json:"name" gorm:"size:255"`
	Size      int64          `json:"size"`
	MimeType  string         `json:"mime_type" gorm:"size:100"`
	Duration  float64        `json:"duration,omitempty"` // audio/video (seconds)
	Waveform  Waveform       `json:"waveform,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Message Message `json:"-" gorm:"foreignKey:MessageID"`
}

// UploadResponse is returned after a successful file upload
type UploadResponse struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}
