package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallType defines the media type of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// CallStatus defines the lifecycle state of a call
type CallStatus string

const (
	CallStatusRinging CallStatus = "ringing"
	CallStatusOngoing CallStatus = "ongoing"
	CallStatusEnded   CallStatus = "ended"
)

// CallParticipantStatus defines a participant's sub-state within a call
type CallParticipantStatus string

const (
	CallParticipantInvited  CallParticipantStatus = "invited"
	CallParticipantJoined   CallParticipantStatus = "joined"
	CallParticipantDeclined CallParticipantStatus = "declined"
	CallParticipantLeft     CallParticipantStatus = "left"
)

// ChatCall is the signaling record coordinating an audio/video session.
// At most one call per conversation may be in a non-ended status.
type ChatCall struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationID uuid.UUID      `json:"conversation_id" gorm:"type:uuid;index;not null"`
	InitiatedBy    uuid.UUID      `json:"initiated_by" gorm:"type:uuid;not null"`
	Type           CallType       `json:"type" gorm:"type:varchar(10);not null"`
	Status         CallStatus     `json:"status" gorm:"type:varchar(10);default:'ringing'"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	Duration       int            `json:"duration"` // whole seconds, set only at end
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Participants []CallParticipant `json:"participants,omitempty" gorm:"foreignKey:CallID"`
}

// CallParticipant tracks one user's sub-state within a call
type CallParticipant struct {
	ID       uuid.UUID             `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CallID   uuid.UUID             `json:"call_id" gorm:"type:uuid;uniqueIndex:idx_call_participant;not null"`
	UserID   uuid.UUID             `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_call_participant;not null"`
	Status   CallParticipantStatus `json:"status" gorm:"type:varchar(10);default:'invited'"`
	JoinedAt *time.Time            `json:"joined_at,omitempty"`
	LeftAt   *time.Time            `json:"left_at,omitempty"`
}

// Participant returns the participant record for a user, or nil
func (c *ChatCall) Participant(userID uuid.UUID) *CallParticipant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// IsActive reports whether the call is still ringing or ongoing
func (c *ChatCall) IsActive() bool {
	return c.Status == CallStatusRinging || c.Status == CallStatusOngoing
}

// JoinedCount counts participants currently in the joined sub-state
func (c *ChatCall) JoinedCount() int {
	n := 0
	for i := range c.Participants {
		if c.Participants[i].Status == CallParticipantJoined {
			n++
		}
	}
	return n
}

// AllInviteesDeclined reports whether every non-initiator participant declined
func (c *ChatCall) AllInviteesDeclined() bool {
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.UserID == c.InitiatedBy {
			continue
		}
		if p.Status != CallParticipantDeclined {
			return false
		}
	}
	return true
}

// End transitions the call to ended at the given time, forcing any remaining
// joined participants to left and computing the duration in whole seconds.
// A call ended straight from ringing keeps duration 0.
func (c *ChatCall) End(now time.Time) {
	for i := range c.Participants {
		if c.Participants[i].Status == CallParticipantJoined {
			c.Participants[i].Status = CallParticipantLeft
			t := now
			c.Participants[i].LeftAt = &t
		}
	}
	if c.Status == CallStatusOngoing {
		c.Duration = int(now.Sub(c.StartedAt).Seconds())
	}
	c.Status = CallStatusEnded
	c.EndedAt = &now
}
