package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONB column types for the denormalized maps the messaging engine keeps on
// its documents. All of them marshal to Postgres jsonb.

// UUIDList is a jsonb array of user IDs (mentions, deleted_for_users).
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		l = UUIDList{}
	}
	return json.Marshal(l)
}

func (l *UUIDList) Scan(value interface{}) error {
	return scanJSONB(value, l)
}

// Contains reports whether id is in the list.
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// ReactionsMap maps an emoji key to the set of user IDs who reacted with it.
type ReactionsMap map[string]UUIDList

func (m ReactionsMap) Value() (driver.Value, error) {
	if m == nil {
		m = ReactionsMap{}
	}
	return json.Marshal(m)
}

func (m *ReactionsMap) Scan(value interface{}) error {
	return scanJSONB(value, m)
}

// Add unions userID into the emoji's set. Returns false if already present.
func (m ReactionsMap) Add(emoji string, userID uuid.UUID) bool {
	if m[emoji].Contains(userID) {
		return false
	}
	m[emoji] = append(m[emoji], userID)
	return true
}

// Remove deletes userID from the emoji's set, dropping the key when empty.
func (m ReactionsMap) Remove(emoji string, userID uuid.UUID) {
	users := m[emoji]
	for i, v := range users {
		if v == userID {
			users = append(users[:i], users[i+1:]...)
			break
		}
	}
	if len(users) == 0 {
		delete(m, emoji)
		return
	}
	m[emoji] = users
}

// ReadByMap maps a user ID (string form) to the time they read the message.
type ReadByMap map[string]time.Time

func (m ReadByMap) Value() (driver.Value, error) {
	if m == nil {
		m = ReadByMap{}
	}
	return json.Marshal(m)
}

func (m *ReadByMap) Scan(value interface{}) error {
	return scanJSONB(value, m)
}

// Waveform holds normalized amplitude samples for a voice note.
type Waveform []float64

func (w Waveform) Value() (driver.Value, error) {
	if w == nil {
		w = Waveform{}
	}
	return json.Marshal(w)
}

func (w *Waveform) Scan(value interface{}) error {
	return scanJSONB(value, w)
}

func scanJSONB(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
