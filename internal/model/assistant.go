package model

import (
	"encoding/json"
	"time"
)

// Assistant owns one WhatsApp channel. SessionState mirrors the gateway's
// last reported session as an opaque blob; IsActive is only ever flipped by
// the session controller in response to gateway answers.
type Assistant struct {
	ID           int             `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	PhoneNumber  string          `db:"phone_number" json:"phone_number"`
	SessionState json.RawMessage `db:"session_state" json:"session_state,omitempty"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
