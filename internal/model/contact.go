package model

import "time"

// Contact is one conversation partner of an assistant. The same phone can
// appear under several conversations; audience resolution dedupes by phone.
type Contact struct {
	ID          int       `db:"id" json:"id"`
	AssistantID int       `db:"assistant_id" json:"assistant_id"`
	Phone       string    `db:"phone" json:"phone"`
	Name        string    `db:"name" json:"name"`
	Tags        []string  `db:"tags" json:"tags"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
