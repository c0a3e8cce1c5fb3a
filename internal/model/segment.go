package model

import "time"

// Segment is a reusable audience filter. An empty TagFilter means the
// segment matches every contact of the assistant.
type Segment struct {
	ID          int       `db:"id" json:"id"`
	AssistantID int       `db:"assistant_id" json:"assistant_id"`
	Name        string    `db:"name" json:"name"`
	TagFilter   string    `db:"tag_filter" json:"tag_filter"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
