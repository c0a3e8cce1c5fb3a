package model

import "time"

// Campaign statuses. pending → sending → {completed, cancelled}. Cancelled
// is written by the cancel endpoint, or by the dispatcher itself when its
// context is cancelled mid-run.
const (
	CampaignStatusPending   = "pending"
	CampaignStatusSending   = "sending"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

type Campaign struct {
	ID              int        `db:"id" json:"id"`
	AssistantID     int        `db:"assistant_id" json:"assistant_id"`
	SegmentID       *int       `db:"segment_id" json:"segment_id,omitempty"`
	Name            string     `db:"name" json:"name"`
	MessageTemplate string     `db:"message_template" json:"message_template"`
	Status          string     `db:"status" json:"status"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SentCount       int        `db:"sent_count" json:"sent_count"`
	FailedCount     int        `db:"failed_count" json:"failed_count"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
