package model

import "time"

// Delivery log statuses. A row is written once as queued and mutated at
// most once to sent or failed, never deleted.
const (
	DeliveryStatusQueued = "queued"
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryLog is the per-recipient ledger entry of one campaign run.
type DeliveryLog struct {
	ID             string     `db:"id" json:"id"`
	CampaignID     int        `db:"campaign_id" json:"campaign_id"`
	RecipientPhone string     `db:"recipient_phone" json:"recipient_phone"`
	Status         string     `db:"status" json:"status"`
	ErrorMessage   string     `db:"error_message,omitempty" json:"error_message,omitempty"`
	SentAt         *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
