package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kevinotieno/wablast-backend/internal/model"
)

type DeliveryLogRepositoryInterface interface {
	CreateQueued(ctx context.Context, campaignID int, recipientPhone string) (string, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	ListByCampaign(ctx context.Context, campaignID, offset, limit int) ([]*model.DeliveryLog, error)
	StatsByCampaign(ctx context.Context, campaignID int) (map[string]int, error)
}

type DeliveryLogRepository struct {
	DB *sql.DB
}

// CreateQueued inserts the ledger row for one recipient of one run and
// returns its id. The row starts in queued and is mutated at most once.
func (r *DeliveryLogRepository) CreateQueued(ctx context.Context, campaignID int, recipientPhone string) (string, error) {
	id := uuid.New().String()
	query := `
        INSERT INTO delivery_logs (id, campaign_id, recipient_phone, status, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := r.DB.ExecContext(ctx, query, id, campaignID, recipientPhone, model.DeliveryStatusQueued)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *DeliveryLogRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `UPDATE delivery_logs SET status=$1, sent_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, model.DeliveryStatusSent, sentAt, id)
	return err
}

func (r *DeliveryLogRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `UPDATE delivery_logs SET status=$1, error_message=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, model.DeliveryStatusFailed, errorMessage, id)
	return err
}

func (r *DeliveryLogRepository) ListByCampaign(ctx context.Context, campaignID, offset, limit int) ([]*model.DeliveryLog, error) {
	query := `
        SELECT id, campaign_id, recipient_phone, status, error_message, sent_at, created_at
        FROM delivery_logs
        WHERE campaign_id=$1
        ORDER BY created_at ASC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.DeliveryLog{}
	for rows.Next() {
		l := &model.DeliveryLog{}
		var errMsg sql.NullString
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.RecipientPhone, &l.Status, &errMsg, &l.SentAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.ErrorMessage = errMsg.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *DeliveryLogRepository) StatsByCampaign(ctx context.Context, campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM delivery_logs WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.DeliveryStatusQueued: 0,
		model.DeliveryStatusSent:   0,
		model.DeliveryStatusFailed: 0,
	}
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		total += count
	}
	stats["total"] = total
	return stats, rows.Err()
}

var _ DeliveryLogRepositoryInterface = (*DeliveryLogRepository)(nil)
