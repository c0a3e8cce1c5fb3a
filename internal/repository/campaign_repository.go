package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	List(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)

	// Dispatch-run writes. Each is a single-row update scoped by primary
	// key; the conditional ones report whether they won.
	GetStatus(ctx context.Context, id int) (string, error)
	MarkSending(ctx context.Context, id int, startedAt time.Time) error
	SetTotalRecipients(ctx context.Context, id, total int) error
	UpdateCounters(ctx context.Context, id, sent, failed int) error
	MarkCompleted(ctx context.Context, id, sent, failed int, completedAt time.Time) (bool, error)
	FinalizeCounters(ctx context.Context, id, sent, failed int, completedAt time.Time) error
	Cancel(ctx context.Context, id int) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	query := `
        INSERT INTO campaigns (assistant_id, segment_id, name, message_template, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		c.AssistantID, c.SegmentID, c.Name, c.MessageTemplate, c.Status, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `
        SELECT id, assistant_id, segment_id, name, message_template, status,
               total_recipients, sent_count, failed_count,
               started_at, completed_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.AssistantID, &c.SegmentID, &c.Name, &c.MessageTemplate, &c.Status,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) List(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, assistant_id, segment_id, name, message_template, status,
               total_recipients, sent_count, failed_count,
               started_at, completed_at, created_at, updated_at
        FROM campaigns WHERE 1=1
    `
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.AssistantID, &c.SegmentID, &c.Name, &c.MessageTemplate, &c.Status,
			&c.TotalRecipients, &c.SentCount, &c.FailedCount,
			&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	countArgs := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// GetStatus is the dispatcher's per-recipient cancellation probe.
func (r *CampaignRepository) GetStatus(ctx context.Context, id int) (string, error) {
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id=$1`, id).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperrors.NewCampaignNotFound(id)
		}
		return "", err
	}
	return status, nil
}

func (r *CampaignRepository) MarkSending(ctx context.Context, id int, startedAt time.Time) error {
	query := `UPDATE campaigns SET status=$1, started_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, model.CampaignStatusSending, startedAt, id)
	return err
}

func (r *CampaignRepository) SetTotalRecipients(ctx context.Context, id, total int) error {
	query := `UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, total, id)
	return err
}

func (r *CampaignRepository) UpdateCounters(ctx context.Context, id, sent, failed int) error {
	query := `UPDATE campaigns SET sent_count=$1, failed_count=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, sent, failed, id)
	return err
}

// MarkCompleted ends the run, but only if the campaign is still in sending.
// Returns false when an external actor moved it elsewhere first.
func (r *CampaignRepository) MarkCompleted(ctx context.Context, id, sent, failed int, completedAt time.Time) (bool, error) {
	query := `
        UPDATE campaigns
        SET status=$1, sent_count=$2, failed_count=$3, completed_at=$4, updated_at=NOW()
        WHERE id=$5 AND status=$6
    `
	res, err := r.DB.ExecContext(ctx, query,
		model.CampaignStatusCompleted, sent, failed, completedAt, id, model.CampaignStatusSending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FinalizeCounters records the final tallies and completion time without
// touching status. Used when the run ended through cancellation.
func (r *CampaignRepository) FinalizeCounters(ctx context.Context, id, sent, failed int, completedAt time.Time) error {
	query := `
        UPDATE campaigns
        SET sent_count=$1, failed_count=$2, completed_at=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.ExecContext(ctx, query, sent, failed, completedAt, id)
	return err
}

// Cancel flips a pending or sending campaign to cancelled. A pending one
// may already have a dispatch job in flight; the dispatcher's status gate
// refuses it. A sending one is observed on the next status probe.
func (r *CampaignRepository) Cancel(ctx context.Context, id int) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status IN ($3, $4)`
	res, err := r.DB.ExecContext(ctx, query,
		model.CampaignStatusCancelled, id, model.CampaignStatusPending, model.CampaignStatusSending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
