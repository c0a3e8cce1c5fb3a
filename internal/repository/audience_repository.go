package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/kevinotieno/wablast-backend/internal/model"
)

type AudienceRepositoryInterface interface {
	// ListContacts returns every conversation partner of the assistant in
	// insertion order. Duplicated phones are returned as-is; the resolver
	// owns deduplication.
	ListContacts(ctx context.Context, assistantID int) ([]model.Contact, error)
	GetSegment(ctx context.Context, id int) (*model.Segment, error)
}

type AudienceRepository struct {
	DB *sql.DB
}

func (r *AudienceRepository) ListContacts(ctx context.Context, assistantID int) ([]model.Contact, error) {
	query := `
        SELECT id, assistant_id, phone, name, tags, created_at
        FROM contacts
        WHERE assistant_id=$1
        ORDER BY id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, assistantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		var tags pq.StringArray
		if err := rows.Scan(&c.ID, &c.AssistantID, &c.Phone, &c.Name, &tags, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Tags = []string(tags)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *AudienceRepository) GetSegment(ctx context.Context, id int) (*model.Segment, error) {
	query := `SELECT id, assistant_id, name, tag_filter, created_at FROM segments WHERE id=$1`
	var s model.Segment
	var filter sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.AssistantID, &s.Name, &filter, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.TagFilter = filter.String
	return &s, nil
}

var _ AudienceRepositoryInterface = (*AudienceRepository)(nil)
