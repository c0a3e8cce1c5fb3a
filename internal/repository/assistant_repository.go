package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/model"
)

type AssistantRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Assistant, error)
	// ActivateSession stores the reconciled session marker and flips the
	// assistant active. Only the session controller calls this, and only
	// on a ready answer from the gateway.
	ActivateSession(ctx context.Context, id int, sessionState json.RawMessage) error
	// ClearSession drops the session marker and deactivates the assistant.
	ClearSession(ctx context.Context, id int) error
}

type AssistantRepository struct {
	DB *sql.DB
}

func (r *AssistantRepository) GetByID(ctx context.Context, id int) (*model.Assistant, error) {
	query := `
        SELECT id, name, phone_number, session_state, is_active, created_at
        FROM assistants WHERE id=$1
    `
	var a model.Assistant
	var state []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.PhoneNumber, &state, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewAssistantNotFound(id)
		}
		return nil, err
	}
	a.SessionState = state
	return &a, nil
}

func (r *AssistantRepository) ActivateSession(ctx context.Context, id int, sessionState json.RawMessage) error {
	query := `UPDATE assistants SET session_state=$1, is_active=true WHERE id=$2`
	_, err := r.DB.ExecContext(ctx, query, []byte(sessionState), id)
	return err
}

func (r *AssistantRepository) ClearSession(ctx context.Context, id int) error {
	query := `UPDATE assistants SET session_state=NULL, is_active=false WHERE id=$1`
	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

var _ AssistantRepositoryInterface = (*AssistantRepository)(nil)
