package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/model"
	"github.com/kevinotieno/wablast-backend/internal/repository"
)

func campaignColumns() []string {
	return []string{
		"id", "assistant_id", "segment_id", "name", "message_template", "status",
		"total_recipients", "sent_count", "failed_count",
		"started_at", "completed_at", "created_at", "updated_at",
	}
}

func TestCampaignGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, assistant_id, segment_id").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(campaignColumns()).
			AddRow(1, 7, nil, "flash sale", "Hi {name}!", "pending", 0, 0, 0, nil, nil, now, nil))

	repo := &repository.CampaignRepository{DB: db}
	c, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, c.ID)
	assert.Equal(t, 7, c.AssistantID)
	assert.Nil(t, c.SegmentID)
	assert.Equal(t, model.CampaignStatusPending, c.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, assistant_id, segment_id").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(campaignColumns()))

	repo := &repository.CampaignRepository{DB: db}
	_, err = repo.GetByID(context.Background(), 42)

	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 42, notFound.ID)
}

func TestCampaignGetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status FROM campaigns").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("sending"))

	repo := &repository.CampaignRepository{DB: db}
	status, err := repo.GetStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusSending, status)
}

func TestCampaignMarkCompletedConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.CampaignRepository{DB: db}
	now := time.Now()

	// Still sending: the dispatcher wins the terminal write.
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("completed", 3, 0, now, 1, "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.MarkCompleted(context.Background(), 1, 3, 0, now)
	require.NoError(t, err)
	assert.True(t, won)

	// Externally flipped: zero rows match, nothing overwritten.
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("completed", 2, 1, now, 1, "sending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.MarkCompleted(context.Background(), 1, 2, 1, now)
	require.NoError(t, err)
	assert.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignCancelConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.CampaignRepository{DB: db}

	// Cancel applies from pending or sending, never from a terminal status.
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("cancelled", 1, "pending", "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.Cancel(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, won)

	mock.ExpectExec("UPDATE campaigns").
		WithArgs("cancelled", 1, "pending", "sending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err = repo.Cancel(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestCampaignUpdateCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE campaigns SET sent_count").
		WithArgs(2, 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &repository.CampaignRepository{DB: db}
	require.NoError(t, repo.UpdateCounters(context.Background(), 1, 2, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT id, assistant_id, segment_id").
		WithArgs("sending", 10, 0).
		WillReturnRows(sqlmock.NewRows(campaignColumns()).
			AddRow(2, 7, nil, "b", "t", "sending", 5, 2, 0, &now, nil, now, &now).
			AddRow(1, 7, nil, "a", "t", "sending", 3, 3, 0, &now, &now, now, &now))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("sending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	repo := &repository.CampaignRepository{DB: db}
	campaigns, total, err := repo.List(context.Background(), 0, 10, "sending")
	require.NoError(t, err)
	assert.Len(t, campaigns, 2)
	assert.Equal(t, 2, total)
}
