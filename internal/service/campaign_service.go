package service

import (
	"context"
	"fmt"

	"github.com/kevinotieno/wablast-backend/internal/model"
	"github.com/kevinotieno/wablast-backend/internal/repository"
)

// CampaignService covers the thin reads/writes around campaigns that the
// dispatcher does not own: creation, listing, detail/stats, cancellation.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Ledger    repository.DeliveryLogRepositoryInterface
}

type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, assistantID int, segmentID *int, name, template string) (*model.Campaign, error) {
	if name == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if template == "" {
		return nil, fmt.Errorf("message template cannot be empty")
	}

	c := &model.Campaign{
		AssistantID:     assistantID,
		SegmentID:       segmentID,
		Name:            name,
		MessageTemplate: template,
		Status:          model.CampaignStatusPending,
	}
	if err := s.Campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.List(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails returns the campaign row plus its ledger breakdown.
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int) (*CampaignDetails, error) {
	campaign, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Ledger.StatsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// CancelCampaign flips a pending or sending campaign to cancelled.
// Cancelling pending closes the window where a queued dispatch job has not
// started yet; cancelling sending is observed by the running dispatcher on
// its next status probe. This call never touches the dispatcher directly.
func (s *CampaignService) CancelCampaign(ctx context.Context, id int) error {
	campaign, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPending && campaign.Status != model.CampaignStatusSending {
		return fmt.Errorf("campaign cannot be cancelled in status: %s", campaign.Status)
	}
	won, err := s.Campaigns.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("campaign %d reached a terminal status before cancel was applied", id)
	}
	return nil
}

// ValidateDispatchable is the API-side gate before a dispatch job is
// queued: the campaign must exist and still be pending.
func (s *CampaignService) ValidateDispatchable(ctx context.Context, id int) error {
	campaign, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusPending {
		return fmt.Errorf("campaign cannot be dispatched in status: %s", campaign.Status)
	}
	return nil
}

// ListDeliveryLogs pages through the campaign's ledger, newest-run order.
func (s *CampaignService) ListDeliveryLogs(ctx context.Context, campaignID, page, pageSize int) ([]*model.DeliveryLog, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return s.Ledger.ListByCampaign(ctx, campaignID, (page-1)*pageSize, pageSize)
}
