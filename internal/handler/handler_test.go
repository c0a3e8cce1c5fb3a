package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/gateway"
	"github.com/kevinotieno/wablast-backend/internal/handler"
	"github.com/kevinotieno/wablast-backend/internal/model"
	"github.com/kevinotieno/wablast-backend/internal/repository"
	"github.com/kevinotieno/wablast-backend/internal/service"
)

// --- Fakes ---

type stubCampaignRepo struct {
	repository.CampaignRepositoryInterface
	campaign *model.Campaign
}

func (s *stubCampaignRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	if s.campaign == nil || s.campaign.ID != id {
		return nil, apperrors.NewCampaignNotFound(id)
	}
	cp := *s.campaign
	return &cp, nil
}

func (s *stubCampaignRepo) Cancel(ctx context.Context, id int) (bool, error) {
	if s.campaign.Status != model.CampaignStatusPending && s.campaign.Status != model.CampaignStatusSending {
		return false, nil
	}
	s.campaign.Status = model.CampaignStatusCancelled
	return true, nil
}

type stubLedgerRepo struct {
	repository.DeliveryLogRepositoryInterface
}

func (s *stubLedgerRepo) StatsByCampaign(ctx context.Context, campaignID int) (map[string]int, error) {
	return map[string]int{"queued": 0, "sent": 3, "failed": 0, "total": 3}, nil
}

type stubPublisher struct {
	published []int
	err       error
}

func (s *stubPublisher) PublishDispatch(campaignID int) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, campaignID)
	return nil
}

func (s *stubPublisher) Close() error { return nil }

type stubAssistantRepo struct {
	repository.AssistantRepositoryInterface
	active bool
}

func (s *stubAssistantRepo) GetByID(ctx context.Context, id int) (*model.Assistant, error) {
	if id != 3 {
		return nil, apperrors.NewAssistantNotFound(id)
	}
	return &model.Assistant{ID: 3, Name: "Duka Bot", IsActive: s.active}, nil
}

func (s *stubAssistantRepo) ActivateSession(ctx context.Context, id int, state json.RawMessage) error {
	s.active = true
	return nil
}

type stubGateway struct {
	gateway.Client
	status *gateway.StatusResponse
}

func (s *stubGateway) SessionStatus(ctx context.Context, accountID int) (*gateway.StatusResponse, error) {
	return s.status, nil
}

// --- Campaign routes ---

func campaignRouter(repo *stubCampaignRepo, pub *stubPublisher) *chi.Mux {
	svc := &service.CampaignService{Campaigns: repo, Ledger: &stubLedgerRepo{}}
	h := &handler.CampaignHandler{Service: svc, Publisher: pub, Log: zerolog.Nop()}

	r := chi.NewRouter()
	r.Get("/campaigns/{id}", h.GetCampaign)
	r.Post("/campaigns/{id}/cancel", h.CancelCampaign)
	r.Post("/campaigns/{id}/dispatch", h.DispatchCampaign)
	return r
}

func pendingCampaign() *model.Campaign {
	return &model.Campaign{
		ID: 1, AssistantID: 7, Name: "flash sale",
		MessageTemplate: "Hi {name}!", Status: model.CampaignStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestDispatchQueuesJob(t *testing.T) {
	repo := &stubCampaignRepo{campaign: pendingCampaign()}
	pub := &stubPublisher{}
	r := campaignRouter(repo, pub)

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/dispatch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int{1}, pub.published)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["queued"])
}

func TestDispatchUnknownCampaignIs404(t *testing.T) {
	r := campaignRouter(&stubCampaignRepo{}, &stubPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/campaigns/9/dispatch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestDispatchRejectsNonPending(t *testing.T) {
	c := pendingCampaign()
	c.Status = model.CampaignStatusCompleted
	pub := &stubPublisher{}
	r := campaignRouter(&stubCampaignRepo{campaign: c}, pub)

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/dispatch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, pub.published)
}

func TestGetCampaignWithStats(t *testing.T) {
	r := campaignRouter(&stubCampaignRepo{campaign: pendingCampaign()}, &stubPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/campaigns/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Campaign model.Campaign `json:"campaign"`
		Stats    map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "flash sale", body.Campaign.Name)
	assert.Equal(t, 3, body.Stats["sent"])
}

func TestCancelSendingCampaign(t *testing.T) {
	c := pendingCampaign()
	c.Status = model.CampaignStatusSending
	repo := &stubCampaignRepo{campaign: c}
	r := campaignRouter(repo, &stubPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CampaignStatusCancelled, repo.campaign.Status)
}

func TestCancelPendingCampaign(t *testing.T) {
	// A pending campaign may already have its dispatch job queued;
	// cancelling it must work so the job's status gate refuses the run.
	repo := &stubCampaignRepo{campaign: pendingCampaign()}
	r := campaignRouter(repo, &stubPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.CampaignStatusCancelled, repo.campaign.Status)
}

func TestCancelCompletedCampaignFails(t *testing.T) {
	c := pendingCampaign()
	c.Status = model.CampaignStatusCompleted
	repo := &stubCampaignRepo{campaign: c}
	r := campaignRouter(repo, &stubPublisher{})

	req := httptest.NewRequest(http.MethodPost, "/campaigns/1/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, model.CampaignStatusCompleted, repo.campaign.Status)
}

// --- Session routes ---

func sessionRouter(gw gateway.Client) (*chi.Mux, *stubAssistantRepo) {
	repo := &stubAssistantRepo{}
	ctrl := service.NewSessionController(repo, gw, zerolog.Nop())
	h := &handler.SessionHandler{Controller: ctrl}

	r := chi.NewRouter()
	r.Post("/assistants/{id}/session", h.SessionAction)
	r.Get("/assistants/{id}/qr", h.FetchQR)
	return r, repo
}

func TestSessionStatusAction(t *testing.T) {
	gw := &stubGateway{status: &gateway.StatusResponse{State: gateway.StateReady, Raw: []byte(`{"status":"ready"}`)}}
	r, repo := sessionRouter(gw)

	req := httptest.NewRequest(http.MethodPost, "/assistants/3/session",
		bytes.NewBufferString(`{"action":"status"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["state"])
	assert.True(t, repo.active, "ready status must activate the assistant")
}

func TestSessionUnknownAction(t *testing.T) {
	r, _ := sessionRouter(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, "/assistants/3/session",
		bytes.NewBufferString(`{"action":"reboot"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchQRNoContentIs204(t *testing.T) {
	gw := &stubGateway{status: &gateway.StatusResponse{State: gateway.StateInitializing}}
	r, _ := sessionRouter(gw)

	req := httptest.NewRequest(http.MethodGet, "/assistants/3/qr", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Empty(t, w.Body.Bytes())
}

func TestFetchQRStreamsPNG(t *testing.T) {
	raw := []byte("\x89PNG\r\n\x1a\nqr-bytes")
	gw := &stubGateway{status: &gateway.StatusResponse{
		State:    gateway.StateInitializing,
		QRBase64: base64.StdEncoding.EncodeToString(raw),
	}}
	r, _ := sessionRouter(gw)

	req := httptest.NewRequest(http.MethodGet, "/assistants/3/qr", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, raw, w.Body.Bytes())
}

func TestFetchQRUnknownAssistantIs404(t *testing.T) {
	r, _ := sessionRouter(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/assistants/99/qr", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
