package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kevinotieno/wablast-backend/internal/queue"
	"github.com/kevinotieno/wablast-backend/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP
// handlers. Dispatch itself runs in the dispatcher process; this handler
// only queues jobs, except for the synchronous variant used by small
// audiences and tests.
type CampaignHandler struct {
	Service    *service.CampaignService
	Dispatcher *service.Dispatcher
	Publisher  queue.Publisher
	Log        zerolog.Logger
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssistantID     int    `json:"assistant_id"`
		SegmentID       *int   `json:"segment_id"`
		Name            string `json:"name"`
		MessageTemplate string `json:"message_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	campaign, err := h.Service.CreateCampaign(r.Context(), body.AssistantID, body.SegmentID, body.Name, body.MessageTemplate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeBadRequest(w, "invalid campaign id")
		return
	}

	details, err := h.Service.GetCampaignDetails(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *CampaignHandler) ListDeliveryLogs(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeBadRequest(w, "invalid campaign id")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	logs, err := h.Service.ListDeliveryLogs(r.Context(), id, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": logs})
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeBadRequest(w, "invalid campaign id")
		return
	}

	if err := h.Service.CancelCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": true})
}

// DispatchCampaign queues the campaign for the dispatcher process and
// returns immediately; progress is read by polling the campaign row.
func (h *CampaignHandler) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeBadRequest(w, "invalid campaign id")
		return
	}

	if err := h.Service.ValidateDispatchable(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	if err := h.Publisher.PublishDispatch(id); err != nil {
		h.Log.Error().Err(err).Int("campaign_id", id).Msg("failed to queue dispatch job")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"queued":      true,
	})
}

// DispatchCampaignSync runs the full dispatch loop inside the request and
// returns the final tallies. Only sensible for small audiences.
func (h *CampaignHandler) DispatchCampaignSync(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeBadRequest(w, "invalid campaign id")
		return
	}

	result, err := h.Dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"sentCount":       result.SentCount,
		"failedCount":     result.FailedCount,
		"totalRecipients": result.TotalRecipients,
	})
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
