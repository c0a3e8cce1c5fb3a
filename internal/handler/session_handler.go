package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kevinotieno/wablast-backend/internal/service"
)

// SessionHandler exposes the gateway session lifecycle: init, status
// polling, disconnect, and QR retrieval for the pairing screen.
type SessionHandler struct {
	Controller *service.SessionController
}

// SessionAction handles POST /assistants/{id}/session with a body of
// {"action": "init" | "status" | "disconnect"}.
func (h *SessionHandler) SessionAction(w http.ResponseWriter, r *http.Request) {
	id, err := assistantID(r)
	if err != nil {
		writeBadRequest(w, "invalid assistant id")
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	switch body.Action {
	case "init":
		payload, err := h.Controller.Init(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)

	case "status":
		status, err := h.Controller.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"state": status.State.String(),
			"raw":   status.Raw,
		})

	case "disconnect":
		if err := h.Controller.Disconnect(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"disconnected": true})

	default:
		writeBadRequest(w, "unknown action: "+body.Action)
	}
}

// FetchQR streams the current pairing QR as raw PNG bytes. Pollers get a
// 204 while the gateway has no image; responses are never cacheable so
// every poll reaches the gateway.
func (h *SessionHandler) FetchQR(w http.ResponseWriter, r *http.Request) {
	id, err := assistantID(r)
	if err != nil {
		writeBadRequest(w, "invalid assistant id")
		return
	}

	img, err := h.Controller.FetchQR(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")

	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func assistantID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
