package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// {"error": "..."} payload every failure path shares.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var notFound *apperrors.NotFoundError
	var leaseHeld *apperrors.LeaseHeldError
	var gatewayErr *apperrors.GatewayError
	var decodeErr *apperrors.DecodeError

	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &leaseHeld):
		status = http.StatusConflict
	case errors.As(err, &gatewayErr), errors.As(err, &decodeErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
