package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
	"github.com/kevinotieno/wablast-backend/internal/gateway"
	"github.com/kevinotieno/wablast-backend/internal/repository"
)

// SessionController drives the gateway's session lifecycle for an
// assistant and mirrors terminal state onto the assistant row. It keeps no
// in-process session state: every call re-derives truth from the gateway's
// current answer plus the stored mirror.
type SessionController struct {
	Assistants repository.AssistantRepositoryInterface
	Gateway    gateway.Client
	Log        zerolog.Logger
}

func NewSessionController(assistants repository.AssistantRepositoryInterface, gw gateway.Client, log zerolog.Logger) *SessionController {
	return &SessionController{Assistants: assistants, Gateway: gw, Log: log}
}

// sessionMarker is what gets persisted into assistants.session_state when
// a ready session is observed.
type sessionMarker struct {
	State        string    `json:"state"`
	ReconciledAt time.Time `json:"reconciled_at"`
}

// Init asks the gateway to start a new session and returns its bootstrap
// payload (session id, first QR) untouched. No local writes happen here;
// activation only ever comes from a ready status poll.
func (s *SessionController) Init(ctx context.Context, assistantID int) (json.RawMessage, error) {
	if _, err := s.Assistants.GetByID(ctx, assistantID); err != nil {
		return nil, err
	}
	payload, err := s.Gateway.InitSession(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Status polls the gateway. A ready answer is the single path that
// activates the assistant; every other state passes through untouched.
func (s *SessionController) Status(ctx context.Context, assistantID int) (*gateway.StatusResponse, error) {
	if _, err := s.Assistants.GetByID(ctx, assistantID); err != nil {
		return nil, err
	}

	status, err := s.Gateway.SessionStatus(ctx, assistantID)
	if err != nil {
		return nil, err
	}

	if status.State == gateway.StateReady {
		marker, _ := json.Marshal(sessionMarker{State: status.State.String(), ReconciledAt: time.Now()})
		if err := s.Assistants.ActivateSession(ctx, assistantID, marker); err != nil {
			return nil, err
		}
		s.Log.Info().Int("assistant_id", assistantID).Msg("session ready, assistant activated")
	}

	return status, nil
}

// Disconnect tears the session down at the gateway, then clears the local
// mirror. On gateway failure local state is left untouched, so a retry
// sees the same picture.
func (s *SessionController) Disconnect(ctx context.Context, assistantID int) error {
	if _, err := s.Assistants.GetByID(ctx, assistantID); err != nil {
		return err
	}
	if err := s.Gateway.Disconnect(ctx, assistantID); err != nil {
		return err
	}
	if err := s.Assistants.ClearSession(ctx, assistantID); err != nil {
		return err
	}
	s.Log.Info().Int("assistant_id", assistantID).Msg("session disconnected, assistant deactivated")
	return nil
}

// FetchQR polls the gateway and, when a QR image is currently offered,
// decodes it from base64 into raw PNG bytes. A nil, nil return means the
// gateway has no QR right now and the poller should try again.
func (s *SessionController) FetchQR(ctx context.Context, assistantID int) ([]byte, error) {
	if _, err := s.Assistants.GetByID(ctx, assistantID); err != nil {
		return nil, err
	}

	status, err := s.Gateway.SessionStatus(ctx, assistantID)
	if err != nil {
		return nil, err
	}
	if status.QRBase64 == "" {
		return nil, nil
	}

	// Gateways commonly ship QR images as data URLs; strip the prefix.
	raw := status.QRBase64
	if strings.HasPrefix(raw, "data:") {
		if i := strings.IndexByte(raw, ','); i >= 0 {
			raw = raw[i+1:]
		}
	}

	img, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &apperrors.DecodeError{Err: err}
	}
	return img, nil
}
