package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kevinotieno/wablast-backend/internal/apperrors"
)

// StatusResponse is the gateway's answer to a status poll. Raw keeps the
// untouched body so callers can mirror it without re-marshalling.
type StatusResponse struct {
	State    SessionState
	QRBase64 string
	Raw      json.RawMessage
}

// Client is the narrow contract the rest of the system has with the
// WhatsApp gateway. Services take this interface so tests can drop in a
// fake without a network.
type Client interface {
	SendMessage(ctx context.Context, accountID int, toPhone, body string) error
	InitSession(ctx context.Context, accountID int) ([]byte, error)
	SessionStatus(ctx context.Context, accountID int) (*StatusResponse, error)
	Disconnect(ctx context.Context, accountID int) error
}

// HTTPClient talks to the gateway over its JSON HTTP API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SendMessage delivers one message through the account's channel session.
// No retries here; the dispatcher records the outcome and moves on.
func (c *HTTPClient) SendMessage(ctx context.Context, accountID int, toPhone, body string) error {
	payload := map[string]interface{}{
		"accountId": accountID,
		"to":        toPhone,
		"body":      body,
	}
	_, err := c.post(ctx, "/send", payload, "send")
	return err
}

// InitSession asks the gateway to begin a new session and returns the raw
// bootstrap payload (session id, first QR) unmodified.
func (c *HTTPClient) InitSession(ctx context.Context, accountID int) ([]byte, error) {
	return c.post(ctx, "/init", map[string]interface{}{"accountId": accountID}, "init")
}

func (c *HTTPClient) SessionStatus(ctx context.Context, accountID int) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/status/%d", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperrors.GatewayError{Operation: "status", StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return &StatusResponse{State: StateAbsent, Raw: body}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, &apperrors.GatewayError{Operation: "status", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var wire struct {
		Status string `json:"status"`
		QR     string `json:"qr"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &apperrors.GatewayError{Operation: "status", StatusCode: resp.StatusCode, Body: "unparseable response: " + err.Error()}
	}

	return &StatusResponse{
		State:    ParseSessionState(wire.Status),
		QRBase64: wire.QR,
		Raw:      body,
	}, nil
}

func (c *HTTPClient) Disconnect(ctx context.Context, accountID int) error {
	_, err := c.post(ctx, "/disconnect", map[string]interface{}{"accountId": accountID}, "disconnect")
	return err
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}, op string) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperrors.GatewayError{Operation: op, StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, &apperrors.GatewayError{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

var _ Client = (*HTTPClient)(nil)
