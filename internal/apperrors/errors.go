package apperrors

import "fmt"

// NotFoundError reports a missing campaign or assistant.
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Resource, e.ID)
}

func NewCampaignNotFound(id int) error {
	return &NotFoundError{Resource: "campaign", ID: id}
}

func NewAssistantNotFound(id int) error {
	return &NotFoundError{Resource: "assistant", ID: id}
}

// ResolutionError means the audience could not be computed. Resolution is
// all-or-nothing, so the dispatch run that hit it never started sending.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("audience resolution failed: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SendError is a per-recipient delivery failure. It is recorded in the
// ledger and counted, never surfaced as a fatal dispatch error.
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// GatewayError is a non-success answer from the WhatsApp gateway. Body
// carries the gateway's response body as the failure detail.
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// DecodeError means the gateway returned a QR payload that could not be
// decoded from its transport encoding.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed QR payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// LeaseHeldError means another dispatcher currently holds the campaign's
// dispatch lease.
type LeaseHeldError struct {
	CampaignID int
}

func (e *LeaseHeldError) Error() string {
	return fmt.Sprintf("campaign %d is already being dispatched", e.CampaignID)
}
