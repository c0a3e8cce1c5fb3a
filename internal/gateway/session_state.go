package gateway

// SessionState is the gateway's remote session state machine collapsed to
// the states the controller reconciles against. Keeping it a closed enum
// (rather than passing wire strings around) keeps the reconciliation logic
// exhaustive.
type SessionState int

const (
	// StateAbsent: the gateway has no session for the account.
	StateAbsent SessionState = iota
	// StateInitializing: session starting up, usually waiting for a QR scan.
	StateInitializing
	// StateReady: authenticated and usable. The only state that activates
	// an account locally.
	StateReady
	// StateErrored: the gateway reported something unrecognized or broken.
	StateErrored
)

func (s SessionState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "errored"
	}
}

// ParseSessionState maps the gateway's wire status strings onto the enum.
// Unknown strings land in StateErrored so callers never mistake them for a
// usable session.
func ParseSessionState(wire string) SessionState {
	switch wire {
	case "", "disconnected", "absent":
		return StateAbsent
	case "initializing", "connecting", "qr", "pairing":
		return StateInitializing
	case "ready", "connected":
		return StateReady
	default:
		return StateErrored
	}
}
