package ika

// SessionState is the lifecycle state of a presign or sign session.
type SessionState string

const (
	StatePending   SessionState = "pending"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
)

// PresignRequest opens a presign session. The participant share is the
// relayer's session-scoped contribution to the MPC round.
type PresignRequest struct {
	SessionID        string `json:"session_id"`
	ParticipantShare string `json:"participant_share"`
}

// SignRequest asks the network to sign a 32-byte message under an open
// presign session.
type SignRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SessionStatus is one poll of a session.
type SessionStatus struct {
	SessionID string       `json:"session_id"`
	State     SessionState `json:"state"`
	Signature string       `json:"signature,omitempty"`
	Message   string       `json:"message,omitempty"`
}

type sessionResponse struct {
	SessionStatus
	Error *gatewayError `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
