package intake

import "github.com/m3rciful/intakebot/internal/catalog"

// SessionState is everything the bot remembers about one conversation.
// It is stored by the session registry and must stay JSON-friendly.
type SessionState struct {
	Phase            Phase             `json:"phase"`
	SelectedOffering *catalog.Offering `json:"selected_offering,omitempty"`
	EnteredName      string            `json:"entered_name,omitempty"`
	EnteredPhone     string            `json:"entered_phone,omitempty"`
	// SubmissionKey identifies this attempt to the submitter, which records
	// each key at most once. It is assigned when the phone is asked for.
	SubmissionKey string `json:"submission_key,omitempty"`
	// HasSubmitted flips to true once and is never cleared, not even by /start.
	HasSubmitted bool  `json:"has_submitted"`
	RequestID    int64 `json:"request_id,omitempty"`
}

// NewSession returns the state of a conversation that has not started yet.
func NewSession() SessionState {
	return SessionState{Phase: PhaseAwaitingStart}
}
