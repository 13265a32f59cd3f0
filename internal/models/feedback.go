package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackAction is a user verdict on a surfaced match.
type FeedbackAction string

const (
	ActionSaved     FeedbackAction = "saved"
	ActionDismissed FeedbackAction = "dismissed"
	ActionApplied   FeedbackAction = "applied"
	ActionWon       FeedbackAction = "won"
	ActionLost      FeedbackAction = "lost"
)

// Valid reports whether a is one of the known actions.
func (a FeedbackAction) Valid() bool {
	switch a {
	case ActionSaved, ActionDismissed, ActionApplied, ActionWon, ActionLost:
		return true
	}
	return false
}

// Positive actions confirm the prediction; negative ones contradict it.
func (a FeedbackAction) Positive() bool {
	return a == ActionSaved || a == ActionApplied || a == ActionWon
}

func (a FeedbackAction) Negative() bool {
	return a == ActionDismissed || a == ActionLost
}

// FeedbackEvent is one entry in the append-only feedback log.
// Events are immutable once written.
type FeedbackEvent struct {
	ID             uuid.UUID      `json:"id"`
	RecordID       uuid.UUID      `json:"record_id"`
	PredictedScore int            `json:"predicted_score"`
	Action         FeedbackAction `json:"action"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
