package domain

import "time"

// Adjudication actions an investigator can record.
const (
	ActionEscalate = "escalate"
	ActionApprove  = "approve"
	ActionDefer    = "defer"
)

// Claim status values. Pending and analyzed are pre-decision; the rest
// mirror the most recent decision.
const (
	StatusPending   = "pending"
	StatusAnalyzed  = "analyzed"
	StatusEscalated = "escalated"
	StatusApproved  = "approved"
	StatusDeferred  = "deferred"
)

// Decision is an append-only audit entry. Never mutated or deleted once
// written; the claim's current status is derived from the most recent one.
type Decision struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Action    string    `json:"action"`
	Notes     string    `json:"notes,omitempty"`
	DecidedBy string    `json:"decidedBy"`
	DecidedAt time.Time `json:"decidedAt"`
}

// ValidAction reports whether action is one of the adjudication actions.
func ValidAction(action string) bool {
	switch action {
	case ActionEscalate, ActionApprove, ActionDefer:
		return true
	}
	return false
}

// StatusForAction maps a decision action to the claim status it sets.
func StatusForAction(action string) string {
	switch action {
	case ActionEscalate:
		return StatusEscalated
	case ActionApprove:
		return StatusApproved
	case ActionDefer:
		return StatusDeferred
	}
	return action
}

// DeriveStatus folds (has snapshot?, latest decision) into the claim status.
// Decisions are sticky: re-analysis after a decision does not move the claim
// back to analyzed.
func DeriveStatus(hasSnapshot bool, latest *Decision) string {
	if latest != nil {
		return StatusForAction(latest.Action)
	}
	if hasSnapshot {
		return StatusAnalyzed
	}
	return StatusPending
}
