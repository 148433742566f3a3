package models

import "time"

const (
	ReschedulePending         = "pending"
	RescheduleCounterProposed = "counter_proposed"
	RescheduleAccepted        = "accepted"
	RescheduleRejected        = "rejected"
	RescheduleCancelled       = "cancelled"
	RescheduleExpired         = "expired"
)

// RescheduleOpen reports whether a request may still be resolved. Anything
// outside pending/counter_proposed is immutable.
func RescheduleOpen(status string) bool {
	return status == ReschedulePending || status == RescheduleCounterProposed
}

type RescheduleRequest struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	InitiatorID  int64     `json:"initiator_id"`
	InitiatedBy  string    `json:"initiated_by"`
	ProposedTime time.Time `json:"proposed_time"`
	Status       string    `json:"status"`

	ResolvedBy     *string    `json:"resolved_by"`
	ResolverID     *int64     `json:"resolver_id"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	ResolutionNote *string    `json:"resolution_note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
