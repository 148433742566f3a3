package models

import "time"

// Audit actions recorded by the lifecycle engine. One entry per
// state-changing action, committed with the mutation.
const (
	AuditSessionCancelled     = "session_cancelled"
	AuditSessionCompleted     = "session_completed"
	AuditSessionNoShow        = "session_no_show"
	AuditSessionNoShowCleared = "session_no_show_cleared"
	AuditSessionReassigned    = "session_reassigned"
	AuditReassignmentAccepted = "reassignment_accepted"
	AuditReassignmentRejected = "reassignment_rejected"
	AuditManualRefund         = "manual_refund"
	AuditRescheduleProposed   = "reschedule_proposed"
	AuditRescheduleResolved   = "reschedule_resolved"
	AuditRescheduleWithdrawn  = "reschedule_withdrawn"
)

// RequestMeta carries the request-level context stored with an audit entry.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type AuditLogEntry struct {
	ID             int64          `json:"id"`
	SessionID      int64          `json:"session_id"`
	UserID         int64          `json:"user_id"`
	Action         string         `json:"action"`
	PreviousStatus *string        `json:"previous_status"`
	NewStatus      *string        `json:"new_status"`
	ReasonDetails  *string        `json:"reason_details"`
	PolicySnapshot map[string]any `json:"policy_snapshot"`
	IPAddress      *string        `json:"ip_address"`
	UserAgent      *string        `json:"user_agent"`
	CreatedAt      time.Time      `json:"created_at"`
}
