package models

import "time"

const (
	NotificationSessionCancelled     = "session_cancelled"
	NotificationSessionCompleted     = "session_completed"
	NotificationSessionNoShow        = "session_no_show"
	NotificationSessionReassigned    = "session_reassigned"
	NotificationReassignmentAccepted = "reassignment_accepted"
	NotificationReassignmentRejected = "reassignment_rejected"
	NotificationRefundIssued         = "refund_issued"
	NotificationRescheduleProposed   = "reschedule_proposed"
	NotificationRescheduleResolved   = "reschedule_resolved"
	NotificationRescheduleWithdrawn  = "reschedule_withdrawn"
)

type Notification struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	RelatedID   *int64    `json:"related_id"`
	RelatedType *string   `json:"related_type"`
	ActionURL   *string   `json:"action_url"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
