package models

import "time"

const (
	SessionScheduled  = "scheduled"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionCancelled  = "cancelled"
	SessionNoShow     = "no_show"
)

const (
	MeetingVideo = "video"
	MeetingAudio = "audio"
	MeetingChat  = "chat"
)

const (
	RefundNone      = "none"
	RefundPending   = "pending"
	RefundProcessed = "processed"
)

const (
	ReassignmentNone                 = "none"
	ReassignmentPendingAcceptance    = "pending_acceptance"
	ReassignmentAwaitingMenteeChoice = "awaiting_mentee_choice"
	ReassignmentAccepted             = "accepted"
	ReassignmentRejected             = "rejected"
)

// IsTerminalStatus reports whether no further lifecycle transition may leave
// the given status. no_show is not terminal: an admin may clear it.
func IsTerminalStatus(status string) bool {
	return status == SessionCompleted || status == SessionCancelled
}

func ValidMeetingType(meetingType string) bool {
	return meetingType == MeetingVideo || meetingType == MeetingAudio || meetingType == MeetingChat
}

type Session struct {
	ID              int64     `json:"id"`
	MentorID        int64     `json:"mentor_id"`
	MenteeID        int64     `json:"mentee_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MeetingType     string    `json:"meeting_type"`
	Status          string    `json:"status"`

	Rate             float64 `json:"rate"`
	RefundAmount     float64 `json:"refund_amount"`
	RefundPercentage int     `json:"refund_percentage"`
	RefundStatus     string  `json:"refund_status"`

	CancelledBy        *string `json:"cancelled_by"`
	CancellationReason *string `json:"cancellation_reason"`

	NoShowMarkedBy *int64     `json:"no_show_marked_by"`
	NoShowMarkedAt *time.Time `json:"no_show_marked_at"`

	WasReassigned          bool       `json:"was_reassigned"`
	ReassignedFromMentorID *int64     `json:"reassigned_from_mentor_id"`
	ReassignedAt           *time.Time `json:"reassigned_at"`
	ReassignmentStatus     string     `json:"reassignment_status"`

	PendingRescheduleRequestID *int64     `json:"pending_reschedule_request_id"`
	PendingRescheduleTime      *time.Time `json:"pending_reschedule_time"`
	PendingRescheduleBy        *string    `json:"pending_reschedule_by"`

	EndedAt               *time.Time `json:"ended_at"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
