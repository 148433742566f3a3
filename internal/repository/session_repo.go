package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

const sessionColumns = `
	id, mentor_id, mentee_id, scheduled_at, duration_minutes, meeting_type, status,
	rate, refund_amount, refund_percentage, refund_status,
	cancelled_by, cancellation_reason,
	no_show_marked_by, no_show_marked_at,
	was_reassigned, reassigned_from_mentor_id, reassigned_at, reassignment_status,
	pending_reschedule_request_id, pending_reschedule_time, pending_reschedule_by,
	ended_at, actual_duration_minutes,
	created_at, updated_at`

type CreateSessionInput struct {
	MentorID        int64
	MenteeID        int64
	ScheduledAt     time.Time
	DurationMinutes int
	MeetingType     string
	Rate            float64
}

type SessionListFilter struct {
	ActorID   int64
	Role      models.Role
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.MenteeID,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&s.MeetingType,
		&s.Status,
		&s.Rate,
		&s.RefundAmount,
		&s.RefundPercentage,
		&s.RefundStatus,
		&s.CancelledBy,
		&s.CancellationReason,
		&s.NoShowMarkedBy,
		&s.NoShowMarkedAt,
		&s.WasReassigned,
		&s.ReassignedFromMentorID,
		&s.ReassignedAt,
		&s.ReassignmentStatus,
		&s.PendingRescheduleRequestID,
		&s.PendingRescheduleTime,
		&s.PendingRescheduleBy,
		&s.EndedAt,
		&s.ActualDurationMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (mentor_id, mentee_id, scheduled_at, duration_minutes, meeting_type, status, rate)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.MentorID,
		input.MenteeID,
		input.ScheduledAt,
		input.DurationMinutes,
		input.MeetingType,
		input.Rate,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// GetByIDForUpdate locks the session row for the duration of the enclosing
// transaction so concurrent transitions against the same session serialize.
func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "mentee_id"
	if filter.Role == models.RoleMentor {
		actorColumn = "mentor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_minutes * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_at + (duration_minutes * INTERVAL '1 minute')) <= NOW()",
		)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY scheduled_at ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Update writes back every mutable field. Callers hold the row lock from
// GetByIDForUpdate, so there is no lost-update window.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET mentor_id = $2,
		    scheduled_at = $3,
		    duration_minutes = $4,
		    status = $5,
		    refund_amount = $6,
		    refund_percentage = $7,
		    refund_status = $8,
		    cancelled_by = $9,
		    cancellation_reason = $10,
		    no_show_marked_by = $11,
		    no_show_marked_at = $12,
		    was_reassigned = $13,
		    reassigned_from_mentor_id = $14,
		    reassigned_at = $15,
		    reassignment_status = $16,
		    pending_reschedule_request_id = $17,
		    pending_reschedule_time = $18,
		    pending_reschedule_by = $19,
		    ended_at = $20,
		    actual_duration_minutes = $21,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		session.ID,
		session.MentorID,
		session.ScheduledAt,
		session.DurationMinutes,
		session.Status,
		session.RefundAmount,
		session.RefundPercentage,
		session.RefundStatus,
		session.CancelledBy,
		session.CancellationReason,
		session.NoShowMarkedBy,
		session.NoShowMarkedAt,
		session.WasReassigned,
		session.ReassignedFromMentorID,
		session.ReassignedAt,
		session.ReassignmentStatus,
		session.PendingRescheduleRequestID,
		session.PendingRescheduleTime,
		session.PendingRescheduleBy,
		session.EndedAt,
		session.ActualDurationMinutes,
	))
}

func (r *SessionRepository) HasConflict(
	ctx context.Context,
	mentorID int64,
	requestedTime time.Time,
	durationMinutes int,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE mentor_id = $1
			  AND status NOT IN ('cancelled', 'no_show')
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_minutes * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, mentorID, requestedTime, durationMinutes).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}

func (r *SessionRepository) HasConflictExcludingSession(
	ctx context.Context,
	mentorID int64,
	requestedTime time.Time,
	durationMinutes int,
	excludedSessionID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE mentor_id = $1
			  AND id <> $4
			  AND status NOT IN ('cancelled', 'no_show')
			  AND scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (scheduled_at + (duration_minutes * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, mentorID, requestedTime, durationMinutes, excludedSessionID).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}
