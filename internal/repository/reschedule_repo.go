package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

const rescheduleColumns = `
	id, session_id, initiator_id, initiated_by, proposed_time, status,
	resolved_by, resolver_id, resolved_at, resolution_note,
	created_at, updated_at`

type CreateRescheduleInput struct {
	SessionID    int64
	InitiatorID  int64
	InitiatedBy  string
	ProposedTime time.Time
}

type ResolveRescheduleInput struct {
	RequestID      int64
	Status         string
	ResolvedBy     string
	ResolverID     int64
	ResolutionNote *string
}

type RescheduleRepository struct {
	db DBTX
}

func NewRescheduleRepository(db DBTX) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

func scanReschedule(row pgx.Row) (*models.RescheduleRequest, error) {
	var req models.RescheduleRequest
	err := row.Scan(
		&req.ID,
		&req.SessionID,
		&req.InitiatorID,
		&req.InitiatedBy,
		&req.ProposedTime,
		&req.Status,
		&req.ResolvedBy,
		&req.ResolverID,
		&req.ResolvedAt,
		&req.ResolutionNote,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RescheduleRepository) Create(
	ctx context.Context,
	input CreateRescheduleInput,
) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf(`
		INSERT INTO reschedule_requests (session_id, initiator_id, initiated_by, proposed_time, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING %s
	`, rescheduleColumns)

	return scanReschedule(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.InitiatorID,
		input.InitiatedBy,
		input.ProposedTime,
	))
}

func (r *RescheduleRepository) GetByID(ctx context.Context, requestID int64) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM reschedule_requests WHERE id = $1`, rescheduleColumns)
	return scanReschedule(r.db.QueryRow(ctx, query, requestID))
}

func (r *RescheduleRepository) GetByIDForUpdate(
	ctx context.Context,
	requestID int64,
) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM reschedule_requests WHERE id = $1 FOR UPDATE`, rescheduleColumns)
	return scanReschedule(r.db.QueryRow(ctx, query, requestID))
}

// Counter swaps the negotiation to the other party: the responder becomes the
// new initiator and the request moves to counter_proposed.
func (r *RescheduleRepository) Counter(
	ctx context.Context,
	requestID int64,
	initiatorID int64,
	initiatedBy string,
	proposedTime time.Time,
) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf(`
		UPDATE reschedule_requests
		SET initiator_id = $2,
		    initiated_by = $3,
		    proposed_time = $4,
		    status = 'counter_proposed',
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, rescheduleColumns)

	return scanReschedule(r.db.QueryRow(ctx, query, requestID, initiatorID, initiatedBy, proposedTime))
}

func (r *RescheduleRepository) Resolve(
	ctx context.Context,
	input ResolveRescheduleInput,
) (*models.RescheduleRequest, error) {
	query := fmt.Sprintf(`
		UPDATE reschedule_requests
		SET status = $2,
		    resolved_by = $3,
		    resolver_id = $4,
		    resolved_at = NOW(),
		    resolution_note = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, rescheduleColumns)

	return scanReschedule(r.db.QueryRow(
		ctx,
		query,
		input.RequestID,
		input.Status,
		input.ResolvedBy,
		input.ResolverID,
		input.ResolutionNote,
	))
}

// CountAcceptedBySessionID reports how many reschedules a session has already
// gone through, used against the max_reschedules_per_session policy.
func (r *RescheduleRepository) CountAcceptedBySessionID(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reschedule_requests
		WHERE session_id = $1 AND status = 'accepted'
	`
	var count int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
