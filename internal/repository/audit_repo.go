package repository

import (
	"context"
	"encoding/json"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

// AuditRepository is insert-and-list only. Audit rows are never updated or
// deleted once written.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

type RecordAuditInput struct {
	SessionID      int64
	UserID         int64
	Action         string
	PreviousStatus *string
	NewStatus      *string
	ReasonDetails  *string
	PolicySnapshot map[string]any
	Meta           models.RequestMeta
}

func (r *AuditRepository) Record(ctx context.Context, input RecordAuditInput) (*models.AuditLogEntry, error) {
	var snapshot []byte
	if input.PolicySnapshot != nil {
		encoded, err := json.Marshal(input.PolicySnapshot)
		if err != nil {
			return nil, err
		}
		snapshot = encoded
	}

	var ip, agent *string
	if input.Meta.IPAddress != "" {
		ip = &input.Meta.IPAddress
	}
	if input.Meta.UserAgent != "" {
		agent = &input.Meta.UserAgent
	}

	query := `
		INSERT INTO session_audit_logs
			(session_id, user_id, action, previous_status, new_status, reason_details, policy_snapshot, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	entry := models.AuditLogEntry{
		SessionID:      input.SessionID,
		UserID:         input.UserID,
		Action:         input.Action,
		PreviousStatus: input.PreviousStatus,
		NewStatus:      input.NewStatus,
		ReasonDetails:  input.ReasonDetails,
		PolicySnapshot: input.PolicySnapshot,
		IPAddress:      ip,
		UserAgent:      agent,
	}
	err := r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.UserID,
		input.Action,
		input.PreviousStatus,
		input.NewStatus,
		input.ReasonDetails,
		snapshot,
		ip,
		agent,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *AuditRepository) ListBySessionID(ctx context.Context, sessionID int64) ([]models.AuditLogEntry, error) {
	query := `
		SELECT id, session_id, user_id, action, previous_status, new_status, reason_details, policy_snapshot, ip_address, user_agent, created_at
		FROM session_audit_logs
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var entry models.AuditLogEntry
		var snapshot []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.UserID,
			&entry.Action,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ReasonDetails,
			&snapshot,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &entry.PolicySnapshot); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
