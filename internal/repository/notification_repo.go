package repository

import (
	"context"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

type CreateNotificationInput struct {
	UserID      int64
	Type        string
	Title       string
	Message     string
	RelatedID   *int64
	RelatedType *string
	ActionURL   *string
}

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	input CreateNotificationInput,
) (*models.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, type, title, message, related_id, related_type, action_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, user_id, type, title, message, related_id, related_type, action_url, read, created_at
	`
	var notification models.Notification
	err := r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.Type,
		input.Title,
		input.Message,
		input.RelatedID,
		input.RelatedType,
		input.ActionURL,
	).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Type,
		&notification.Title,
		&notification.Message,
		&notification.RelatedID,
		&notification.RelatedType,
		&notification.ActionURL,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) ListByUser(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	limit int,
) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, related_id, related_type, action_url, read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.RelatedID,
			&notification.RelatedType,
			&notification.ActionURL,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead flips a single notification owned by userID. Returns false when no
// row matched, so handlers can distinguish not-found from already-read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID int64) (bool, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.db.Exec(ctx, query, notificationID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
