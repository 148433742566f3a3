package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/live"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
)

type DispatchInput struct {
	UserID      int64
	Type        string
	Title       string
	Message     string
	RelatedID   *int64
	RelatedType *string
	ActionURL   *string
}

type notificationStore interface {
	Create(ctx context.Context, input repository.CreateNotificationInput) (*models.Notification, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (bool, error)
}

// NotificationService persists in-app notifications and pushes them to the
// live broker. Delivery is best-effort: a failure here never affects the
// transition that triggered it.
type NotificationService struct {
	store  notificationStore
	broker live.Broker
	logger zerolog.Logger
}

func NewNotificationService(
	store *repository.NotificationRepository,
	broker live.Broker,
	logger zerolog.Logger,
) *NotificationService {
	return &NotificationService{store: store, broker: broker, logger: logger}
}

func (s *NotificationService) Dispatch(ctx context.Context, input DispatchInput) {
	notification, err := s.store.Create(ctx, repository.CreateNotificationInput{
		UserID:      input.UserID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		RelatedID:   input.RelatedID,
		RelatedType: input.RelatedType,
		ActionURL:   input.ActionURL,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("user_id", input.UserID).
			Str("type", input.Type).
			Msg("notification insert failed")
		return
	}

	if s.broker == nil {
		return
	}
	err = s.broker.Publish(ctx, live.Event{
		UserID:    notification.UserID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		RelatedID: notification.RelatedID,
		CreatedAt: notification.CreatedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("user_id", input.UserID).
			Msg("live event publish failed")
	}
}

func (s *NotificationService) List(
	ctx context.Context,
	userID int64,
	unreadOnly bool,
	limit int,
) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) (bool, error) {
	return s.store.MarkRead(ctx, userID, notificationID)
}
