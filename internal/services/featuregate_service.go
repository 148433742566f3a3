package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
)

var (
	ErrAmbiguousAudience    = errors.New("ambiguous subscription audience")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrFeatureNotInPlan     = errors.New("feature not included in plan")
)

type subscriptionStore interface {
	ListUsableByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	GetPlanFeature(ctx context.Context, planID int64, featureKey string) (*models.PlanFeature, error)
	GetUsage(ctx context.Context, subscriptionID int64, featureKey string) (*models.FeatureUsage, error)
}

// FeatureGateService decides whether a subscription plan permits a metered
// action. It is independent of the session state machine.
type FeatureGateService struct {
	db     *pgxpool.Pool
	subs   subscriptionStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewFeatureGateService(
	db *pgxpool.Pool,
	subs *repository.SubscriptionRepository,
	logger zerolog.Logger,
) *FeatureGateService {
	return &FeatureGateService{db: db, subs: subs, logger: logger, now: time.Now}
}

// resolveSubscription picks the user's usable subscription for the given
// audience. A user holding subscriptions for both audiences must say which
// one applies; guessing would gate against the wrong plan.
func (s *FeatureGateService) resolveSubscription(
	ctx context.Context,
	userID int64,
	audience string,
) (*models.Subscription, error) {
	subs, err := s.subs.ListUsableByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if audience != "" {
		for i := range subs {
			if subs[i].Audience == audience {
				return &subs[i], nil
			}
		}
		return nil, nil
	}

	switch len(subs) {
	case 0:
		return nil, nil
	case 1:
		return &subs[0], nil
	default:
		audiences := make(map[string]struct{}, len(subs))
		for _, sub := range subs {
			audiences[sub.Audience] = struct{}{}
		}
		if len(audiences) > 1 {
			return nil, ErrAmbiguousAudience
		}
		return &subs[0], nil
	}
}

// effectivePeriodStart returns the boundary the usage counter resets at.
func effectivePeriodStart(resetInterval string, now time.Time) time.Time {
	now = now.UTC()
	switch resetInterval {
	case models.ResetIntervalDay:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case models.ResetIntervalWeek:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		day := now.AddDate(0, 0, -(weekday - 1))
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	case models.ResetIntervalMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

func (s *FeatureGateService) CheckFeatureAccess(
	ctx context.Context,
	userID int64,
	featureKey string,
	audience string,
) (*models.FeatureAccess, error) {
	sub, err := s.resolveSubscription(ctx, userID, audience)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &models.FeatureAccess{HasAccess: false, Reason: "no active subscription"}, nil
	}

	feature, err := s.subs.GetPlanFeature(ctx, sub.PlanID, featureKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.FeatureAccess{HasAccess: false, Reason: "feature not included in plan"}, nil
		}
		return nil, err
	}

	// Value-typed features carry configuration, not a meterable limit.
	if feature.LimitType == models.LimitTypeText || feature.LimitType == models.LimitTypeJSON {
		return &models.FeatureAccess{HasAccess: true}, nil
	}

	if feature.LimitValue < 0 {
		return &models.FeatureAccess{HasAccess: true}, nil
	}

	used, err := s.currentUsage(ctx, sub.ID, feature)
	if err != nil {
		return nil, err
	}

	limit := feature.LimitValue
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	access := &models.FeatureAccess{
		HasAccess: used < limit,
		Limit:     &limit,
		Usage:     &used,
		Remaining: &remaining,
	}
	if !access.HasAccess {
		access.Reason = "limit reached"
	}
	return access, nil
}

func (s *FeatureGateService) currentUsage(
	ctx context.Context,
	subscriptionID int64,
	feature *models.PlanFeature,
) (int64, error) {
	usage, err := s.subs.GetUsage(ctx, subscriptionID, feature.FeatureKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if usage.PeriodStart.Before(effectivePeriodStart(feature.ResetInterval, s.now())) {
		return 0, nil
	}
	return usage.UsedCount, nil
}

// TrackFeatureUsage bumps the running counter for a metered feature. A reused
// idempotency key makes the call a no-op, so client retries do not
// double-count.
func (s *FeatureGateService) TrackFeatureUsage(
	ctx context.Context,
	userID int64,
	featureKey string,
	delta int64,
	resourceType string,
	resourceID *int64,
	idempotencyKey string,
	audience string,
) (*models.FeatureUsage, error) {
	if delta <= 0 {
		return nil, ErrInvalidInput
	}

	sub, err := s.resolveSubscription(ctx, userID, audience)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoActiveSubscription
	}

	feature, err := s.subs.GetPlanFeature(ctx, sub.PlanID, featureKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeatureNotInPlan
		}
		return nil, err
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSubs := repository.NewSubscriptionRepository(tx)

	inserted, err := txSubs.InsertUsageEvent(
		ctx, sub.ID, featureKey, delta, resourceType, resourceID, idempotencyKey,
	)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Duplicate submission: report the current counter unchanged.
		usage, err := txSubs.GetUsage(ctx, sub.ID, featureKey)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		if usage == nil {
			usage = &models.FeatureUsage{SubscriptionID: sub.ID, FeatureKey: featureKey}
		}
		return usage, nil
	}

	periodStart := effectivePeriodStart(feature.ResetInterval, s.now())
	newCount := delta
	newPeriod := periodStart

	current, err := txSubs.GetUsageForUpdate(ctx, sub.ID, featureKey)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if current != nil && !current.PeriodStart.Before(periodStart) {
		newCount = current.UsedCount + delta
		newPeriod = current.PeriodStart
	}

	usage, err := txSubs.UpsertUsage(ctx, sub.ID, featureKey, newCount, newPeriod)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return usage, nil
}
