package repository

import (
	"context"
	"time"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ListUsableByUser returns the user's active/trialing subscriptions across
// both audiences; the feature gate disambiguates.
func (r *SubscriptionRepository) ListUsableByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	query := `
		SELECT id, user_id, audience, plan_id, status, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'trialing')
		ORDER BY id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Audience,
			&sub.PlanID,
			&sub.Status,
			&sub.CurrentPeriodStart,
			&sub.CurrentPeriodEnd,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *SubscriptionRepository) GetPlanFeature(
	ctx context.Context,
	planID int64,
	featureKey string,
) (*models.PlanFeature, error) {
	query := `
		SELECT id, plan_id, feature_key, limit_type, limit_value, text_value, reset_interval
		FROM plan_features
		WHERE plan_id = $1 AND feature_key = $2
	`
	var feature models.PlanFeature
	err := r.db.QueryRow(ctx, query, planID, featureKey).Scan(
		&feature.ID,
		&feature.PlanID,
		&feature.FeatureKey,
		&feature.LimitType,
		&feature.LimitValue,
		&feature.TextValue,
		&feature.ResetInterval,
	)
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

func (r *SubscriptionRepository) GetUsage(
	ctx context.Context,
	subscriptionID int64,
	featureKey string,
) (*models.FeatureUsage, error) {
	query := `
		SELECT id, subscription_id, feature_key, used_count, period_start, updated_at
		FROM feature_usage
		WHERE subscription_id = $1 AND feature_key = $2
	`
	var usage models.FeatureUsage
	err := r.db.QueryRow(ctx, query, subscriptionID, featureKey).Scan(
		&usage.ID,
		&usage.SubscriptionID,
		&usage.FeatureKey,
		&usage.UsedCount,
		&usage.PeriodStart,
		&usage.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *SubscriptionRepository) GetUsageForUpdate(
	ctx context.Context,
	subscriptionID int64,
	featureKey string,
) (*models.FeatureUsage, error) {
	query := `
		SELECT id, subscription_id, feature_key, used_count, period_start, updated_at
		FROM feature_usage
		WHERE subscription_id = $1 AND feature_key = $2
		FOR UPDATE
	`
	var usage models.FeatureUsage
	err := r.db.QueryRow(ctx, query, subscriptionID, featureKey).Scan(
		&usage.ID,
		&usage.SubscriptionID,
		&usage.FeatureKey,
		&usage.UsedCount,
		&usage.PeriodStart,
		&usage.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// UpsertUsage sets the running counter and period start for a
// (subscription, feature) pair, creating the row on first use.
func (r *SubscriptionRepository) UpsertUsage(
	ctx context.Context,
	subscriptionID int64,
	featureKey string,
	usedCount int64,
	periodStart time.Time,
) (*models.FeatureUsage, error) {
	query := `
		INSERT INTO feature_usage (subscription_id, feature_key, used_count, period_start)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subscription_id, feature_key) DO UPDATE
		SET used_count = EXCLUDED.used_count,
		    period_start = EXCLUDED.period_start,
		    updated_at = NOW()
		RETURNING id, subscription_id, feature_key, used_count, period_start, updated_at
	`
	var usage models.FeatureUsage
	err := r.db.QueryRow(ctx, query, subscriptionID, featureKey, usedCount, periodStart).Scan(
		&usage.ID,
		&usage.SubscriptionID,
		&usage.FeatureKey,
		&usage.UsedCount,
		&usage.PeriodStart,
		&usage.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// InsertUsageEvent records one tracked usage. Returns false without error when
// the idempotency key was already seen.
func (r *SubscriptionRepository) InsertUsageEvent(
	ctx context.Context,
	subscriptionID int64,
	featureKey string,
	delta int64,
	resourceType string,
	resourceID *int64,
	idempotencyKey string,
) (bool, error) {
	query := `
		INSERT INTO feature_usage_events (subscription_id, feature_key, delta, resource_type, resource_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, subscriptionID, featureKey, delta, resourceType, resourceID, idempotencyKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
