package models

import "time"

const (
	AudienceMentor = "mentor"
	AudienceMentee = "mentee"
)

const (
	SubscriptionActive    = "active"
	SubscriptionTrialing  = "trialing"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

// SubscriptionUsable reports whether a subscription currently grants access.
func SubscriptionUsable(status string) bool {
	return status == SubscriptionActive || status == SubscriptionTrialing
}

const (
	LimitTypeCount   = "count"
	LimitTypeMinutes = "minutes"
	LimitTypeAmount  = "amount"
	LimitTypePercent = "percent"
	LimitTypeText    = "text"
	LimitTypeJSON    = "json"
)

const (
	ResetIntervalDay   = "day"
	ResetIntervalWeek  = "week"
	ResetIntervalMonth = "month"
	ResetIntervalNever = "never"
)

type Plan struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Audience  string    `json:"audience"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PlanFeature struct {
	ID            int64   `json:"id"`
	PlanID        int64   `json:"plan_id"`
	FeatureKey    string  `json:"feature_key"`
	LimitType     string  `json:"limit_type"`
	LimitValue    int64   `json:"limit_value"`
	TextValue     *string `json:"text_value"`
	ResetInterval string  `json:"reset_interval"`
}

type Subscription struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Audience           string    `json:"audience"`
	PlanID             int64     `json:"plan_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type FeatureUsage struct {
	ID             int64     `json:"id"`
	SubscriptionID int64     `json:"subscription_id"`
	FeatureKey     string    `json:"feature_key"`
	UsedCount      int64     `json:"used_count"`
	PeriodStart    time.Time `json:"period_start"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FeatureAccess is the outcome of a feature-gate check.
type FeatureAccess struct {
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason,omitempty"`
	Limit     *int64 `json:"limit,omitempty"`
	Usage     *int64 `json:"usage,omitempty"`
	Remaining *int64 `json:"remaining,omitempty"`
}
