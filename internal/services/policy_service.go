package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
)

// Policy keys understood by the lifecycle engine.
const (
	PolicyFreeCancellationHours     = "free_cancellation_hours"
	PolicyCancellationCutoffHours   = "cancellation_cutoff_hours"
	PolicyPartialRefundPercentage   = "partial_refund_percentage"
	PolicyLateCancellationRefundPct = "late_cancellation_refund_percentage"
	PolicyNoShowReportWindowHours   = "no_show_report_window_hours"
	PolicyMaxReschedulesPerSession  = "max_reschedules_per_session"
	PolicyRescheduleMinNoticeHours  = "reschedule_min_notice_hours"
)

var (
	ErrUnknownPolicy      = errors.New("unknown policy key")
	ErrInvalidPolicyValue = errors.New("invalid policy value")
)

type policyDefault struct {
	policyType  string
	value       string
	description string
}

// Compiled-in defaults: a missing or unparseable row never breaks evaluation.
var policyDefaults = map[string]policyDefault{
	PolicyFreeCancellationHours:     {models.PolicyTypeInteger, "24", "Hours before start within which cancellation is free (full refund)"},
	PolicyCancellationCutoffHours:   {models.PolicyTypeInteger, "4", "Hours before start after which cancellation counts as late"},
	PolicyPartialRefundPercentage:   {models.PolicyTypeInteger, "50", "Refund percentage between the free window and the cutoff"},
	PolicyLateCancellationRefundPct: {models.PolicyTypeInteger, "0", "Refund percentage for cancellations after the cutoff"},
	PolicyNoShowReportWindowHours:   {models.PolicyTypeInteger, "24", "Hours after start during which a no-show may be reported"},
	PolicyMaxReschedulesPerSession:  {models.PolicyTypeInteger, "2", "Accepted reschedules allowed per session"},
	PolicyRescheduleMinNoticeHours:  {models.PolicyTypeInteger, "12", "Minimum notice for a reschedule proposal"},
}

type policyReader interface {
	GetByKey(ctx context.Context, key string) (*models.PolicyParameter, error)
}

type policyWriter interface {
	policyReader
	List(ctx context.Context) ([]models.PolicyParameter, error)
	Upsert(ctx context.Context, key, value, policyType string, description *string) (*models.PolicyParameter, error)
}

type PolicyService struct {
	repo   policyWriter
	logger zerolog.Logger
}

func NewPolicyService(repo *repository.PolicyRepository, logger zerolog.Logger) *PolicyService {
	return &PolicyService{repo: repo, logger: logger}
}

// IntValue reads a policy on every call. Missing rows fall back silently;
// malformed stored values fall back with a warning.
func (s *PolicyService) IntValue(ctx context.Context, key string) int {
	fallback, _ := strconv.Atoi(policyDefaults[key].value)
	raw, ok := s.storedValue(ctx, key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn().Str("policy_key", key).Str("value", raw).
			Msg("unparseable policy value, using default")
		return fallback
	}
	return parsed
}

func (s *PolicyService) BoolValue(ctx context.Context, key string) bool {
	fallback, _ := strconv.ParseBool(policyDefaults[key].value)
	raw, ok := s.storedValue(ctx, key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn().Str("policy_key", key).Str("value", raw).
			Msg("unparseable policy value, using default")
		return fallback
	}
	return parsed
}

func (s *PolicyService) StringValue(ctx context.Context, key string) string {
	raw, ok := s.storedValue(ctx, key)
	if !ok {
		return policyDefaults[key].value
	}
	return raw
}

func (s *PolicyService) storedValue(ctx context.Context, key string) (string, bool) {
	param, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().Err(err).Str("policy_key", key).Msg("policy read failed, using default")
		}
		return "", false
	}
	return param.PolicyValue, true
}

// CancellationPolicy bundles the tiered-refund parameters the engine reads
// together for each cancel.
type CancellationPolicy struct {
	FreeCancellationHours int
	CutoffHours           int
	PartialRefundPct      int
	LateRefundPct         int
}

func (s *PolicyService) CancellationPolicy(ctx context.Context) CancellationPolicy {
	return CancellationPolicy{
		FreeCancellationHours: s.IntValue(ctx, PolicyFreeCancellationHours),
		CutoffHours:           s.IntValue(ctx, PolicyCancellationCutoffHours),
		PartialRefundPct:      s.IntValue(ctx, PolicyPartialRefundPercentage),
		LateRefundPct:         s.IntValue(ctx, PolicyLateCancellationRefundPct),
	}
}

// EffectivePolicies returns the resolved values for the keys relevant to the
// given role, merging stored rows over defaults.
func (s *PolicyService) EffectivePolicies(ctx context.Context, role models.Role) map[string]any {
	keys := []string{
		PolicyFreeCancellationHours,
		PolicyCancellationCutoffHours,
		PolicyPartialRefundPercentage,
		PolicyLateCancellationRefundPct,
		PolicyMaxReschedulesPerSession,
		PolicyRescheduleMinNoticeHours,
	}
	if role == models.RoleMentor {
		keys = append(keys, PolicyNoShowReportWindowHours)
	}

	effective := make(map[string]any, len(keys))
	for _, key := range keys {
		effective[key] = s.IntValue(ctx, key)
	}
	return effective
}

func (s *PolicyService) ListPolicies(ctx context.Context) ([]models.PolicyParameter, error) {
	return s.repo.List(ctx)
}

// UpsertPolicy validates the value against the declared type before writing.
// Only keys with a compiled-in default may be set, so the engine never reads
// a key it has no fallback for.
func (s *PolicyService) UpsertPolicy(
	ctx context.Context,
	key string,
	value string,
	policyType string,
	description *string,
) (*models.PolicyParameter, error) {
	def, ok := policyDefaults[key]
	if !ok {
		return nil, ErrUnknownPolicy
	}
	if policyType == "" {
		policyType = def.policyType
	}
	if !models.ValidPolicyType(policyType) || policyType != def.policyType {
		return nil, ErrInvalidPolicyValue
	}

	switch policyType {
	case models.PolicyTypeInteger:
		if _, err := strconv.Atoi(value); err != nil {
			return nil, ErrInvalidPolicyValue
		}
	case models.PolicyTypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return nil, ErrInvalidPolicyValue
		}
	}

	if description == nil {
		description = &def.description
	}
	return s.repo.Upsert(ctx, key, value, policyType, description)
}
