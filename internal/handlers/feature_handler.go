package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type featureGateService interface {
	CheckFeatureAccess(ctx context.Context, userID int64, featureKey string, audience string) (*models.FeatureAccess, error)
	TrackFeatureUsage(ctx context.Context, userID int64, featureKey string, delta int64, resourceType string, resourceID *int64, idempotencyKey string, audience string) (*models.FeatureUsage, error)
}

type FeatureHandler struct {
	service featureGateService
}

func NewFeatureHandler(service *services.FeatureGateService) *FeatureHandler {
	return &FeatureHandler{service: service}
}

type trackUsageRequest struct {
	Delta          int64  `json:"delta" validate:"omitempty,gt=0"`
	ResourceType   string `json:"resource_type"`
	ResourceID     *int64 `json:"resource_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *FeatureHandler) CheckAccess(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	featureKey := strings.TrimSpace(c.Params("key"))
	if featureKey == "" {
		return respondError(c, fiber.StatusBadRequest, "Invalid feature key")
	}

	access, err := h.service.CheckFeatureAccess(c.Context(), actor.ID, featureKey, c.Query("audience"))
	if err != nil {
		return mapFeatureError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"access": access})
}

func (h *FeatureHandler) TrackUsage(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	featureKey := strings.TrimSpace(c.Params("key"))
	if featureKey == "" {
		return respondError(c, fiber.StatusBadRequest, "Invalid feature key")
	}

	var req trackUsageRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "delta must be greater than 0")
		}
	}
	if req.Delta == 0 {
		req.Delta = 1
	}

	usage, err := h.service.TrackFeatureUsage(
		c.Context(), actor.ID, featureKey, req.Delta,
		req.ResourceType, req.ResourceID, req.IdempotencyKey, c.Query("audience"),
	)
	if err != nil {
		return mapFeatureError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"usage": usage})
}

func mapFeatureError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAmbiguousAudience):
		return respondError(c, fiber.StatusConflict, "Multiple subscriptions match; specify audience=mentor or audience=mentee")
	case errors.Is(err, services.ErrNoActiveSubscription):
		return respondError(c, fiber.StatusForbidden, "No active subscription")
	case errors.Is(err, services.ErrFeatureNotInPlan):
		return respondError(c, fiber.StatusForbidden, "Feature not included in plan")
	case errors.Is(err, services.ErrInvalidInput):
		return respondError(c, fiber.StatusBadRequest, "Invalid usage payload")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to evaluate feature access")
	}
}
