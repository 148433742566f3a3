package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

type effectivePolicyService interface {
	EffectivePolicies(ctx context.Context, role models.Role) map[string]any
}

type PolicyHandler struct {
	service effectivePolicyService
}

func NewPolicyHandler(service effectivePolicyService) *PolicyHandler {
	return &PolicyHandler{service: service}
}

// EffectivePolicies returns the cancellation rules that apply to the
// caller's role. Admins may inspect another role via ?role=.
func (h *PolicyHandler) EffectivePolicies(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	role := actor.Role
	if queried := strings.TrimSpace(c.Query("role")); queried != "" && actor.Role.IsAdmin() {
		parsed, ok := models.ParseRole(queried)
		if !ok {
			return respondError(c, fiber.StatusBadRequest, "role must be mentor or mentee")
		}
		role = parsed
	}

	policies := h.service.EffectivePolicies(c.Context(), role)
	return respondData(c, fiber.StatusOK, fiber.Map{"policies": policies})
}
