package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type adminLifecycleService interface {
	AdminCancelSession(ctx context.Context, actor models.Actor, sessionID int64, reason string, refundPercentage int, notifyParties bool, meta models.RequestMeta) (*models.Session, error)
	CompleteSession(ctx context.Context, actor models.Actor, sessionID int64, reason *string, actualDuration *int, meta models.RequestMeta) (*models.Session, error)
	ReassignSession(ctx context.Context, actor models.Actor, sessionID int64, newMentorID int64, reason string, requireMenteeAcceptance bool, notifyParties bool, meta models.RequestMeta) (*models.Session, error)
	ManualRefund(ctx context.Context, actor models.Actor, sessionID int64, amount float64, reason string, refundType string, meta models.RequestMeta) (*models.Session, error)
	ClearNoShow(ctx context.Context, actor models.Actor, sessionID int64, reason string, restoreStatus string, meta models.RequestMeta) (*models.Session, error)
}

type adminPolicyService interface {
	ListPolicies(ctx context.Context) ([]models.PolicyParameter, error)
	UpsertPolicy(ctx context.Context, key, value, policyType string, description *string) (*models.PolicyParameter, error)
}

type auditLogReader interface {
	ListBySessionID(ctx context.Context, sessionID int64) ([]models.AuditLogEntry, error)
}

type mentorVerifier interface {
	UpdateVerificationStatus(ctx context.Context, userID int64, status string) (*models.MentorProfile, error)
}

type AdminHandler struct {
	lifecycle adminLifecycleService
	policies  adminPolicyService
	auditLogs auditLogReader
	mentors   mentorVerifier
}

func NewAdminHandler(
	lifecycle adminLifecycleService,
	policies adminPolicyService,
	auditLogs auditLogReader,
	mentors mentorVerifier,
) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		policies:  policies,
		auditLogs: auditLogs,
		mentors:   mentors,
	}
}

type adminCancelRequest struct {
	Reason           string `json:"reason" validate:"required"`
	RefundPercentage int    `json:"refund_percentage" validate:"gte=0,lte=100"`
	NotifyParties    *bool  `json:"notify_parties"`
}

type adminCompleteRequest struct {
	Reason         string `json:"reason" validate:"required"`
	ActualDuration *int   `json:"actual_duration" validate:"omitempty,gt=0"`
}

type adminReassignRequest struct {
	NewMentorID             int64  `json:"new_mentor_id" validate:"required,gt=0"`
	Reason                  string `json:"reason" validate:"required"`
	RequireMenteeAcceptance bool   `json:"require_mentee_acceptance"`
	NotifyParties           *bool  `json:"notify_parties"`
}

type adminRefundRequest struct {
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Reason     string  `json:"reason" validate:"required"`
	RefundType string  `json:"refund_type" validate:"required,oneof=full partial bonus"`
}

type adminClearNoShowRequest struct {
	Reason        string `json:"reason" validate:"required"`
	RestoreStatus string `json:"restore_status" validate:"required,oneof=completed cancelled"`
}

type upsertPolicyRequest struct {
	Value       string  `json:"value" validate:"required"`
	Type        string  `json:"type" validate:"omitempty,oneof=integer boolean string json"`
	Description *string `json:"description"`
}

type verifyMentorRequest struct {
	Status string `json:"status" validate:"required,oneof=pending verified rejected"`
}

func (h *AdminHandler) CancelSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req adminCancelRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "reason is required and refund_percentage must be 0-100")
	}

	notify := true
	if req.NotifyParties != nil {
		notify = *req.NotifyParties
	}

	session, err := h.lifecycle.AdminCancelSession(
		c.Context(), actor, sessionID, req.Reason, req.RefundPercentage, notify, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *AdminHandler) CompleteSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req adminCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "reason is required")
	}

	session, err := h.lifecycle.CompleteSession(
		c.Context(), actor, sessionID, &req.Reason, req.ActualDuration, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *AdminHandler) ReassignSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req adminReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "new_mentor_id and reason are required")
	}

	notify := true
	if req.NotifyParties != nil {
		notify = *req.NotifyParties
	}

	session, err := h.lifecycle.ReassignSession(
		c.Context(), actor, sessionID, req.NewMentorID, req.Reason,
		req.RequireMenteeAcceptance, notify, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *AdminHandler) RefundSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req adminRefundRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "amount, reason and refund_type are required")
	}

	session, err := h.lifecycle.ManualRefund(
		c.Context(), actor, sessionID, req.Amount, req.Reason, req.RefundType, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *AdminHandler) ClearNoShow(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req adminClearNoShowRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "reason is required and restore_status must be completed or cancelled")
	}

	session, err := h.lifecycle.ClearNoShow(
		c.Context(), actor, sessionID, req.Reason, req.RestoreStatus, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	entries, err := h.auditLogs.ListBySessionID(c.Context(), sessionID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch audit logs")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"audit_logs": entries})
}

func (h *AdminHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.policies.ListPolicies(c.Context())
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch policies")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"policies": policies})
}

func (h *AdminHandler) UpsertPolicy(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("key"))
	if key == "" {
		return respondError(c, fiber.StatusBadRequest, "Invalid policy key")
	}

	var req upsertPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid policy payload")
	}

	policy, err := h.policies.UpsertPolicy(c.Context(), key, req.Value, req.Type, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPolicy):
			return respondError(c, fiber.StatusNotFound, "Unknown policy key")
		case errors.Is(err, services.ErrInvalidPolicyValue):
			return respondError(c, fiber.StatusBadRequest, err.Error())
		default:
			return respondError(c, fiber.StatusInternalServerError, "Failed to update policy")
		}
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"policy": policy})
}

func (h *AdminHandler) VerifyMentor(c *fiber.Ctx) error {
	mentorID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid mentor id")
	}

	var req verifyMentorRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "status must be pending, verified, or rejected")
	}

	profile, err := h.mentors.UpdateVerificationStatus(c.Context(), mentorID, req.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondError(c, fiber.StatusNotFound, "Mentor profile not found")
		}
		return respondError(c, fiber.StatusInternalServerError, "Failed to update verification status")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"mentor_profile": profile})
}
