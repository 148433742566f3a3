package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type bookingLifecycleService interface {
	BookSession(ctx context.Context, menteeID int64, input services.BookSessionInput) (*models.Session, error)
	ListSessions(ctx context.Context, actor models.Actor, filter repository.SessionListFilter) ([]models.Session, error)
	GetSession(ctx context.Context, actor models.Actor, sessionID int64) (*models.Session, error)
	CancelSession(ctx context.Context, actor models.Actor, sessionID int64, reason *string, meta models.RequestMeta) (*models.Session, error)
	CompleteSession(ctx context.Context, actor models.Actor, sessionID int64, reason *string, actualDuration *int, meta models.RequestMeta) (*models.Session, error)
	MarkNoShow(ctx context.Context, actor models.Actor, sessionID int64, meta models.RequestMeta) (*models.Session, error)
	AcceptReassignment(ctx context.Context, actor models.Actor, sessionID int64, meta models.RequestMeta) (*models.Session, error)
	RejectReassignment(ctx context.Context, actor models.Actor, sessionID int64, reason *string, meta models.RequestMeta) (*models.Session, error)
	SelectAlternativeMentor(ctx context.Context, actor models.Actor, sessionID int64, newMentorID int64, scheduledAt *time.Time, meta models.RequestMeta) (*models.Session, error)
	ProposeReschedule(ctx context.Context, actor models.Actor, sessionID int64, proposedTime time.Time, meta models.RequestMeta) (*models.RescheduleRequest, error)
	RespondReschedule(ctx context.Context, actor models.Actor, sessionID int64, decision string, counterTime *time.Time, note *string, meta models.RequestMeta) (*models.RescheduleRequest, error)
	WithdrawReschedule(ctx context.Context, actor models.Actor, sessionID int64, meta models.RequestMeta) (*models.RescheduleRequest, error)
}

type BookingHandler struct {
	service bookingLifecycleService
}

func NewBookingHandler(service *services.LifecycleService) *BookingHandler {
	return &BookingHandler{service: service}
}

type bookSessionRequest struct {
	MentorID        int64  `json:"mentor_id" validate:"required,gt=0"`
	ScheduledAt     string `json:"scheduled_at" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	MeetingType     string `json:"meeting_type" validate:"required,oneof=video audio chat"`
}

type cancelSessionRequest struct {
	Reason *string `json:"reason"`
}

type completeSessionRequest struct {
	ActualDuration *int `json:"actual_duration" validate:"omitempty,gt=0"`
}

type rejectReassignmentRequest struct {
	Reason *string `json:"reason"`
}

type selectAlternativeMentorRequest struct {
	NewMentorID int64   `json:"new_mentor_id" validate:"required,gt=0"`
	ScheduledAt *string `json:"scheduled_at"`
}

type proposeRescheduleRequest struct {
	ProposedTime string `json:"proposed_time" validate:"required"`
}

type respondRescheduleRequest struct {
	Decision     string  `json:"decision" validate:"required,oneof=accept reject counter"`
	ProposedTime *string `json:"proposed_time"`
	Note         *string `json:"note"`
}

func (h *BookingHandler) BookSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentee() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	var req bookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid booking payload")
	}

	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "scheduled_at must be a valid RFC3339 timestamp")
	}

	session, err := h.service.BookSession(c.Context(), actor.ID, services.BookSessionInput{
		MentorID:        req.MentorID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		MeetingType:     req.MeetingType,
	})
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusCreated, fiber.Map{"session": session})
}

func (h *BookingHandler) ListSessions(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || actor.Role.IsAdmin() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return respondError(c, fiber.StatusBadRequest, "timeframe must be upcoming or past")
	}

	sessions, err := h.service.ListSessions(c.Context(), actor, repository.SessionListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Timeframe: timeframe,
	})
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"sessions": sessions})
}

func (h *BookingHandler) GetSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	session, err := h.service.GetSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) CancelSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req cancelSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	session, err := h.service.CancelSession(c.Context(), actor, sessionID, req.Reason, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) CompleteSession(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentor() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req completeSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "actual_duration must be greater than 0")
		}
	}

	session, err := h.service.CompleteSession(c.Context(), actor, sessionID, nil, req.ActualDuration, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) MarkNoShow(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentor() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	session, err := h.service.MarkNoShow(c.Context(), actor, sessionID, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) AcceptReassignment(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentee() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	session, err := h.service.AcceptReassignment(c.Context(), actor, sessionID, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) RejectReassignment(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentee() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req rejectReassignmentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	session, err := h.service.RejectReassignment(c.Context(), actor, sessionID, req.Reason, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) SelectAlternativeMentor(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || !actor.Role.IsMentee() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req selectAlternativeMentorRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "new_mentor_id is required")
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ScheduledAt))
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "scheduled_at must be a valid RFC3339 timestamp")
		}
		scheduledAt = &parsed
	}

	session, err := h.service.SelectAlternativeMentor(
		c.Context(), actor, sessionID, req.NewMentorID, scheduledAt, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"session": session})
}

func (h *BookingHandler) ProposeReschedule(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || actor.Role.IsAdmin() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req proposeRescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "proposed_time is required")
	}

	proposedTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ProposedTime))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "proposed_time must be a valid RFC3339 timestamp")
	}

	request, err := h.service.ProposeReschedule(c.Context(), actor, sessionID, proposedTime, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusCreated, fiber.Map{"reschedule_request": request})
}

func (h *BookingHandler) RespondReschedule(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || actor.Role.IsAdmin() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	var req respondRescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "decision must be accept, reject, or counter")
	}

	var counterTime *time.Time
	if req.ProposedTime != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ProposedTime))
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "proposed_time must be a valid RFC3339 timestamp")
		}
		counterTime = &parsed
	}

	request, err := h.service.RespondReschedule(
		c.Context(), actor, sessionID, req.Decision, counterTime, req.Note, requestMeta(c),
	)
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"reschedule_request": request})
}

func (h *BookingHandler) WithdrawReschedule(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok || actor.Role.IsAdmin() {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	sessionID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid session id")
	}

	request, err := h.service.WithdrawReschedule(c.Context(), actor, sessionID, requestMeta(c))
	if err != nil {
		return mapLifecycleError(c, err)
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"reschedule_request": request})
}

func mapLifecycleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrMentorNotVerified),
		errors.Is(err, services.ErrNoPendingReassignment),
		errors.Is(err, services.ErrNoPendingReschedule),
		errors.Is(err, services.ErrReschedulePending),
		errors.Is(err, services.ErrNoShowTooEarly),
		errors.Is(err, services.ErrNoShowWindowClosed),
		errors.Is(err, services.ErrRescheduleLimit),
		errors.Is(err, services.ErrRescheduleNotice):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrNotInitiator):
		return respondError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrConflict):
		return respondError(c, fiber.StatusConflict, "Requested time conflicts with another session")
	case errors.Is(err, services.ErrMentorNotFound):
		return respondError(c, fiber.StatusNotFound, "Mentor not found")
	case errors.Is(err, pgx.ErrNoRows):
		return respondError(c, fiber.StatusNotFound, "Session not found")
	default:
		return respondError(c, fiber.StatusInternalServerError, "Failed to process session request")
	}
}
