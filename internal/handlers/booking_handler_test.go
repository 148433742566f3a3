package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type stubLifecycleService struct {
	session        *models.Session
	sessions       []models.Session
	reschedule     *models.RescheduleRequest
	err            error
	lastActor      models.Actor
	lastSessionID  int64
	lastBookInput  services.BookSessionInput
	lastListFilter repository.SessionListFilter
	lastReason     *string
	lastDecision   string
	lastMentorID   int64
}

func (s *stubLifecycleService) BookSession(_ context.Context, menteeID int64, input services.BookSessionInput) (*models.Session, error) {
	s.lastActor = models.Actor{ID: menteeID, Role: models.RoleMentee}
	s.lastBookInput = input
	return s.session, s.err
}

func (s *stubLifecycleService) ListSessions(_ context.Context, actor models.Actor, filter repository.SessionListFilter) ([]models.Session, error) {
	s.lastActor = actor
	s.lastListFilter = filter
	return s.sessions, s.err
}

func (s *stubLifecycleService) GetSession(_ context.Context, actor models.Actor, sessionID int64) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.session, s.err
}

func (s *stubLifecycleService) CancelSession(_ context.Context, actor models.Actor, sessionID int64, reason *string, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.session, s.err
}

func (s *stubLifecycleService) CompleteSession(_ context.Context, actor models.Actor, sessionID int64, _ *string, _ *int, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.session, s.err
}

func (s *stubLifecycleService) MarkNoShow(_ context.Context, actor models.Actor, sessionID int64, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.session, s.err
}

func (s *stubLifecycleService) AcceptReassignment(_ context.Context, actor models.Actor, sessionID int64, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.session, s.err
}

func (s *stubLifecycleService) RejectReassignment(_ context.Context, actor models.Actor, sessionID int64, reason *string, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.session, s.err
}

func (s *stubLifecycleService) SelectAlternativeMentor(_ context.Context, actor models.Actor, sessionID int64, newMentorID int64, _ *time.Time, _ models.RequestMeta) (*models.Session, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	s.lastMentorID = newMentorID
	return s.session, s.err
}

func (s *stubLifecycleService) ProposeReschedule(_ context.Context, actor models.Actor, sessionID int64, _ time.Time, _ models.RequestMeta) (*models.RescheduleRequest, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.reschedule, s.err
}

func (s *stubLifecycleService) RespondReschedule(_ context.Context, actor models.Actor, sessionID int64, decision string, _ *time.Time, _ *string, _ models.RequestMeta) (*models.RescheduleRequest, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	s.lastDecision = decision
	return s.reschedule, s.err
}

func (s *stubLifecycleService) WithdrawReschedule(_ context.Context, actor models.Actor, sessionID int64, _ models.RequestMeta) (*models.RescheduleRequest, error) {
	s.lastActor = actor
	s.lastSessionID = sessionID
	return s.reschedule, s.err
}

func bookingTestApp(service *stubLifecycleService, actor models.Actor) *fiber.App {
	handler := &BookingHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetActor(c, actor)
		return c.Next()
	})
	app.Post("/api/v1/bookings", handler.BookSession)
	app.Get("/api/v1/bookings", handler.ListSessions)
	app.Get("/api/v1/bookings/:id", handler.GetSession)
	app.Post("/api/v1/bookings/:id/cancel", handler.CancelSession)
	app.Post("/api/v1/bookings/:id/complete", handler.CompleteSession)
	app.Post("/api/v1/bookings/:id/no-show", handler.MarkNoShow)
	app.Post("/api/v1/bookings/:id/reject-reassignment", handler.RejectReassignment)
	app.Post("/api/v1/bookings/:id/select-alternative-mentor", handler.SelectAlternativeMentor)
	app.Post("/api/v1/bookings/:id/reschedule", handler.ProposeReschedule)
	app.Post("/api/v1/bookings/:id/reschedule/respond", handler.RespondReschedule)
	return app
}

func TestBookSessionReturnsCreatedSession(t *testing.T) {
	service := &stubLifecycleService{
		session: &models.Session{ID: 91, MentorID: 7, MenteeID: 42, Status: models.SessionScheduled},
	}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{
		"mentor_id": 7,
		"scheduled_at": "2026-09-15T09:00:00Z",
		"duration_minutes": 60,
		"meeting_type": "video"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastBookInput.MentorID != 7 {
		t.Fatalf("expected mentor id 7, got %d", service.lastBookInput.MentorID)
	}
	if service.lastBookInput.DurationMinutes != 60 {
		t.Fatalf("expected 60 minutes, got %d", service.lastBookInput.DurationMinutes)
	}
}

func TestBookSessionRejectsMentorActor(t *testing.T) {
	service := &stubLifecycleService{}
	app := bookingTestApp(service, models.Actor{ID: 7, Role: models.RoleMentor})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{
		"mentor_id": 7,
		"scheduled_at": "2026-09-15T09:00:00Z",
		"duration_minutes": 60,
		"meeting_type": "video"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookSessionReturnsConflictForOverlap(t *testing.T) {
	service := &stubLifecycleService{err: services.ErrConflict}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{
		"mentor_id": 7,
		"scheduled_at": "2026-09-15T09:00:00Z",
		"duration_minutes": 60,
		"meeting_type": "video"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListSessionsPassesStatusAndTimeframe(t *testing.T) {
	service := &stubLifecycleService{
		sessions: []models.Session{{ID: 5, Status: models.SessionScheduled}},
	}
	app := bookingTestApp(service, models.Actor{ID: 7, Role: models.RoleMentor})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?status=scheduled&timeframe=upcoming", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActor.Role != models.RoleMentor {
		t.Fatalf("expected mentor actor, got %s", service.lastActor.Role)
	}
	if service.lastListFilter.Status != "scheduled" || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}
}

func TestListSessionsRejectsBadTimeframe(t *testing.T) {
	service := &stubLifecycleService{}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?timeframe=yesterday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubLifecycleService{err: pgx.ErrNoRows}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelSessionForwardsReason(t *testing.T) {
	service := &stubLifecycleService{
		session: &models.Session{ID: 55, Status: models.SessionCancelled},
	}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/cancel", strings.NewReader(`{"reason":"schedule clash"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 55 {
		t.Fatalf("expected session 55, got %d", service.lastSessionID)
	}
	if service.lastReason == nil || *service.lastReason != "schedule clash" {
		t.Fatalf("reason not forwarded: %v", service.lastReason)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Session models.Session `json:"session"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Data.Session.Status != models.SessionCancelled {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestCancelSessionInvalidTransitionReturnsBadRequest(t *testing.T) {
	service := &stubLifecycleService{err: services.ErrInvalidStateTransition}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/cancel", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarkNoShowRejectsMenteeActor(t *testing.T) {
	service := &stubLifecycleService{}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/no-show", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMarkNoShowWindowClosedReturnsBadRequest(t *testing.T) {
	service := &stubLifecycleService{err: services.ErrNoShowWindowClosed}
	app := bookingTestApp(service, models.Actor{ID: 7, Role: models.RoleMentor})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/no-show", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSelectAlternativeMentorForwardsNewMentor(t *testing.T) {
	service := &stubLifecycleService{
		session: &models.Session{ID: 55, MentorID: 9, Status: models.SessionScheduled},
	}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/select-alternative-mentor", strings.NewReader(`{"new_mentor_id":9}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastMentorID != 9 {
		t.Fatalf("expected new mentor 9, got %d", service.lastMentorID)
	}
}

func TestProposeRescheduleRejectsBadTimestamp(t *testing.T) {
	service := &stubLifecycleService{}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/reschedule", strings.NewReader(`{"proposed_time":"tomorrow"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRespondRescheduleForwardsDecision(t *testing.T) {
	service := &stubLifecycleService{
		reschedule: &models.RescheduleRequest{ID: 3, SessionID: 55, Status: models.RescheduleAccepted},
	}
	app := bookingTestApp(service, models.Actor{ID: 7, Role: models.RoleMentor})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/reschedule/respond", strings.NewReader(`{"decision":"accept"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastDecision != "accept" {
		t.Fatalf("expected accept decision, got %q", service.lastDecision)
	}
}

func TestRespondRescheduleByInitiatorReturnsForbidden(t *testing.T) {
	service := &stubLifecycleService{err: services.ErrForbidden}
	app := bookingTestApp(service, models.Actor{ID: 42, Role: models.RoleMentee})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/55/reschedule/respond", strings.NewReader(`{"decision":"accept"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
