package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type stubAdminLifecycle struct {
	session       *models.Session
	err           error
	lastSessionID int64
	lastReason    string
	lastPct       int
	lastNotify    bool
	lastMentorID  int64
	lastAmount    float64
	lastType      string
	lastRestore   string
}

func (s *stubAdminLifecycle) AdminCancelSession(_ context.Context, _ models.Actor, sessionID int64, reason string, refundPercentage int, notifyParties bool, _ models.RequestMeta) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastReason = reason
	s.lastPct = refundPercentage
	s.lastNotify = notifyParties
	return s.session, s.err
}

func (s *stubAdminLifecycle) CompleteSession(_ context.Context, _ models.Actor, sessionID int64, reason *string, _ *int, _ models.RequestMeta) (*models.Session, error) {
	s.lastSessionID = sessionID
	if reason != nil {
		s.lastReason = *reason
	}
	return s.session, s.err
}

func (s *stubAdminLifecycle) ReassignSession(_ context.Context, _ models.Actor, sessionID int64, newMentorID int64, reason string, _ bool, notifyParties bool, _ models.RequestMeta) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastMentorID = newMentorID
	s.lastReason = reason
	s.lastNotify = notifyParties
	return s.session, s.err
}

func (s *stubAdminLifecycle) ManualRefund(_ context.Context, _ models.Actor, sessionID int64, amount float64, reason string, refundType string, _ models.RequestMeta) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastAmount = amount
	s.lastReason = reason
	s.lastType = refundType
	return s.session, s.err
}

func (s *stubAdminLifecycle) ClearNoShow(_ context.Context, _ models.Actor, sessionID int64, reason string, restoreStatus string, _ models.RequestMeta) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastReason = reason
	s.lastRestore = restoreStatus
	return s.session, s.err
}

type stubAdminPolicies struct {
	policies []models.PolicyParameter
	policy   *models.PolicyParameter
	err      error
	lastKey  string
	lastType string
}

func (s *stubAdminPolicies) ListPolicies(_ context.Context) ([]models.PolicyParameter, error) {
	return s.policies, s.err
}

func (s *stubAdminPolicies) UpsertPolicy(_ context.Context, key, value, policyType string, _ *string) (*models.PolicyParameter, error) {
	s.lastKey = key
	s.lastType = policyType
	if s.err != nil {
		return nil, s.err
	}
	return &models.PolicyParameter{PolicyKey: key, PolicyValue: value, PolicyType: policyType}, nil
}

type stubAuditReader struct {
	entries []models.AuditLogEntry
	err     error
	lastID  int64
}

func (s *stubAuditReader) ListBySessionID(_ context.Context, sessionID int64) ([]models.AuditLogEntry, error) {
	s.lastID = sessionID
	return s.entries, s.err
}

type stubMentorVerifier struct {
	profile    *models.MentorProfile
	err        error
	lastStatus string
}

func (s *stubMentorVerifier) UpdateVerificationStatus(_ context.Context, _ int64, status string) (*models.MentorProfile, error) {
	s.lastStatus = status
	return s.profile, s.err
}

func adminTestApp(handler *AdminHandler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetActor(c, models.Actor{ID: 1, Role: models.RoleAdmin})
		return c.Next()
	})
	app.Post("/admin/sessions/:id/cancel", handler.CancelSession)
	app.Post("/admin/sessions/:id/reassign", handler.ReassignSession)
	app.Post("/admin/sessions/:id/refund", handler.RefundSession)
	app.Post("/admin/sessions/:id/clear-no-show", handler.ClearNoShow)
	app.Get("/admin/sessions/:id/audit-logs", handler.ListAuditLogs)
	app.Get("/admin/policies", handler.ListPolicies)
	app.Put("/admin/policies/:key", handler.UpsertPolicy)
	app.Put("/admin/mentors/:id/verification", handler.VerifyMentor)
	return app
}

func TestAdminCancelDefaultsToNotifying(t *testing.T) {
	lifecycle := &stubAdminLifecycle{session: &models.Session{ID: 5, Status: models.SessionCancelled}}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/cancel", strings.NewReader(`{
		"reason": "mentor unavailable",
		"refund_percentage": 100
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !lifecycle.lastNotify {
		t.Fatal("expected notify_parties to default to true")
	}
	if lifecycle.lastPct != 100 {
		t.Fatalf("expected 100%% refund, got %d", lifecycle.lastPct)
	}
}

func TestAdminCancelHonorsNotifyOptOut(t *testing.T) {
	lifecycle := &stubAdminLifecycle{session: &models.Session{ID: 5, Status: models.SessionCancelled}}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/cancel", strings.NewReader(`{
		"reason": "cleanup",
		"refund_percentage": 0,
		"notify_parties": false
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastNotify {
		t.Fatal("expected notify_parties false to be forwarded")
	}
}

func TestAdminCancelRequiresReason(t *testing.T) {
	lifecycle := &stubAdminLifecycle{}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/cancel", strings.NewReader(`{"refund_percentage": 50}`))
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

func TestAdminReassignForwardsMentorAndReason(t *testing.T) {
	lifecycle := &stubAdminLifecycle{session: &models.Session{ID: 5, MentorID: 9}}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/reassign", strings.NewReader(`{
		"new_mentor_id": 9,
		"reason": "original mentor suspended"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastMentorID != 9 {
		t.Fatalf("expected mentor 9, got %d", lifecycle.lastMentorID)
	}
	if lifecycle.lastReason != "original mentor suspended" {
		t.Fatalf("reason not forwarded: %q", lifecycle.lastReason)
	}
}

func TestAdminReassignMentorNotVerifiedReturnsBadRequest(t *testing.T) {
	lifecycle := &stubAdminLifecycle{err: services.ErrMentorNotVerified}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/reassign", strings.NewReader(`{
		"new_mentor_id": 9,
		"reason": "swap"
	}`))
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

func TestAdminRefundForwardsAmountAndType(t *testing.T) {
	lifecycle := &stubAdminLifecycle{session: &models.Session{ID: 5}}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/refund", strings.NewReader(`{
		"amount": 25.50,
		"reason": "goodwill",
		"refund_type": "bonus"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastAmount != 25.50 || lifecycle.lastType != "bonus" {
		t.Fatalf("refund not forwarded: %v %q", lifecycle.lastAmount, lifecycle.lastType)
	}
}

func TestAdminRefundRejectsUnknownType(t *testing.T) {
	lifecycle := &stubAdminLifecycle{}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/refund", strings.NewReader(`{
		"amount": 25.50,
		"reason": "goodwill",
		"refund_type": "chargeback"
	}`))
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

func TestAdminClearNoShowForwardsRestoreStatus(t *testing.T) {
	lifecycle := &stubAdminLifecycle{session: &models.Session{ID: 5, Status: models.SessionCompleted}}
	app := adminTestApp(&AdminHandler{lifecycle: lifecycle})

	req := httptest.NewRequest(http.MethodPost, "/admin/sessions/5/clear-no-show", strings.NewReader(`{
		"reason": "mentee provided evidence of attendance",
		"restore_status": "completed"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastRestore != models.SessionCompleted {
		t.Fatalf("expected completed restore, got %q", lifecycle.lastRestore)
	}
}

func TestListAuditLogsReturnsEntries(t *testing.T) {
	audit := &stubAuditReader{
		entries: []models.AuditLogEntry{{ID: 1, SessionID: 5, Action: models.AuditSessionCancelled}},
	}
	app := adminTestApp(&AdminHandler{auditLogs: audit})

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions/5/audit-logs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if audit.lastID != 5 {
		t.Fatalf("expected session 5, got %d", audit.lastID)
	}
}

func TestUpsertPolicyUnknownKeyReturnsNotFound(t *testing.T) {
	policies := &stubAdminPolicies{err: services.ErrUnknownPolicy}
	app := adminTestApp(&AdminHandler{policies: policies})

	req := httptest.NewRequest(http.MethodPut, "/admin/policies/grace_period_hours", strings.NewReader(`{
		"value": "6",
		"type": "integer"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpsertPolicyStoresValue(t *testing.T) {
	policies := &stubAdminPolicies{}
	app := adminTestApp(&AdminHandler{policies: policies})

	req := httptest.NewRequest(http.MethodPut, "/admin/policies/free_cancellation_hours", strings.NewReader(`{
		"value": "48",
		"type": "integer"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if policies.lastKey != "free_cancellation_hours" {
		t.Fatalf("expected key forwarded, got %q", policies.lastKey)
	}
}

func TestUpsertPolicyTypeIsOptional(t *testing.T) {
	policies := &stubAdminPolicies{lastType: "sentinel"}
	app := adminTestApp(&AdminHandler{policies: policies})

	req := httptest.NewRequest(http.MethodPut, "/admin/policies/free_cancellation_hours", strings.NewReader(`{
		"value": "48"
	}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if policies.lastType != "" {
		t.Fatalf("expected empty type forwarded so the stored type applies, got %q", policies.lastType)
	}
}

func TestVerifyMentorForwardsStatus(t *testing.T) {
	mentors := &stubMentorVerifier{
		profile: &models.MentorProfile{UserID: 9, VerificationStatus: models.VerificationVerified},
	}
	app := adminTestApp(&AdminHandler{mentors: mentors})

	req := httptest.NewRequest(http.MethodPut, "/admin/mentors/9/verification", strings.NewReader(`{"status":"verified"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if mentors.lastStatus != models.VerificationVerified {
		t.Fatalf("expected verified, got %q", mentors.lastStatus)
	}
}

func TestVerifyMentorRejectsUnknownStatus(t *testing.T) {
	mentors := &stubMentorVerifier{}
	app := adminTestApp(&AdminHandler{mentors: mentors})

	req := httptest.NewRequest(http.MethodPut, "/admin/mentors/9/verification", strings.NewReader(`{"status":"approved"}`))
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
