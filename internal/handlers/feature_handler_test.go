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

type stubFeatureGate struct {
	access       *models.FeatureAccess
	usage        *models.FeatureUsage
	err          error
	lastFeature  string
	lastAudience string
	lastDelta    int64
	lastKey      string
}

func (s *stubFeatureGate) CheckFeatureAccess(_ context.Context, _ int64, featureKey string, audience string) (*models.FeatureAccess, error) {
	s.lastFeature = featureKey
	s.lastAudience = audience
	return s.access, s.err
}

func (s *stubFeatureGate) TrackFeatureUsage(_ context.Context, _ int64, featureKey string, delta int64, _ string, _ *int64, idempotencyKey string, audience string) (*models.FeatureUsage, error) {
	s.lastFeature = featureKey
	s.lastDelta = delta
	s.lastKey = idempotencyKey
	s.lastAudience = audience
	return s.usage, s.err
}

func featureTestApp(gate *stubFeatureGate) *fiber.App {
	handler := &FeatureHandler{service: gate}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetActor(c, models.Actor{ID: 42, Role: models.RoleMentee})
		return c.Next()
	})
	app.Get("/features/:key/access", handler.CheckAccess)
	app.Post("/features/:key/usage", handler.TrackUsage)
	return app
}

func TestCheckAccessForwardsKeyAndAudience(t *testing.T) {
	gate := &stubFeatureGate{access: &models.FeatureAccess{HasAccess: true}}
	app := featureTestApp(gate)

	req := httptest.NewRequest(http.MethodGet, "/features/priority_booking/access?audience=mentee", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gate.lastFeature != "priority_booking" || gate.lastAudience != "mentee" {
		t.Fatalf("unexpected forwarding: %q / %q", gate.lastFeature, gate.lastAudience)
	}
}

func TestCheckAccessAmbiguousAudienceReturnsConflict(t *testing.T) {
	gate := &stubFeatureGate{err: services.ErrAmbiguousAudience}
	app := featureTestApp(gate)

	req := httptest.NewRequest(http.MethodGet, "/features/priority_booking/access", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestTrackUsageDefaultsDeltaToOne(t *testing.T) {
	gate := &stubFeatureGate{usage: &models.FeatureUsage{UsedCount: 1}}
	app := featureTestApp(gate)

	req := httptest.NewRequest(http.MethodPost, "/features/sessions_per_month/usage", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gate.lastDelta != 1 {
		t.Fatalf("expected delta 1, got %d", gate.lastDelta)
	}
}

func TestTrackUsageForwardsIdempotencyKey(t *testing.T) {
	gate := &stubFeatureGate{usage: &models.FeatureUsage{UsedCount: 3}}
	app := featureTestApp(gate)

	req := httptest.NewRequest(http.MethodPost, "/features/sessions_per_month/usage", strings.NewReader(`{
		"delta": 2,
		"idempotency_key": "f0b9c178-0c44-4f0e-9a35-1f6f3bfa52a7"
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
	if gate.lastDelta != 2 {
		t.Fatalf("expected delta 2, got %d", gate.lastDelta)
	}
	if gate.lastKey != "f0b9c178-0c44-4f0e-9a35-1f6f3bfa52a7" {
		t.Fatalf("idempotency key not forwarded: %q", gate.lastKey)
	}
}

func TestTrackUsageNoSubscriptionReturnsForbidden(t *testing.T) {
	gate := &stubFeatureGate{err: services.ErrNoActiveSubscription}
	app := featureTestApp(gate)

	req := httptest.NewRequest(http.MethodPost, "/features/sessions_per_month/usage", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
