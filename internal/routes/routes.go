package routes

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/config"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/handlers"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/live"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger zerolog.Logger) error {
	userRepo := repository.NewUserRepository(db)
	mentorProfileRepo := repository.NewMentorProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	hub := live.NewHub(logger)
	go hub.Run()

	var broker live.Broker = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		broker = live.NewRedisBroker(client, hub, logger)
	}

	policyService := services.NewPolicyService(policyRepo, logger)
	notificationService := services.NewNotificationService(notificationRepo, broker, logger)
	lifecycleService := services.NewLifecycleService(
		db, sessionRepo, userRepo, mentorProfileRepo, policyService, notificationService, logger,
	)
	featureGateService := services.NewFeatureGateService(db, subscriptionRepo, logger)

	authHandler := handlers.NewAuthHandler(db, userRepo, cfg.JWTSecret)
	bookingHandler := handlers.NewBookingHandler(lifecycleService)
	adminHandler := handlers.NewAdminHandler(lifecycleService, policyService, auditRepo, mentorProfileRepo)
	policyHandler := handlers.NewPolicyHandler(policyService)
	featureHandler := handlers.NewFeatureHandler(featureGateService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	bookings := authProtected.Group("/bookings")
	bookings.Post("", bookingHandler.BookSession)
	bookings.Get("", bookingHandler.ListSessions)
	bookings.Get("/:id", bookingHandler.GetSession)
	bookings.Post("/:id/cancel", bookingHandler.CancelSession)
	bookings.Post("/:id/complete", bookingHandler.CompleteSession)
	bookings.Post("/:id/no-show", bookingHandler.MarkNoShow)
	bookings.Post("/:id/accept-reassignment", bookingHandler.AcceptReassignment)
	bookings.Post("/:id/reject-reassignment", bookingHandler.RejectReassignment)
	bookings.Post("/:id/select-alternative-mentor", bookingHandler.SelectAlternativeMentor)
	bookings.Post("/:id/reschedule", bookingHandler.ProposeReschedule)
	bookings.Post("/:id/reschedule/respond", bookingHandler.RespondReschedule)
	bookings.Post("/:id/reschedule/withdraw", bookingHandler.WithdrawReschedule)

	authProtected.Get("/session-policies", policyHandler.EffectivePolicies)

	features := authProtected.Group("/features")
	features.Get("/:key/access", featureHandler.CheckAccess)
	features.Post("/:key/usage", featureHandler.TrackUsage)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	admin := authProtected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Post("/sessions/:id/cancel", adminHandler.CancelSession)
	admin.Post("/sessions/:id/complete", adminHandler.CompleteSession)
	admin.Post("/sessions/:id/reassign", adminHandler.ReassignSession)
	admin.Post("/sessions/:id/refund", adminHandler.RefundSession)
	admin.Post("/sessions/:id/clear-no-show", adminHandler.ClearNoShow)
	admin.Get("/sessions/:id/audit-logs", adminHandler.ListAuditLogs)
	admin.Get("/policies", adminHandler.ListPolicies)
	admin.Put("/policies/:key", adminHandler.UpsertPolicy)
	admin.Put("/mentors/:id/verification", adminHandler.VerifyMentor)

	api.Use("/v1/ws/notifications", middleware.AuthRequired(cfg.JWTSecret), notificationHandler.UpgradeRequired)
	api.Get("/v1/ws/notifications", notificationHandler.Stream())

	return nil
}
