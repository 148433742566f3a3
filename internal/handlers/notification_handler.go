package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/live"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/middleware"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/services"
)

type notificationLister interface {
	List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (bool, error)
}

type NotificationHandler struct {
	service notificationLister
	hub     *live.Hub
}

func NewNotificationHandler(service *services.NotificationService, hub *live.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.Query("limit"))

	notifications, err := h.service.List(c.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch notifications")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}

	notificationID, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid notification id")
	}

	updated, err := h.service.MarkRead(c.Context(), actor.ID, notificationID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to mark notification read")
	}
	if !updated {
		return respondError(c, fiber.StatusNotFound, "Notification not found")
	}

	return respondData(c, fiber.StatusOK, fiber.Map{"read": true})
}

// UpgradeRequired rejects plain HTTP requests on the websocket route. The
// authenticated actor is stashed in locals so the upgraded connection handler
// can still see it.
func (h *NotificationHandler) UpgradeRequired(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	actor, ok := middleware.ActorFromCtx(c)
	if !ok {
		return respondError(c, fiber.StatusForbidden, "Forbidden")
	}
	c.Locals("userID", actor.ID)
	return c.Next()
}

// Stream is the live notification feed. The connection is one-way: events go
// out, inbound frames are drained and dropped.
func (h *NotificationHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(int64)
		if !ok {
			_ = conn.Close()
			return
		}

		client := live.NewClient(h.hub, conn, userID)
		h.hub.Register(client)

		go client.WritePump()
		client.ReadPump()
	})
}
