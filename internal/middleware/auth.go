package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/pkg/utils"
)

const actorKey = "actor"

// AuthRequired validates the bearer token once and stores a typed Actor
// capability. Handlers never look at raw token claims.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Invalid authorization header format",
			})
		}

		claims, err := utils.ValidateToken(parts[1], secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Invalid or expired token",
			})
		}

		userID, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Invalid or expired token",
			})
		}
		role, ok := models.ParseRole(claims.Role)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Invalid or expired token",
			})
		}

		c.Locals(actorKey, models.Actor{ID: userID, Role: role})
		return c.Next()
	}
}

// RequireRole composes after AuthRequired to restrict a route group to the
// given roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "error": "Unauthenticated",
			})
		}
		for _, role := range roles {
			if actor.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false, "error": "Forbidden",
		})
	}
}

func ActorFromCtx(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}

// SetActor exists for handler tests that bypass AuthRequired.
func SetActor(c *fiber.Ctx, actor models.Actor) {
	c.Locals(actorKey, actor)
}
