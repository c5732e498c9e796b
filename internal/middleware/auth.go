package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/services"
)

const userContextKey = "currentUser"

// AuthMiddleware validates the bearer token and loads the active user into context.
func AuthMiddleware(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.AuthenticateHeader(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		c.Locals(userContextKey, user)
		return c.Next()
	}
}

// AdminOnly rejects authenticated callers without the admin role.
// It must run after AuthMiddleware.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := services.RequireAdmin(GetCurrentUser(c)); err != nil {
			return err
		}
		return c.Next()
	}
}

// GetCurrentUser extracts the authenticated user from context.
func GetCurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userContextKey).(*models.User)
	return user
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	user := GetCurrentUser(c)
	if user == nil {
		return uuid.Nil, false
	}
	return user.ID, true
}

// Subject returns the policy identity of the caller. Anonymous callers get the zero Subject.
func Subject(c *fiber.Ctx) policy.Subject {
	user := GetCurrentUser(c)
	if user == nil {
		return policy.Subject{}
	}
	return user.Subject()
}
