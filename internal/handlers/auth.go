package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	users *services.UserService
	auth  *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, auth *services.AuthService) *AuthHandler {
	return &AuthHandler{users: users, auth: auth}
}

func (h *AuthHandler) withToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.auth.IssueToken(user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	return c.Status(status).JSON(fiber.Map{
		"user":  user,
		"token": token,
	})
}

// Register creates a new user account and signs it in.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, err := h.users.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return h.withToken(c, fiber.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, err := h.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.withToken(c, fiber.StatusOK, user)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(middleware.GetCurrentUser(c))
}

// UpdateProfile edits the caller's own name, phone or password.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req services.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, err := h.users.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Invite creates an account with a temporary password. Admin only.
func (h *AuthHandler) Invite(c *fiber.Ctx) error {
	var req services.InviteInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, password, err := h.users.Invite(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":              user,
		"temporaryPassword": password,
	})
}
