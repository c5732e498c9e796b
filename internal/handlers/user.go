package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/utils"
)

// UserHandler manages accounts. Every route is admin only.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers returns registered users with pagination and search.
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.UserFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Role:   policy.Role(c.Query("role")),
	}
	if v := c.Query("isActive"); v != "" {
		active := c.QueryBool("isActive")
		filter.Active = &active
	}

	users, total, err := h.users.List(c.UserContext(), filter, pg)
	if err != nil {
		return err
	}
	return paginated(c, users, pg, total)
}

// GetUser returns a single user.
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}

	user, err := h.users.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// CreateUser creates an account with a chosen password and role.
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, err := h.users.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser edits name, phone, email or role.
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}

	var req services.UpdateUserInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	user, err := h.users.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

type activeRequest struct {
	IsActive *bool `json:"isActive"`
}

// SetActive enables or disables an account.
func (h *UserHandler) SetActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}

	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}
	if req.IsActive == nil {
		return invalidField("isActive", "isActive is required")
	}

	user, err := h.users.SetActive(c.UserContext(), middleware.Subject(c), id, *req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// DeleteUser removes an account and its access grants.
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "user")
	if err != nil {
		return err
	}

	if err := h.users.Delete(c.UserContext(), middleware.Subject(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "user deleted"})
}
