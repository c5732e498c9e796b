package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/utils"
)

// NotificationHandler serves the caller's notification inbox and push registrations.
type NotificationHandler struct {
	notifications *services.NotificationService
	users         *services.UserService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *services.NotificationService, users *services.UserService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, users: users}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	items, total, unread, err := h.notifications.List(c.UserContext(), userID, c.QueryBool("unread"), pg)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":        items,
		"unreadCount": unread,
		"pagination": fiber.Map{
			"page":  pg.Page,
			"limit": pg.Limit,
			"total": total,
			"pages": pg.Pages(total),
		},
	})
}

// UnreadCount returns how many notifications the caller has not read.
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "notification")
	if err != nil {
		return err
	}

	userID, err := callerID(c)
	if err != nil {
		return err
	}

	n, err := h.notifications.MarkRead(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

// MarkAllRead flags every notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	updated, err := h.notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "notification")
	if err != nil {
		return err
	}

	userID, err := callerID(c)
	if err != nil {
		return err
	}

	if err := h.notifications.Delete(c.UserContext(), userID, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "notification deleted"})
}

// DeleteAll clears the caller's inbox.
func (h *NotificationHandler) DeleteAll(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	deleted, err := h.notifications.DeleteAll(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

type sendRequest struct {
	UserIDs []string       `json:"userIds"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data"`
}

// Send delivers an admin message to a set of users. Admin only.
func (h *NotificationHandler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	ids, invalid := policy.ParseIDs(req.UserIDs)
	if len(invalid) > 0 {
		return apperr.Validation("invalid user id", apperr.FieldError{Field: "userIds", Message: "every entry must be a valid user id"})
	}

	sent, err := h.notifications.Send(c.UserContext(), ids, req.Title, req.Body, req.Data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"sent": sent})
}

type pushTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterPushToken records a device token for the caller.
func (h *NotificationHandler) RegisterPushToken(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req pushTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	if err := h.users.AddPushToken(c.UserContext(), userID, req.Token, req.Platform); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "push token registered"})
}

// RemovePushToken forgets a device token of the caller.
func (h *NotificationHandler) RemovePushToken(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req pushTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	if err := h.users.RemovePushToken(c.UserContext(), userID, req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "push token removed"})
}
