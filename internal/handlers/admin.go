package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/services"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	orders *services.OrderService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(orders *services.OrderService) *AdminHandler {
	return &AdminHandler{orders: orders}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.orders.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
