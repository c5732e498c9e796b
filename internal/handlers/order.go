package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder allows authenticated users to place an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req services.PlaceOrderInput
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	order, err := h.orders.PlaceOrder(c.UserContext(), middleware.Subject(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// ListOrders returns all orders with pagination and filters. Admin only.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	userID, err := queryID(c, "userId")
	if err != nil {
		return err
	}
	catalogID, err := queryID(c, "catalogId")
	if err != nil {
		return err
	}
	filter := services.OrderFilter{
		Status:    models.OrderStatus(c.Query("status")),
		UserID:    userID,
		CatalogID: catalogID,
	}

	orders, total, err := h.orders.ListForAdmin(c.UserContext(), filter, pg)
	if err != nil {
		return err
	}
	return paginated(c, orders, pg, total)
}

// ListMyOrders returns the caller's orders.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	orders, err := h.orders.ListForUser(c.UserContext(), userID, models.OrderStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// GetOrder returns an order to its purchaser or an admin.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "order")
	if err != nil {
		return err
	}

	order, err := h.orders.Get(c.UserContext(), middleware.Subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateStatus moves an order along its lifecycle. Admin only.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "order")
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody()
	}

	order, err := h.orders.SetStatus(c.UserContext(), middleware.Subject(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// CancelOrder cancels an order that has not been delivered.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "order")
	if err != nil {
		return err
	}

	order, err := h.orders.Cancel(c.UserContext(), middleware.Subject(c), id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// DeleteOrder removes an order. Admin only.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id", "order")
	if err != nil {
		return err
	}

	if err := h.orders.Delete(c.UserContext(), middleware.Subject(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "order deleted"})
}
