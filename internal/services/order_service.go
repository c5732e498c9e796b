package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/utils"
)

// transitions lists the statuses an admin may move an order to from each state.
// Steps cannot be skipped; delivered and cancelled have no exits.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:   {models.OrderDelivered, models.OrderCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderService places orders and drives their status.
type OrderService struct {
	db       *gorm.DB
	catalogs *CatalogService
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService constructs an OrderService. notifier may be nil.
func NewOrderService(db *gorm.DB, catalogs *CatalogService, notifier Notifier, logger *slog.Logger) *OrderService {
	return &OrderService{db: db, catalogs: catalogs, notifier: notifier, logger: logger, now: time.Now}
}

// OrderItemInput is one requested line. Any client-side price is ignored.
type OrderItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

// PlaceOrderInput is a user's order request.
type PlaceOrderInput struct {
	CatalogID string           `json:"catalogId"`
	Items     []OrderItemInput `json:"items"`
	Notes     string           `json:"notes"`
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	Status    models.OrderStatus
	UserID    uuid.UUID
	CatalogID uuid.UUID
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	})
}

// PlaceOrder validates the request against the catalog and live product data,
// stores the order with snapshotted lines and notifies admins in the background.
func (s *OrderService) PlaceOrder(ctx context.Context, actor policy.Subject, in PlaceOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order has no items", apperr.FieldError{Field: "items", Message: "at least one item is required"})
	}

	catalogID, ok := policy.ParseID(in.CatalogID)
	if !ok {
		return nil, apperr.NotFound("catalog not found")
	}
	catalog, err := s.catalogs.CanReadCatalog(ctx, actor, catalogID)
	if err != nil {
		return nil, err
	}

	order := models.Order{
		UserID:      actor.UserID,
		CatalogID:   catalog.ID,
		Status:      models.OrderPending,
		Notes:       strings.TrimSpace(in.Notes),
		PlacedAt:    s.now(),
		TotalAmount: decimal.Zero,
		Items:       make([]models.OrderItem, 0, len(in.Items)),
	}

	for i, item := range in.Items {
		productID, ok := policy.ParseID(item.ProductID)
		if !ok {
			return nil, apperr.NotFound(fmt.Sprintf("product %q not found", item.ProductID))
		}

		var product models.Product
		if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
			return nil, lookupErr(err, "product")
		}
		if item.Quantity < 1 {
			return nil, apperr.Validation("invalid quantity", apperr.FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "quantity must be at least 1",
			})
		}
		if product.CatalogID != catalog.ID {
			return nil, apperr.InvalidState("product not in catalog")
		}
		if !product.IsActive {
			return nil, apperr.InvalidState("product " + product.Name + " is not available")
		}

		line := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Size:      strings.TrimSpace(item.Size),
			Position:  i,
		}
		order.TotalAmount = order.TotalAmount.Add(line.LineTotal())
		order.Items = append(order.Items, line)
	}

	if err := s.db.WithContext(ctx).Omit("User", "Catalog").Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.notifier != nil {
		s.notifier.OrderCreated(order)
	}
	return &order, nil
}

func (s *OrderService) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withItems(s.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "order")
	}
	return &order, nil
}

// Get returns an order to its purchaser or an admin. Other callers see NotFound.
func (s *OrderService) Get(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (s *OrderService) changeStatus(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	previous := order.Status
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, previous).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("order status changed concurrently")
	}
	order.Status = status

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(*order, previous)
	}
	return nil
}

// SetStatus moves an order one step along its lifecycle. Admin only.
func (s *OrderService) SetStatus(ctx context.Context, actor policy.Subject, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)})
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, status) {
		return nil, apperr.InvalidState(fmt.Sprintf("cannot change order from %s to %s", order.Status, status))
	}

	if err := s.changeStatus(ctx, order, status); err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel cancels an order that has not been delivered. Its purchaser or an admin may cancel.
func (s *OrderService) Cancel(ctx context.Context, actor policy.Subject, id uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, apperr.Forbidden("you cannot cancel this order")
	}
	if order.Status.Terminal() {
		return nil, apperr.InvalidState("order is already " + string(order.Status))
	}

	if err := s.changeStatus(ctx, order, models.OrderCancelled); err != nil {
		return nil, err
	}
	return order, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, status models.OrderStatus) ([]models.Order, error) {
	query := withItems(s.db.WithContext(ctx)).Where("user_id = ?", userID)
	if status != "" {
		if !status.Valid() {
			return nil, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)})
		}
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Preload("Catalog").Order("placed_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListForAdmin returns one page of orders and the size of the whole filtered set.
func (s *OrderService) ListForAdmin(ctx context.Context, filter OrderFilter, pg utils.Pagination) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, 0, apperr.Validation("invalid status", apperr.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)})
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != uuid.Nil {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.CatalogID != uuid.Nil {
		query = query.Where("catalog_id = ?", filter.CatalogID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	if err := withItems(query).Preload("User").Preload("Catalog").
		Order("placed_at desc, id asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// Delete removes an order and its lines. Admin only.
func (s *OrderService) Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("admin access required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("order not found")
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		return nil
	})
}

// Dashboard aggregates the admin overview.
type Dashboard struct {
	TotalUsers     int64                        `json:"totalUsers"`
	TotalCatalogs  int64                        `json:"totalCatalogs"`
	TotalProducts  int64                        `json:"totalProducts"`
	TotalOrders    int64                        `json:"totalOrders"`
	OrdersByStatus map[models.OrderStatus]int64 `json:"ordersByStatus"`
	TotalRevenue   decimal.Decimal              `json:"totalRevenue"`
	TodayRevenue   decimal.Decimal              `json:"todayRevenue"`
	RecentOrders   []models.Order               `json:"recentOrders"`
}

// Dashboard returns aggregate statistics. Revenue excludes cancelled orders.
func (s *OrderService) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	out := Dashboard{OrdersByStatus: make(map[models.OrderStatus]int64)}

	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.User{}, &out.TotalUsers},
		{&models.Catalog{}, &out.TotalCatalogs},
		{&models.Product{}, &out.TotalProducts},
		{&models.Order{}, &out.TotalOrders},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("dashboard counts: %w", err)
		}
	}

	type statusCount struct {
		Status models.OrderStatus
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, fmt.Errorf("orders by status: %w", err)
	}
	for _, sc := range statusCounts {
		out.OrdersByStatus[sc.Status] = sc.Count
	}

	var err error
	if out.TotalRevenue, err = s.revenue(db.Where("status <> ?", models.OrderCancelled)); err != nil {
		return nil, err
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if out.TodayRevenue, err = s.revenue(db.Where("status <> ? AND placed_at >= ? AND placed_at < ?",
		models.OrderCancelled, dayStart, dayStart.AddDate(0, 0, 1))); err != nil {
		return nil, err
	}

	if err := withItems(db).Preload("User").Order("placed_at desc").Limit(5).Find(&out.RecentOrders).Error; err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	return &out, nil
}

// revenue sums order totals in Go so decimal precision does not depend on the driver.
func (s *OrderService) revenue(query *gorm.DB) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	if err := query.Model(&models.Order{}).Pluck("total_amount", &totals).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}
