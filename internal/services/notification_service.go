package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/apperr"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/utils"
)

// Notification event types stored in Notification.Type.
const (
	EventCatalogCreated     = "catalog_created"
	EventProductAdded       = "product_added"
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventAdminMessage       = "admin_message"
)

// Notifier receives domain events. Implementations return immediately.
type Notifier interface {
	CatalogCreated(catalog models.Catalog)
	ProductAdded(catalog models.Catalog, product models.Product)
	OrderCreated(order models.Order)
	OrderStatusChanged(order models.Order, previous models.OrderStatus)
}

// Transport pushes an event to every live connection of a user.
type Transport interface {
	Emit(ctx context.Context, userID uuid.UUID, event string, payload any) error
}

// PushSender delivers to registered device tokens.
type PushSender interface {
	Send(ctx context.Context, tokens []string, msg PushMessage) error
}

// AdminAlerter posts new-order summaries to the staff channel.
type AdminAlerter interface {
	NotifyNewOrder(ctx context.Context, order OrderNotification) error
}

// Message is the content fanned out to each recipient.
type Message struct {
	Type  string
	Title string
	Body  string
	Data  map[string]any
}

// NotificationService persists notifications and fans them out.
// Event handlers run on background goroutines; Wait blocks until they finish.
type NotificationService struct {
	db        *gorm.DB
	users     *UserService
	transport Transport
	push      PushSender
	alerts    AdminAlerter
	logger    *slog.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NotificationDeps are the optional delivery channels. Nil channels are skipped.
type NotificationDeps struct {
	Transport Transport
	Push      PushSender
	Alerts    AdminAlerter
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, users *UserService, deps NotificationDeps, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		db:        db,
		users:     users,
		transport: deps.Transport,
		push:      deps.Push,
		alerts:    deps.Alerts,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

// Wait blocks until every dispatched event has been delivered or abandoned.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// CatalogCreated tells the catalog's readers about it.
func (s *NotificationService) CatalogCreated(catalog models.Catalog) {
	view := catalog.View()
	s.dispatch(EventCatalogCreated, func(ctx context.Context) error {
		return s.notifyCatalogReaders(ctx, view, Message{
			Type:  EventCatalogCreated,
			Title: "New catalog",
			Body:  fmt.Sprintf("Catalog %q is now available", catalog.Name),
			Data:  map[string]any{"catalogId": catalog.ID.String()},
		})
	})
}

// ProductAdded tells the catalog's readers about a new product.
func (s *NotificationService) ProductAdded(catalog models.Catalog, product models.Product) {
	view := catalog.View()
	s.dispatch(EventProductAdded, func(ctx context.Context) error {
		return s.notifyCatalogReaders(ctx, view, Message{
			Type:  EventProductAdded,
			Title: "New product",
			Body:  fmt.Sprintf("%s was added to %s", product.Name, catalog.Name),
			Data: map[string]any{
				"catalogId": catalog.ID.String(),
				"productId": product.ID.String(),
			},
		})
	})
}

// OrderCreated tells every active admin and the staff channel about a new order.
func (s *NotificationService) OrderCreated(order models.Order) {
	s.dispatch(EventOrderCreated, func(ctx context.Context) error {
		buyer, err := s.users.Get(ctx, order.UserID)
		if err != nil {
			return fmt.Errorf("load buyer: %w", err)
		}

		var admins []uuid.UUID
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("role = ? AND is_active = ?", policy.RoleAdmin, true).
			Pluck("id", &admins).Error; err != nil {
			return fmt.Errorf("list admins: %w", err)
		}

		s.fanOut(ctx, admins, Message{
			Type:  EventOrderCreated,
			Title: "New order",
			Body:  fmt.Sprintf("%s placed an order for %s", buyer.Name, order.TotalAmount.StringFixed(2)),
			Data: map[string]any{
				"orderId":   order.ID.String(),
				"catalogId": order.CatalogID.String(),
			},
		})

		if s.alerts != nil {
			if err := s.alerts.NotifyNewOrder(ctx, newOrderNotification(order, buyer)); err != nil {
				s.logger.Warn("admin alert failed", "order_id", order.ID, "error", err)
			}
		}
		return nil
	})
}

// OrderStatusChanged tells the purchaser about the new status.
func (s *NotificationService) OrderStatusChanged(order models.Order, previous models.OrderStatus) {
	s.dispatch(EventOrderStatusChanged, func(ctx context.Context) error {
		s.fanOut(ctx, []uuid.UUID{order.UserID}, Message{
			Type:  EventOrderStatusChanged,
			Title: "Order updated",
			Body:  fmt.Sprintf("Your order is now %s", order.Status),
			Data: map[string]any{
				"orderId":        order.ID.String(),
				"status":         string(order.Status),
				"previousStatus": string(previous),
			},
		})
		return nil
	})
}

// Send delivers an admin-authored message to the given users synchronously
// and reports how many notifications were stored.
func (s *NotificationService) Send(ctx context.Context, userIDs []uuid.UUID, title, body string, data map[string]any) (int, error) {
	var fields apperr.Fields
	if title == "" {
		fields.Add("title", "title is required")
	}
	if len(userIDs) == 0 {
		fields.Add("userIds", "at least one recipient is required")
	}
	if err := fields.Err("invalid notification"); err != nil {
		return 0, err
	}

	var existing []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND is_active = ?", policy.DedupeIDs(userIDs), true).
		Pluck("id", &existing).Error; err != nil {
		return 0, fmt.Errorf("resolve recipients: %w", err)
	}

	return s.fanOut(ctx, existing, Message{Type: EventAdminMessage, Title: title, Body: body, Data: data}), nil
}

func (s *NotificationService) notifyCatalogReaders(ctx context.Context, view policy.CatalogView, msg Message) error {
	principals, err := s.users.ActivePrincipals(ctx)
	if err != nil {
		return err
	}
	recipients := policy.RecipientsFor(view, principals)
	ids := make([]uuid.UUID, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	s.fanOut(ctx, ids, msg)
	return nil
}

func (s *NotificationService) dispatch(event string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification dispatch panicked", "event", event, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Error("notification dispatch failed", "event", event, "error", err)
		}
	}()
}

// fanOut delivers msg to each recipient independently and returns how many
// notifications were persisted.
func (s *NotificationService) fanOut(ctx context.Context, recipients []uuid.UUID, msg Message) int {
	stored := 0
	for _, id := range recipients {
		if s.deliver(ctx, id, msg) {
			stored++
		}
	}
	return stored
}

func (s *NotificationService) deliver(ctx context.Context, userID uuid.UUID, msg Message) (stored bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification delivery panicked", "user_id", userID, "panic", r)
		}
	}()

	data, err := json.Marshal(msg.Data)
	if err != nil {
		s.logger.Error("encode notification data", "user_id", userID, "error", err)
		data = []byte("{}")
	}

	n := models.Notification{
		UserID: userID,
		Type:   msg.Type,
		Title:  msg.Title,
		Body:   msg.Body,
		Data:   datatypes.JSON(data),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.logger.Error("persist notification", "user_id", userID, "error", err)
		return false
	}
	stored = true

	if s.transport != nil {
		if err := s.transport.Emit(ctx, userID, "notification", n); err != nil {
			s.logger.Warn("realtime delivery failed", "user_id", userID, "error", err)
		}
	}

	if s.push != nil {
		tokens, err := s.users.PushTokens(ctx, userID)
		if err != nil {
			s.logger.Warn("load push tokens", "user_id", userID, "error", err)
			return stored
		}
		if len(tokens) > 0 {
			push := PushMessage{Title: msg.Title, Body: msg.Body, Data: msg.Data}
			if err := s.push.Send(ctx, tokens, push); err != nil {
				s.logger.Warn("push delivery failed", "user_id", userID, "error", err)
			}
		}
	}

	return stored
}

// List returns one page of the user's notifications, newest first, plus the
// filtered total and the unread count.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, pg utils.Pagination) ([]models.Notification, int64, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []models.Notification
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&items).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("list notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

// UnreadCount counts the user's unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var unread int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&unread).Error; err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return unread, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, lookupErr(err, "notification")
	}
	if !n.Read {
		if err := s.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
			return nil, fmt.Errorf("mark read: %w", err)
		}
		n.Read = true
	}
	return &n, nil
}

// MarkAllRead flags every notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Update("read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

// DeleteAll removes every notification of the user.
func (s *NotificationService) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
