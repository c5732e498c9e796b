package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/database"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), database.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustUser(t *testing.T, users *UserService, email string, role policy.Role) *models.User {
	t.Helper()
	user, err := users.Create(context.Background(), CreateUserInput{
		Email:    email,
		Password: "secret123",
		Name:     strings.Split(email, "@")[0],
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// recordingNotifier captures events synchronously.
type recordingNotifier struct {
	mu       sync.Mutex
	catalogs []models.Catalog
	products []models.Product
	orders   []models.Order
	statuses []models.OrderStatus
}

func (r *recordingNotifier) CatalogCreated(c models.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs = append(r.catalogs, c)
}

func (r *recordingNotifier) ProductAdded(_ models.Catalog, p models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = append(r.products, p)
}

func (r *recordingNotifier) OrderCreated(o models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func (r *recordingNotifier) OrderStatusChanged(o models.Order, _ models.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, o.Status)
}

// fixture is a small store with one admin and three regular users.
type fixture struct {
	db       *gorm.DB
	users    *UserService
	catalogs *CatalogService
	orders   *OrderService
	notifier *recordingNotifier

	admin, u1, u2, u3 *models.User
}

func newFixture(t *testing.T, opts CatalogOptions) *fixture {
	t.Helper()
	db := newTestDB(t)
	logger := discardLogger()

	f := &fixture{db: db, notifier: &recordingNotifier{}}
	f.users = NewUserService(db, logger)
	f.catalogs = NewCatalogService(db, f.notifier, opts, logger)
	f.orders = NewOrderService(db, f.catalogs, f.notifier, logger)

	f.admin = mustUser(t, f.users, "admin@example.com", policy.RoleAdmin)
	f.u1 = mustUser(t, f.users, "u1@example.com", policy.RoleUser)
	f.u2 = mustUser(t, f.users, "u2@example.com", policy.RoleUser)
	f.u3 = mustUser(t, f.users, "u3@example.com", policy.RoleUser)
	return f
}

func (f *fixture) catalog(t *testing.T, name string, public bool, allowed ...uuid.UUID) *models.Catalog {
	t.Helper()
	ids := make([]string, 0, len(allowed))
	for _, id := range allowed {
		ids = append(ids, id.String())
	}
	c, err := f.catalogs.CreateCatalog(context.Background(), f.admin.Subject(), CreateCatalogInput{
		Name:           name,
		IsPublic:       public,
		AllowedUserIDs: ids,
	})
	if err != nil {
		t.Fatalf("create catalog %s: %v", name, err)
	}
	return c
}

func (f *fixture) product(t *testing.T, catalogID uuid.UUID, serial string, price string) *models.Product {
	t.Helper()
	p, err := f.catalogs.AddProduct(context.Background(), f.admin.Subject(), catalogID, ProductInput{
		Name:         "Ring " + serial,
		SerialNumber: serial,
		Type:         "ring",
		Price:        decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("add product %s: %v", serial, err)
	}
	return p
}
