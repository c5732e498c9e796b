package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/database"
	"github.com/example/jewelry/internal/handlers"
	"github.com/example/jewelry/internal/models"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/routes"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/storage"
)

type testServer struct {
	app   *fiber.App
	users *services.UserService
	auth  *services.AuthService

	adminToken, u1Token, u2Token string
	u1, u2                       *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := services.NewUserService(db, logger)
	auth := services.NewAuthService(users, services.AuthConfig{Secret: "test-secret", TTL: time.Hour})
	notifications := services.NewNotificationService(db, users, services.NotificationDeps{}, logger)
	t.Cleanup(notifications.Wait)
	catalogs := services.NewCatalogService(db, notifications, services.CatalogOptions{Mode: policy.ModeCatalogScoped}, logger)
	orders := services.NewOrderService(db, catalogs, notifications, logger)

	store, err := storage.NewLocalStore(t.TempDir(), "", 0)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger)})
	routes.Register(app, routes.Deps{
		Users:         users,
		Auth:          auth,
		Catalogs:      catalogs,
		Orders:        orders,
		Notifications: notifications,
		Presets:       services.NewPresetService(db),
		Store:         store,
	})

	s := &testServer{app: app, users: users, auth: auth}
	admin := s.user(t, "admin@example.com", policy.RoleAdmin)
	s.u1 = s.user(t, "u1@example.com", policy.RoleUser)
	s.u2 = s.user(t, "u2@example.com", policy.RoleUser)
	s.adminToken = s.token(t, admin)
	s.u1Token = s.token(t, s.u1)
	s.u2Token = s.token(t, s.u2)
	return s
}

func (s *testServer) user(t *testing.T, email string, role policy.Role) *models.User {
	t.Helper()
	user, err := s.users.Create(context.Background(), services.CreateUserInput{
		Email:    email,
		Password: "secret123",
		Name:     strings.Split(email, "@")[0],
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (s *testServer) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := s.auth.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// do sends a request and decodes the JSON response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type catalogResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Products []struct {
		ID           string `json:"id"`
		SerialNumber string `json:"serialNumber"`
	} `json:"products"`
}

func (s *testServer) createCatalog(t *testing.T, name string, public bool, allowed ...string) catalogResponse {
	t.Helper()
	var catalog catalogResponse
	status := s.do(t, http.MethodPost, "/api/catalogs", s.adminToken, map[string]any{
		"name":           name,
		"isPublic":       public,
		"allowedUserIds": allowed,
	}, &catalog)
	if status != fiber.StatusCreated {
		t.Fatalf("create catalog: status %d", status)
	}
	return catalog
}

func (s *testServer) addProduct(t *testing.T, catalogID, serial, price string) string {
	t.Helper()
	var product struct {
		ID string `json:"id"`
	}
	status := s.do(t, http.MethodPost, "/api/catalogs/"+catalogID+"/products", s.adminToken, map[string]any{
		"name":         "Ring " + serial,
		"serialNumber": serial,
		"type":         "ring",
		"price":        json.Number(price),
	}, &product)
	if status != fiber.StatusCreated {
		t.Fatalf("add product: status %d", status)
	}
	return product.ID
}

func TestPrivateCatalogAccess(t *testing.T) {
	s := newTestServer(t)

	catalog := s.createCatalog(t, "Private", false, s.u1.ID.String())
	s.addProduct(t, catalog.ID, "P1", "100")
	s.addProduct(t, catalog.ID, "P2", "250")

	var got catalogResponse
	if status := s.do(t, http.MethodGet, "/api/catalogs/"+catalog.ID, s.u1Token, nil, &got); status != fiber.StatusOK {
		t.Fatalf("allowed user: status %d", status)
	}
	if len(got.Products) != 2 || got.Products[0].SerialNumber != "P1" || got.Products[1].SerialNumber != "P2" {
		t.Fatalf("unexpected products: %+v", got.Products)
	}

	var denied errorResponse
	if status := s.do(t, http.MethodGet, "/api/catalogs/"+catalog.ID, s.u2Token, nil, &denied); status != fiber.StatusForbidden {
		t.Fatalf("other user: expected 403, got %d", status)
	}
	if denied.Message == "" {
		t.Fatalf("error body has no message")
	}

	var listed []catalogResponse
	if status := s.do(t, http.MethodGet, "/api/catalogs", s.u2Token, nil, &listed); status != fiber.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	if len(listed) != 0 {
		t.Fatalf("private catalog leaked into listing: %+v", listed)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	var body errorResponse
	if status := s.do(t, http.MethodGet, "/api/catalogs", "", nil, &body); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if body.Message == "" {
		t.Fatalf("missing error message")
	}
	if status := s.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil, nil); status != fiber.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", status)
	}
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	s := newTestServer(t)

	if status := s.do(t, http.MethodPost, "/api/catalogs", s.u1Token, map[string]any{"name": "Mine"}, nil); status != fiber.StatusForbidden {
		t.Fatalf("create catalog: expected 403, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/api/admin/dashboard", s.u1Token, nil, nil); status != fiber.StatusForbidden {
		t.Fatalf("dashboard: expected 403, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/api/admin/dashboard", s.adminToken, nil, nil); status != fiber.StatusOK {
		t.Fatalf("dashboard as admin: expected 200, got %d", status)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	var invalid errorResponse
	status := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad"}, &invalid)
	if status != fiber.StatusBadRequest {
		t.Fatalf("invalid register: expected 400, got %d", status)
	}
	if len(invalid.Errors) == 0 {
		t.Fatalf("expected field errors, got %+v", invalid)
	}

	register := map[string]string{"email": "new@example.com", "password": "secret123", "name": "New"}
	if status := s.do(t, http.MethodPost, "/api/auth/register", "", register, nil); status != fiber.StatusCreated {
		t.Fatalf("register: expected 201, got %d", status)
	}
	if status := s.do(t, http.MethodPost, "/api/auth/register", "", register, nil); status != fiber.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", status)
	}

	var login struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	creds := map[string]string{"email": "new@example.com", "password": "secret123"}
	if status := s.do(t, http.MethodPost, "/api/auth/login", "", creds, &login); status != fiber.StatusOK {
		t.Fatalf("login: expected 200, got %d", status)
	}
	if login.Token == "" || login.User.Email != "new@example.com" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	var me struct {
		Email string `json:"email"`
	}
	if status := s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil, &me); status != fiber.StatusOK {
		t.Fatalf("me: expected 200, got %d", status)
	}
	if me.Email != "new@example.com" {
		t.Fatalf("me returned %q", me.Email)
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)

	catalog := s.createCatalog(t, "Public", true)
	ring := s.addProduct(t, catalog.ID, "R1", "1500.50")

	var order struct {
		ID          string          `json:"id"`
		Status      string          `json:"status"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}
	status := s.do(t, http.MethodPost, "/api/orders", s.u1Token, map[string]any{
		"catalogId": catalog.ID,
		"items":     []map[string]any{{"productId": ring, "quantity": 2, "size": "17"}},
	}, &order)
	if status != fiber.StatusCreated {
		t.Fatalf("place order: expected 201, got %d", status)
	}
	if order.Status != string(models.OrderPending) || !order.TotalAmount.Equal(decimal.RequireFromString("3001")) {
		t.Fatalf("unexpected order: %+v", order)
	}

	if status := s.do(t, http.MethodGet, "/api/orders/"+order.ID, s.u2Token, nil, nil); status != fiber.StatusNotFound {
		t.Fatalf("foreign order: expected 404, got %d", status)
	}

	skip := map[string]string{"status": string(models.OrderShipped)}
	if status := s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", s.adminToken, skip, nil); status != fiber.StatusBadRequest {
		t.Fatalf("skipping a state: expected 400, got %d", status)
	}
	confirm := map[string]string{"status": string(models.OrderConfirmed)}
	if status := s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", s.adminToken, confirm, nil); status != fiber.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", status)
	}

	var page struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
			Pages int64 `json:"pages"`
		} `json:"pagination"`
	}
	if status := s.do(t, http.MethodGet, "/api/orders?status=confirmed", s.adminToken, nil, &page); status != fiber.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", status)
	}
	if len(page.Data) != 1 || page.Pagination.Total != 1 || page.Pagination.Pages != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	if status := s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/cancel", s.u1Token, nil, nil); status != fiber.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", status)
	}
	if status := s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/cancel", s.u1Token, nil, nil); status != fiber.StatusBadRequest {
		t.Fatalf("second cancel: expected 400, got %d", status)
	}
}

func TestUnparsableIDIsNotFound(t *testing.T) {
	s := newTestServer(t)

	if status := s.do(t, http.MethodGet, "/api/catalogs/not-a-uuid", s.u1Token, nil, nil); status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := s.do(t, http.MethodGet, "/api/products/42", s.adminToken, nil, nil); status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
