package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/jewelry/internal/handlers"
	"github.com/example/jewelry/internal/middleware"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/storage"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Users         *services.UserService
	Auth          *services.AuthService
	Catalogs      *services.CatalogService
	Orders        *services.OrderService
	Notifications *services.NotificationService
	Presets       *services.PresetService
	Store         storage.ObjectStore
	// UploadDir is served under /uploads when non-empty.
	UploadDir string
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Users, d.Auth)
	catalogHandler := handlers.NewCatalogHandler(d.Catalogs)
	productHandler := handlers.NewProductHandler(d.Catalogs)
	orderHandler := handlers.NewOrderHandler(d.Orders)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications, d.Users)
	userHandler := handlers.NewUserHandler(d.Users)
	presetHandler := handlers.NewPresetHandler(d.Presets)
	uploadHandler := handlers.NewUploadHandler(d.Store)
	adminHandler := handlers.NewAdminHandler(d.Orders)

	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir)
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	api := app.Group("/api")
	authRequired := middleware.AuthMiddleware(d.Auth)
	adminOnly := middleware.AdminOnly()

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", authRequired, authHandler.Me)
	auth.Put("/profile", authRequired, authHandler.UpdateProfile)
	auth.Post("/invite", authRequired, adminOnly, authHandler.Invite)

	// Catalogs
	catalogs := api.Group("/catalogs", authRequired)
	catalogs.Get("/", catalogHandler.ListCatalogs)
	catalogs.Post("/", adminOnly, catalogHandler.CreateCatalog)
	catalogs.Get("/:id", catalogHandler.GetCatalog)
	catalogs.Put("/:id", catalogHandler.UpdateCatalog)
	catalogs.Delete("/:id", catalogHandler.DeleteCatalog)
	catalogs.Post("/:id/products", catalogHandler.AddProduct)
	catalogs.Post("/:id/products/bulk", catalogHandler.BulkAddProducts)
	catalogs.Delete("/:id/products/:productId", catalogHandler.RemoveProduct)
	catalogs.Put("/:id/reorder-products", catalogHandler.ReorderProducts)
	catalogs.Put("/:id/permissions", catalogHandler.UpdatePermissions)

	// Products
	products := api.Group("/products", authRequired)
	products.Get("/", productHandler.ListProducts)
	products.Post("/", productHandler.CreateProduct)
	products.Get("/:id", productHandler.GetProduct)
	products.Put("/:id", productHandler.UpdateProduct)
	products.Delete("/:id", productHandler.DeleteProduct)
	products.Post("/:id/assign", productHandler.AssignProduct)

	// Orders
	orders := api.Group("/orders", authRequired)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", adminOnly, orderHandler.ListOrders)
	orders.Get("/my", orderHandler.ListMyOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Put("/:id/status", adminOnly, orderHandler.UpdateStatus)
	orders.Put("/:id/cancel", orderHandler.CancelOrder)
	orders.Delete("/:id", adminOnly, orderHandler.DeleteOrder)

	// Notifications
	notifications := api.Group("/notifications", authRequired)
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)
	notifications.Post("/push-token", notificationHandler.RegisterPushToken)
	notifications.Delete("/push-token", notificationHandler.RemovePushToken)
	notifications.Post("/send", adminOnly, notificationHandler.Send)
	notifications.Delete("/", notificationHandler.DeleteAll)
	notifications.Put("/:id/read", notificationHandler.MarkRead)
	notifications.Delete("/:id", notificationHandler.Delete)

	// Size presets and clasp images
	presets := api.Group("/size-presets", authRequired)
	presets.Get("/", presetHandler.ListSizePresets)
	presets.Get("/:type", presetHandler.GetSizePreset)
	presets.Put("/:type", adminOnly, presetHandler.UpsertSizePreset)

	clasps := api.Group("/clasp-images", authRequired)
	clasps.Get("/", presetHandler.ListClaspImages)
	clasps.Post("/", adminOnly, presetHandler.CreateClaspImage)
	clasps.Delete("/:id", adminOnly, presetHandler.DeleteClaspImage)

	// Users
	users := api.Group("/users", authRequired, adminOnly)
	users.Get("/", userHandler.ListUsers)
	users.Post("/", userHandler.CreateUser)
	users.Get("/:id", userHandler.GetUser)
	users.Put("/:id", userHandler.UpdateUser)
	users.Patch("/:id/status", userHandler.SetActive)
	users.Delete("/:id", userHandler.DeleteUser)

	// Uploads
	upload := api.Group("/upload", authRequired, adminOnly)
	upload.Post("/image", uploadHandler.UploadImage)
	upload.Post("/image-base64", uploadHandler.UploadImageBase64)

	// Admin
	admin := api.Group("/admin", authRequired, adminOnly)
	admin.Get("/dashboard", adminHandler.DashboardStats)
}
