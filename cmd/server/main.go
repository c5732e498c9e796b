package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/example/jewelry/internal/config"
	"github.com/example/jewelry/internal/database"
	"github.com/example/jewelry/internal/handlers"
	"github.com/example/jewelry/internal/policy"
	"github.com/example/jewelry/internal/realtime"
	"github.com/example/jewelry/internal/routes"
	"github.com/example/jewelry/internal/services"
	"github.com/example/jewelry/internal/storage"
)

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	mode, err := policy.ParseMode(cfg.AccessMode)
	if err != nil {
		log.Fatalf("invalid ACCESS_MODE: %v", err)
	}
	if mode == policy.ModeLegacyProductScoped {
		logger.Warn("legacy product-scoped access is enabled; product accessibleTo lists grant read access")
	}

	db := database.Connect(cfg.DatabaseURL, cfg.DBConnectTimeout)

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL, cfg.ImageMaxWidth)
	if err != nil {
		log.Fatalf("upload storage: %v", err)
	}

	hub := realtime.NewHub()
	users := services.NewUserService(db, logger)
	auth := services.NewAuthService(users, services.AuthConfig{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.TokenExpires,
		IssuedBefore: cfg.TokenIssuedBefore,
	})
	notifications := services.NewNotificationService(db, users, services.NotificationDeps{
		Transport: hub,
		Push:      services.NewPushService(cfg.PushEndpoint, cfg.PushAccessToken),
		Alerts:    services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
	}, logger)
	catalogs := services.NewCatalogService(db, notifications, services.CatalogOptions{
		Mode:           mode,
		InMemoryFilter: cfg.CatalogFilter == "memory",
	}, logger)
	orders := services.NewOrderService(db, catalogs, notifications, logger)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := users.EnsureAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	cancelSeed()

	app := fiber.New(fiber.Config{
		AppName:      "Jewelry Catalog Backend",
		ErrorHandler: handlers.ErrorHandler(logger),
		BodyLimit:    storage.MaxUploadBytes * 2,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	routes.Register(app, routes.Deps{
		Users:         users,
		Auth:          auth,
		Catalogs:      catalogs,
		Orders:        orders,
		Notifications: notifications,
		Presets:       services.NewPresetService(db),
		Store:         store,
		UploadDir:     store.Dir(),
	})

	socket := &http.Server{
		Addr:              ":" + cfg.SocketPort,
		Handler:           realtime.NewServer(hub, auth, logger, nil).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort)
		return app.Listen(":" + cfg.AppPort)
	})
	g.Go(func() error {
		logger.Info("starting socket server", "port", cfg.SocketPort)
		if err := socket.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		hub.Close()
		if err := socket.Shutdown(shutdownCtx); err != nil {
			logger.Warn("socket shutdown", "error", err)
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		notifications.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
