package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/jmucavele/pdv-backend/api/routes"
	"github.com/jmucavele/pdv-backend/internal/audit"
	authsvc "github.com/jmucavele/pdv-backend/internal/auth"
	customersvc "github.com/jmucavele/pdv-backend/internal/customers"
	notificationsvc "github.com/jmucavele/pdv-backend/internal/notifications"
	ordersvc "github.com/jmucavele/pdv-backend/internal/orders"
	productsvc "github.com/jmucavele/pdv-backend/internal/products"
	reportsvc "github.com/jmucavele/pdv-backend/internal/reports"
	salesvc "github.com/jmucavele/pdv-backend/internal/sales"
	usersvc "github.com/jmucavele/pdv-backend/internal/users"
	"github.com/jmucavele/pdv-backend/pkg/auth/session"
	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db"
	"github.com/jmucavele/pdv-backend/pkg/logger"
	"github.com/jmucavele/pdv-backend/pkg/migrate"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
	"github.com/jmucavele/pdv-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	userRepo := usersvc.NewRepository(gormDB)
	productRepo := productsvc.NewRepository(gormDB)
	customerRepo := customersvc.NewRepository(gormDB)
	saleRepo := salesvc.NewRepository(gormDB)
	orderRepo := ordersvc.NewRepository(gormDB)
	reportRepo := reportsvc.NewRepository(gormDB)
	publisher := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		TxRunner:       dbClient,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productService, err := productsvc.NewService(productRepo, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	customerService, err := customersvc.NewService(customerRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}

	saleService, err := salesvc.NewService(saleRepo, productRepo, customerRepo, dbClient, publisher, cfg.Sales)
	if err != nil {
		logg.Error(context.Background(), "failed to create sale service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(orderRepo, productRepo, customerRepo, dbClient, publisher, cfg.Sales)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reportService, err := reportsvc.NewService(reportRepo, saleRepo, orderRepo, productRepo, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create report service", err)
		os.Exit(1)
	}

	notificationService, err := notificationsvc.NewService(notificationsvc.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	userService, err := usersvc.NewService(userRepo, dbClient, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Auth:          authService,
			Products:      productService,
			Customers:     customerService,
			Sales:         saleService,
			Orders:        orderService,
			Reports:       reportService,
			Notifications: notificationService,
			Users:         userService,
			AuditLog:      audit.NewRepository(gormDB),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
