package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmucavele/pdv-backend/api/controllers"
	"github.com/jmucavele/pdv-backend/api/middleware"
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
	"github.com/jmucavele/pdv-backend/pkg/enums"
	"github.com/jmucavele/pdv-backend/pkg/logger"
	"github.com/jmucavele/pdv-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Services bundles every domain service the router mounts.
type Services struct {
	Auth          authsvc.Service
	Products      productsvc.Service
	Customers     customersvc.Service
	Sales         salesvc.Service
	Orders        ordersvc.Service
	Reports       reportsvc.Service
	Notifications notificationsvc.Service
	Users         usersvc.Service
	AuditLog      *audit.Repository
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Post("/logout", controllers.AuthLogout(svcs.Auth, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svcs.Products, logg))
			r.Get("/search", controllers.SearchProducts(svcs.Products, logg))
			r.Post("/check-quantity", controllers.CheckProductQuantity(svcs.Products, logg))
			r.Get("/{productId}", controllers.GetProduct(svcs.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(enums.CapManageCatalog, logg))
				r.Post("/", controllers.CreateProduct(svcs.Products, logg))
				r.Patch("/{productId}", controllers.UpdateProduct(svcs.Products, logg))
				r.Delete("/{productId}", controllers.DeactivateProduct(svcs.Products, logg))
			})
			r.With(middleware.RequireCapability(enums.CapAdjustStock, logg)).
				Post("/{productId}/stock", controllers.AdjustStock(svcs.Products, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(svcs.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(enums.CapManageCatalog, logg))
				r.Post("/", controllers.CreateCategory(svcs.Products, logg))
				r.Patch("/{categoryId}", controllers.UpdateCategory(svcs.Products, logg))
			})
		})

		r.Route("/units", func(r chi.Router) {
			r.Get("/", controllers.ListUnits(svcs.Products, logg))
			r.With(middleware.RequireCapability(enums.CapManageCatalog, logg)).
				Post("/", controllers.CreateUnit(svcs.Products, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.ListCustomers(svcs.Customers, logg))
			r.Get("/{customerId}", controllers.GetCustomer(svcs.Customers, logg))
			r.Post("/", controllers.CreateCustomer(svcs.Customers, logg))
			r.Patch("/{customerId}", controllers.UpdateCustomer(svcs.Customers, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.ListSales(svcs.Sales, logg))
			r.Get("/{saleId}", controllers.GetSale(svcs.Sales, logg))
			r.Post("/", controllers.CommitSale(svcs.Sales, logg))
			r.With(middleware.RequireCapability(enums.CapCancelSales, logg)).
				Post("/{saleId}/cancel", controllers.CancelSale(svcs.Sales, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(svcs.Orders, logg))
			r.Get("/code/{code}", controllers.GetOrderByCode(svcs.Orders, logg))
			r.Post("/", controllers.CreateOrder(svcs.Orders, logg))
			r.Post("/{orderId}/status", controllers.AdvanceOrderStatus(svcs.Orders, logg))
			r.Post("/{orderId}/payment-proof", controllers.UploadOrderPaymentProof(svcs.Orders, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(enums.CapConfirmOrders, logg))
				r.Post("/{orderId}/confirm", controllers.ConfirmOrder(svcs.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))
			})
		})

		r.Get("/dashboard", controllers.Dashboard(svcs.Sales, svcs.Products, logg))

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireCapability(enums.CapViewReports, logg))
			r.Get("/", controllers.ListReports(svcs.Reports, logg))
			r.Get("/week", controllers.GetReport(svcs.Reports, logg))
			r.Get("/period", controllers.GetPeriodStats(svcs.Reports, logg))
			r.Post("/generate", controllers.GenerateReport(svcs.Reports, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.With(middleware.RequireCapability(enums.CapViewAuditLog, logg)).
			Get("/audit-log", controllers.ListAuditLog(svcs.AuditLog, logg))

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireCapability(enums.CapManageUsers, logg))
			r.Get("/", controllers.ListUsers(svcs.Users, logg))
			r.Get("/{userId}", controllers.GetUser(svcs.Users, logg))
			r.Post("/", controllers.CreateUser(svcs.Users, logg))
			r.Patch("/{userId}", controllers.UpdateUser(svcs.Users, logg))
		})
	})

	return r
}
