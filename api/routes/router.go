package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ngmtien/velora-backend/api/controllers"
	"github.com/ngmtien/velora-backend/api/middleware"
	"github.com/ngmtien/velora-backend/internal/auth"
	"github.com/ngmtien/velora-backend/internal/cart"
	checkoutsvc "github.com/ngmtien/velora-backend/internal/checkout"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/internal/products"
	"github.com/ngmtien/velora-backend/internal/reports"
	"github.com/ngmtien/velora-backend/internal/users"
	vnpaywebhook "github.com/ngmtien/velora-backend/internal/webhooks/vnpay"
	"github.com/ngmtien/velora-backend/pkg/config"
	"github.com/ngmtien/velora-backend/pkg/db"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/redis"
)

// Services groups everything the HTTP surface depends on.
type Services struct {
	Auth     auth.Service
	Cart     cart.Service
	Products products.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Users    users.AdminService
	Reports  reports.Service
	VNPay    *vnpaywebhook.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
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
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	cartSession := middleware.CartSession(cfg.App.IsProd())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		// login and register pick up the anonymous cart cookie so the
		// session cart can be merged into the account.
		r.Use(cartSession)
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
			Post("/register/start", controllers.AuthRegisterStart(svcs.Auth, logg))
		r.Post("/register", controllers.AuthRegisterComplete(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
			Post("/password-reset/start", controllers.AuthPasswordResetStart(svcs.Auth, logg))
		r.Post("/password-reset", controllers.AuthPasswordResetComplete(svcs.Auth, logg))
	})

	r.Route("/api/v1/payments/vnpay", func(r chi.Router) {
		r.Get("/return", controllers.VNPayReturn(svcs.VNPay, logg))
		r.Get("/ipn", controllers.VNPayIPN(svcs.VNPay, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(svcs.Products, logg))
		r.Get("/{productId}", controllers.ProductGet(svcs.Products, logg))
	})
	r.Get("/api/v1/variants/{variantId}", controllers.VariantGet(svcs.Products, logg))
	r.Get("/api/v1/brands", controllers.BrandsList(svcs.Products, logg))
	r.Get("/api/v1/categories", controllers.CategoriesList(svcs.Products, logg))

	// The cart serves both anonymous visitors and logged-in customers:
	// a bearer token wins, otherwise the session cookie identifies the cart.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(cartSession)
		r.Get("/", controllers.CartList(svcs.Cart, logg))
		r.Post("/items", controllers.CartAdd(svcs.Cart, logg))
		r.Put("/items/{variantId}", controllers.CartSetQuantity(svcs.Cart, logg))
		r.Delete("/items/{variantId}", controllers.CartRemove(svcs.Cart, logg))
		r.Delete("/", controllers.CartClear(svcs.Cart, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/api/v1/checkout", controllers.Checkout(svcs.Checkout, logg))
		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(svcs.Orders, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, logg))
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminUsersList(svcs.Users, logg))
			r.Post("/{userId}/lock", controllers.AdminUserSetLocked(svcs.Users, logg, true))
			r.Post("/{userId}/unlock", controllers.AdminUserSetLocked(svcs.Users, logg, false))
		})
		r.Post("/variants/{variantId}/stock", controllers.AdminVariantAdjustStock(svcs.Products, logg))
		r.Get("/reports/sales", controllers.AdminSalesSummary(svcs.Reports, logg))
	})

	return r
}
