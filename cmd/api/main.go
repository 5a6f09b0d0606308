package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/ngmtien/velora-backend/api/routes"
	"github.com/ngmtien/velora-backend/internal/auth"
	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/checkout"
	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/internal/notifications"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/internal/products"
	"github.com/ngmtien/velora-backend/internal/reports"
	"github.com/ngmtien/velora-backend/internal/users"
	vnpaywebhook "github.com/ngmtien/velora-backend/internal/webhooks/vnpay"
	"github.com/ngmtien/velora-backend/pkg/config"
	"github.com/ngmtien/velora-backend/pkg/db"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/migrate"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/redis"
	"github.com/ngmtien/velora-backend/pkg/vnpay"
	"github.com/joho/godotenv"
)

// anonymous carts expire alongside the session cookie
const sessionCartTTL = 30 * 24 * time.Hour

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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, services),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	gormDB := dbClient.DB()

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	inventoryRepo := inventory.NewRepository(gormDB)
	inventorySvc, err := inventory.NewService(inventoryRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo := cart.NewRepository(gormDB)
	sessionStore, err := cart.NewSessionStore(redisClient, sessionCartTTL)
	if err != nil {
		return routes.Services{}, err
	}
	cartSvc, err := cart.NewService(cartRepo, sessionStore, inventoryRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	productsSvc, err := products.NewService(products.NewRepository(gormDB), inventorySvc)
	if err != nil {
		return routes.Services{}, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, inventorySvc)
	if err != nil {
		return routes.Services{}, err
	}

	vnpayClient, err := vnpay.New(cfg.VNPay)
	if err != nil {
		return routes.Services{}, err
	}
	checkoutSvc, err := checkout.NewService(dbClient, cartRepo, ordersRepo, inventoryRepo, inventorySvc, outboxSvc, vnpayClient)
	if err != nil {
		return routes.Services{}, err
	}

	webhookSvc, err := vnpaywebhook.NewService(vnpaywebhook.ServiceParams{
		Verifier:          vnpayClient,
		OrdersRepo:        ordersRepo,
		CartRepo:          cartRepo,
		Inventory:         inventorySvc,
		Outbox:            outboxSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	usersRepo := users.NewRepository(gormDB)
	adminUsersSvc, err := users.NewAdminService(usersRepo)
	if err != nil {
		return routes.Services{}, err
	}

	reportsSvc, err := reports.NewService(reports.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	mailer, err := buildMailer(cfg, logg)
	if err != nil {
		return routes.Services{}, err
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:          usersRepo,
		Cart:              cartSvc,
		OTPStore:          redisClient,
		Mailer:            mailer,
		TransactionRunner: dbClient,
		Logger:            logg,
		JWTConfig:         cfg.JWT,
		PasswordConfig:    cfg.Password,
		OTPConfig:         cfg.OTP,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:     authSvc,
		Cart:     cartSvc,
		Products: productsSvc,
		Checkout: checkoutSvc,
		Orders:   ordersSvc,
		Users:    adminUsersSvc,
		Reports:  reportsSvc,
		VNPay:    webhookSvc,
	}, nil
}

// buildMailer falls back to log-only delivery when SMTP is not configured,
// which keeps local development working without a relay.
func buildMailer(cfg *config.Config, logg *logger.Logger) (notifications.Sender, error) {
	if cfg.SMTP.Host == "" {
		logg.Warn(context.Background(), "smtp host not configured, using log sender for outbound mail")
		return notifications.NewLogSender(logg)
	}
	return notifications.NewSMTPSender(cfg.SMTP)
}
