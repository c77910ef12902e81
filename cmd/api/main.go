package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/ledger"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(context.Background(), logg, "database", err)
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
	requireResource(context.Background(), logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT.TokenTTL())
	requireResource(context.Background(), logg, "session manager", err)

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	productRepo := products.NewRepository(gormDB)
	productService, err := products.NewService(productRepo, dbClient)
	requireResource(context.Background(), logg, "product service", err)
	catalog, err := products.NewValidator(productRepo)
	requireResource(context.Background(), logg, "catalog validator", err)

	cartService, err := cart.NewService(cart.NewRepository(gormDB), dbClient, catalog, cfg.Cart.DefaultCurrency)
	requireResource(context.Background(), logg, "cart service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewStore(gormDB),
		SessionManager: sessionManager,
		Carts:          cartService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(context.Background(), logg, "auth service", err)

	couponRepo := coupons.NewRepository(gormDB)
	evaluator, err := coupons.NewEvaluator(couponRepo, time.Now)
	requireResource(context.Background(), logg, "coupon evaluator", err)
	couponService, err := coupons.NewService(couponRepo, evaluator)
	requireResource(context.Background(), logg, "coupon service", err)

	shippingService, err := shipping.NewService(shipping.NewRepository(gormDB))
	requireResource(context.Background(), logg, "shipping service", err)

	addressService, err := address.NewService(address.NewRepository(gormDB), dbClient)
	requireResource(context.Background(), logg, "address service", err)

	orderRepo := orders.NewRepository(gormDB)
	orderService, err := orders.NewService(orderRepo, dbClient, catalog, outboxService)
	requireResource(context.Background(), logg, "orders service", err)

	numbers, err := checkout.NewNumberAllocator(checkout.AllocatorParams{
		Store:    redisClient,
		DB:       gormDB,
		Prefix:   cfg.Checkout.OrderNumberPrefix,
		TTL:      cfg.Checkout.SequenceTTL,
		Location: cfg.Checkout.Location(),
		Logger:   logg,
		Metrics:  checkoutMetrics,
	})
	requireResource(context.Background(), logg, "order number allocator", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Carts:    cartService,
		Address:  addressService,
		Catalog:  catalog,
		Shipping: shippingService,
		Coupons:  evaluator,
		Orders:   orderRepo,
		Numbers:  numbers,
		Outbox:   outboxService,
		Metrics:  checkoutMetrics,
	})
	requireResource(context.Background(), logg, "checkout service", err)

	gateways, err := buildGateways(context.Background(), cfg, logg)
	requireResource(context.Background(), logg, "payment gateways", err)
	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	requireResource(context.Background(), logg, "payment ledger", err)
	paymentService, err := payments.NewService(payments.ServiceParams{
		Tx:       dbClient,
		Orders:   orderRepo,
		Projects: orderService,
		Ledger:   ledgerService,
		Gateways: gateways,
		Outbox:   outboxService,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	requireResource(context.Background(), logg, "payment service", err)

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		WishlistRepo: wishlist.NewRepository(gormDB),
		ProductRepo:  productRepo,
		Cart:         cartService,
	})
	requireResource(context.Background(), logg, "wishlist service", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	requireResource(context.Background(), logg, "notification service", err)

	router := routes.NewRouter(cfg, logg, routes.Services{
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessionManager,
		Gatherer:      registry,
		HTTPMetrics:   metrics.NewHTTPMetrics(registry),
		Auth:          authService,
		Products:      productService,
		Cart:          cartService,
		Coupons:       couponService,
		Shipping:      shippingService,
		Addresses:     addressService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Payments:      paymentService,
		Wishlist:      wishlistService,
		Notifications: notificationService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"gateways": gateways.Methods(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

// buildGateways registers an adapter for every payment method whose
// credentials are configured. Cash on delivery needs none.
func buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*payments.Registry, error) {
	var gateways []payments.Gateway

	if cfg.Stripe.Enabled() {
		client, err := stripe.NewClient(ctx, cfg.Stripe, &http.Client{Timeout: payments.GatewayTimeout}, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		gw, err := payments.NewStripeGateway(client, logg)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Razorpay.Enabled() {
		gw, err := payments.NewRazorpayGateway(cfg.Razorpay, &http.Client{Timeout: payments.GatewayTimeout}, logg)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.PayPal.Enabled() {
		gw, err := payments.NewPayPalGateway(ctx, cfg.PayPal, logg)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, gw)
	}
	if cfg.Crypto.Enabled {
		gateways = append(gateways, payments.NewCryptoGateway(cfg.Crypto, logg))
	}

	return payments.NewRegistry(gateways...)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("failed to bootstrap %s", resource), err)
	os.Exit(1)
}
