package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Store is the part of the redis client the HTTP layer uses: idempotency
// records, auth rate-limit counters and the readiness ping.
type Store interface {
	middleware.ResponseStore
	middleware.RateLimiter
	Ping(ctx context.Context) error
}

// Services bundles everything NewRouter mounts. A nil service makes its
// handlers answer 500 instead of panicking.
type Services struct {
	DB            controllers.Pinger
	Redis         Store
	Sessions      session.AccessSessionChecker
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
	Auth          auth.Service
	Products      products.Service
	Cart          cart.Service
	Coupons       coupons.Service
	Shipping      shipping.Service
	Addresses     address.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Payments      payments.Service
	Wishlist      wishlist.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, svc.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.CartSession(cfg.Cart),
	)

	var idemStore middleware.ResponseStore
	if svc.Redis != nil {
		idemStore = svc.Redis
	}
	idem := middleware.Idempotency(idemStore, logg, middleware.IdempotencyTTL)
	idemCritical := middleware.Idempotency(idemStore, logg, middleware.CriticalIdempotencyTTL)

	loginPolicy := middleware.RateLimitPolicy{
		Name:       "login",
		Window:     cfg.RateLimit.LoginWindow,
		IPLimit:    cfg.RateLimit.LoginIPLimit,
		EmailLimit: cfg.RateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:       "register",
		Window:     cfg.RateLimit.RegisterWindow,
		IPLimit:    cfg.RateLimit.RegisterIPLimit,
		EmailLimit: cfg.RateLimit.RegisterEmailLimit,
	}

	readyDeps := map[string]controllers.Pinger{}
	if svc.DB != nil {
		readyDeps["db"] = svc.DB
	}
	if svc.Redis != nil {
		readyDeps["redis"] = svc.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readyDeps, logg))
	})

	gatherer := svc.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	requireAuth := middleware.Auth(cfg.JWT, svc.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, svc.Sessions, logg)
	adminOnly := middleware.RequireRole(enums.UserRoleAdmin, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, svc.Redis, logg)).Post("/login", controllers.AuthLogin(svc.Auth, cfg.Cart, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, svc.Redis, logg), idem).Post("/register", controllers.AuthRegister(svc.Auth, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
			r.With(requireAuth).Get("/me", controllers.AuthProfile(svc.Auth, logg))
			r.With(requireAuth).Patch("/me", controllers.AuthUpdateProfile(svc.Auth, logg))
		})

		// Catalog, shipping and coupon reads are public.
		r.Get("/products", controllers.ProductList(svc.Products, false, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svc.Products, logg))
		r.Get("/categories", controllers.CategoryList(svc.Products, logg))

		r.Route("/shipping", func(r chi.Router) {
			r.Get("/methods", controllers.ShippingMethods(svc.Shipping, logg))
			r.Get("/available", controllers.ShippingAvailable(svc.Shipping, logg))
			r.Get("/free-threshold", controllers.ShippingFreeThreshold(svc.Shipping, logg))
		})

		r.Get("/coupons/active", controllers.CouponActive(svc.Coupons, logg))
		r.With(optionalAuth).Post("/coupons/apply", controllers.CouponApply(svc.Coupons, logg))

		r.Get("/payments/methods", controllers.PaymentMethods(svc.Payments, cfg.Cart.DefaultCurrency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(svc.Cart, logg))
			r.Get("/summary", cartcontrollers.CartSummary(svc.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(svc.Cart, cfg.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
			r.With(requireAuth).Post("/merge", cartcontrollers.CartMerge(svc.Cart, cfg.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(svc.Addresses, logg))
				r.Post("/", controllers.AddressCreate(svc.Addresses, logg))
				r.Get("/{addressId}", controllers.AddressGet(svc.Addresses, logg))
				r.Patch("/{addressId}", controllers.AddressUpdate(svc.Addresses, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(svc.Addresses, logg))
				r.Patch("/{addressId}/default", controllers.AddressSetDefault(svc.Addresses, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.With(idemCritical).Post("/create-order", controllers.CheckoutCreateOrder(svc.Checkout, logg))
				r.Get("/orders", ordercontrollers.List(svc.Orders, logg))
				r.Get("/orders/number/{orderNumber}", ordercontrollers.DetailByNumber(svc.Orders, logg))
				r.Get("/orders/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
				r.With(idemCritical).Post("/orders/{orderId}/cancel", ordercontrollers.CancelOrder(svc.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.With(idemCritical).Post("/intent", controllers.PaymentIntent(svc.Payments, logg))
				r.With(idemCritical).Post("/process", controllers.PaymentProcess(svc.Payments, logg))
				r.With(adminOnly, idemCritical).Post("/refund", controllers.PaymentRefund(svc.Payments, logg))
				r.Get("/orders/{orderId}", controllers.PaymentHistory(svc.Payments, logg))
				r.Get("/{paymentId}/status", controllers.PaymentStatus(svc.Payments, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistList(svc.Wishlist, logg))
				r.Post("/", controllers.WishlistAdd(svc.Wishlist, logg))
				r.Delete("/{productId}", controllers.WishlistRemove(svc.Wishlist, logg))
				r.With(idem).Post("/{productId}/move-to-cart", controllers.WishlistMoveToCart(svc.Wishlist, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Patch("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
				r.Get("/preferences", controllers.NotificationPreferences(svc.Notifications, logg))
				r.Patch("/preferences", controllers.UpdateNotificationPreferences(svc.Notifications, logg))
				r.Patch("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, adminOnly)

			r.Get("/products", controllers.ProductList(svc.Products, true, logg))
			r.Post("/products", controllers.AdminCreateProduct(svc.Products, logg))
			r.Patch("/products/{productId}", controllers.AdminUpdateProduct(svc.Products, logg))
			r.Delete("/products/{productId}", controllers.AdminDeleteProduct(svc.Products, logg))
			r.Post("/products/{productId}/variants", controllers.AdminCreateVariant(svc.Products, logg))
			r.Post("/categories", controllers.AdminCreateCategory(svc.Products, logg))

			r.Route("/shipping/methods", func(r chi.Router) {
				r.Post("/", controllers.AdminShippingCreate(svc.Shipping, logg))
				r.Get("/{methodId}", controllers.AdminShippingGet(svc.Shipping, logg))
				r.Patch("/{methodId}", controllers.AdminShippingUpdate(svc.Shipping, logg))
				r.Delete("/{methodId}", controllers.AdminShippingDelete(svc.Shipping, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminCouponList(svc.Coupons, logg))
				r.Post("/", controllers.AdminCouponCreate(svc.Coupons, logg))
				r.Get("/code/{code}", controllers.AdminCouponByCode(svc.Coupons, logg))
				r.Patch("/{couponId}", controllers.AdminCouponUpdate(svc.Coupons, logg))
				r.Delete("/{couponId}", controllers.AdminCouponDelete(svc.Coupons, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(svc.Orders, logg))
				r.With(idem).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(svc.Orders, logg))
				r.With(idem).Patch("/{orderId}/tracking", ordercontrollers.SetTracking(svc.Orders, logg))
			})
		})
	})

	return r
}
