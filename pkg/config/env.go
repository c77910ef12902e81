package config

// EnvPrefix namespaces every variable; field tags carry the full names.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
	EnvDBPassword        = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvJWTSecret         = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer         = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins        = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvCartSessionTTL    = "STOREFRONT_CART_SESSION_TTL"
	EnvOrderNumberPrefix = "STOREFRONT_ORDER_NUMBER_PREFIX"
	EnvOrderTimezone     = "STOREFRONT_ORDER_TIMEZONE"
	EnvStripeSecretKey   = "STOREFRONT_STRIPE_SECRET_KEY"
	EnvPayPalClientID    = "STOREFRONT_PAYPAL_CLIENT_ID"
	EnvPayPalSecret      = "STOREFRONT_PAYPAL_CLIENT_SECRET"
	EnvRazorpayKeyID     = "STOREFRONT_RAZORPAY_KEY_ID"
	EnvRazorpaySecret    = "STOREFRONT_RAZORPAY_KEY_SECRET"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
