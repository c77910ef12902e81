package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    AuthRateLimitConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	Razorpay     RazorpayConfig
	Crypto       CryptoConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:3001"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn. Zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// PasswordConfig tunes credential hashing.
type PasswordConfig struct {
	BcryptCost int `envconfig:"STOREFRONT_PASSWORD_BCRYPT_COST" default:"12"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// CartConfig governs anonymous cart sessions.
type CartConfig struct {
	SessionCookie   string        `envconfig:"STOREFRONT_CART_SESSION_COOKIE" default:"cart_session"`
	SessionTTL      time.Duration `envconfig:"STOREFRONT_CART_SESSION_TTL" default:"720h"`
	GuestRetention  time.Duration `envconfig:"STOREFRONT_CART_GUEST_RETENTION" default:"720h"`
	SecureCookie    bool          `envconfig:"STOREFRONT_CART_SECURE_COOKIE" default:"false"`
	DefaultCurrency string        `envconfig:"STOREFRONT_CART_DEFAULT_CURRENCY" default:"USD"`
}

type CheckoutConfig struct {
	OrderNumberPrefix string        `envconfig:"STOREFRONT_ORDER_NUMBER_PREFIX" default:"ORD"`
	SequenceTTL       time.Duration `envconfig:"STOREFRONT_ORDER_SEQUENCE_TTL" default:"48h"`
	// Location used to decide which calendar day an order number belongs to.
	Timezone string `envconfig:"STOREFRONT_ORDER_TIMEZONE" default:"UTC"`
}

// Location resolves the configured order-number timezone.
func (c CheckoutConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c CheckoutConfig) validate() error {
	if strings.TrimSpace(c.OrderNumberPrefix) == "" {
		return fmt.Errorf("%s must not be empty", EnvOrderNumberPrefix)
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.Timezone)); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvOrderTimezone, err)
	}
	return nil
}

// CronConfig sets the cron-worker tick and how often each housekeeping job is due.
type CronConfig struct {
	Tick                     time.Duration `envconfig:"STOREFRONT_CRON_TICK" default:"15m"`
	LockTTL                  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"1h"`
	CartCleanupEvery         time.Duration `envconfig:"STOREFRONT_CRON_CART_CLEANUP_EVERY" default:"6h"`
	NotificationCleanupEvery time.Duration `envconfig:"STOREFRONT_CRON_NOTIFICATION_CLEANUP_EVERY" default:"24h"`
	OutboxRetentionEvery     time.Duration `envconfig:"STOREFRONT_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	// CredentialsJSON wins over ApplicationCredentials. With neither set the
	// client uses application default credentials.
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	PaymentsTopic            string `envconfig:"STOREFRONT_PUBSUB_PAYMENTS_TOPIC" default:"sf-payment-events"`
	NotificationSubscription string `envconfig:"STOREFRONT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"sf-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// PublishedRetention is how long delivered rows are kept for debugging.
	PublishedRetention time.Duration `envconfig:"STOREFRONT_OUTBOX_PUBLISHED_RETENTION" default:"720h"`

	// DeadLetterRetention is longer so someone has time to redrive.
	DeadLetterRetention time.Duration `envconfig:"STOREFRONT_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type StripeConfig struct {
	SecretKey string `envconfig:"STOREFRONT_STRIPE_SECRET_KEY"`
	Env       string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`

	// MaxNetworkRetries lets stripe-go retry connection failures and 409/429s
	// using the request's idempotency key.
	MaxNetworkRetries int64 `envconfig:"STOREFRONT_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a key was supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.SecretKey) != ""
}

type PayPalConfig struct {
	ClientID     string `envconfig:"STOREFRONT_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"STOREFRONT_PAYPAL_CLIENT_SECRET"`
	Mode         string `envconfig:"STOREFRONT_PAYPAL_MODE" default:"sandbox"`
	ReturnURL    string `envconfig:"STOREFRONT_PAYPAL_RETURN_URL" default:"http://localhost:3000/checkout/paypal/return"`
	CancelURL    string `envconfig:"STOREFRONT_PAYPAL_CANCEL_URL" default:"http://localhost:3000/checkout/paypal/cancel"`
}

func (p PayPalConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

// BaseURL returns the REST host for the configured mode.
func (p PayPalConfig) BaseURL() string {
	if strings.EqualFold(strings.TrimSpace(p.Mode), "live") {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"STOREFRONT_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"STOREFRONT_RAZORPAY_KEY_SECRET"`
	BaseURL   string `envconfig:"STOREFRONT_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
}

func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

// CryptoConfig toggles the simulated crypto gateway.
type CryptoConfig struct {
	Enabled bool   `envconfig:"STOREFRONT_CRYPTO_ENABLED" default:"false"`
	Network string `envconfig:"STOREFRONT_CRYPTO_NETWORK" default:"bitcoin"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
