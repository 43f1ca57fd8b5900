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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Square       SquareConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Payout       PayoutConfig
	Cron         CronConfig
	Security     SecurityConfig
	RateLimit    RateLimitConfig
	Telemetry    TelemetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPLACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPLACE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MARKETPLACE_LOG_FORMAT" default:"json"`
	PublicURL    string `envconfig:"MARKETPLACE_PUBLIC_URL" default:"http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind    string `envconfig:"MARKETPLACE_SERVICE_KIND" default:"api"`
	Version string `envconfig:"MARKETPLACE_SERVICE_VERSION" default:"dev"`
	// MetricsAddr is where background binaries serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"MARKETPLACE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPLACE_DB_DSN"`
	Driver string `envconfig:"MARKETPLACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETPLACE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPLACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPLACE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPLACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPLACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MARKETPLACE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPLACE_REDIS_URL"`
	Address      string        `envconfig:"MARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"MARKETPLACE_REDIS_KEY_PREFIX" default:"mp"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETPLACE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETPLACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETPLACE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"MARKETPLACE_AUTO_MIGRATE" default:"false"`
	PayoutSettlement  bool `envconfig:"MARKETPLACE_FEATURE_PAYOUT_SETTLEMENT" default:"false"`
	RequireWebhookSig bool `envconfig:"MARKETPLACE_FEATURE_REQUIRE_WEBHOOK_SIGNATURE" default:"true"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"MARKETPLACE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL  time.Duration `envconfig:"MARKETPLACE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETPLACE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETPLACE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETPLACE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"MARKETPLACE_PUBSUB_ORDERS_TOPIC" default:"mp-order-events"`
	PayoutsTopic             string `envconfig:"MARKETPLACE_PUBSUB_PAYOUTS_TOPIC" default:"mp-payout-events"`
	NotificationSubscription string `envconfig:"MARKETPLACE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"mp-notifications-sub"`
	// OrderedPublishing sends the aggregate id as ordering key; the topic
	// subscriptions must have message ordering enabled.
	OrderedPublishing bool `envconfig:"MARKETPLACE_PUBSUB_ORDERED_PUBLISHING" default:"true"`
	MaxOutstanding    int  `envconfig:"MARKETPLACE_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

type KafkaConfig struct {
	Brokers  []string `envconfig:"MARKETPLACE_KAFKA_BROKERS"`
	ClientID string   `envconfig:"MARKETPLACE_KAFKA_CLIENT_ID" default:"marketplace-outbox"`
	GroupID  string   `envconfig:"MARKETPLACE_KAFKA_NOTIFICATION_GROUP" default:"mp-notifications"`
}

type OutboxConfig struct {
	Transport      string `envconfig:"MARKETPLACE_OUTBOX_TRANSPORT" default:"pubsub"`
	BatchSize      int    `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"MARKETPLACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"MARKETPLACE_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Transport)) {
	case OutboxTransportPubSub, OutboxTransportKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxTransport, OutboxTransportPubSub, OutboxTransportKafka)
	}
}

// TransportName returns the normalized outbox transport.
func (o OutboxConfig) TransportName() string {
	return strings.ToLower(strings.TrimSpace(o.Transport))
}

type SquareConfig struct {
	Env               string `envconfig:"MARKETPLACE_SQUARE_ENV" default:"sandbox"`
	AccessToken       string `envconfig:"MARKETPLACE_SQUARE_ACCESS_TOKEN"`
	LocationID        string `envconfig:"MARKETPLACE_SQUARE_LOCATION_ID"`
	WebhookSecret     string `envconfig:"MARKETPLACE_SQUARE_WEBHOOK_SECRET"`
	NotificationURL   string `envconfig:"MARKETPLACE_SQUARE_NOTIFICATION_URL"`
	ApplicationID     string `envconfig:"MARKETPLACE_SQUARE_APPLICATION_ID"`
	ApplicationSecret string `envconfig:"MARKETPLACE_SQUARE_APPLICATION_SECRET"`
	OAuthRedirectURL  string `envconfig:"MARKETPLACE_SQUARE_OAUTH_REDIRECT_URL"`
	OAuthScopes       string `envconfig:"MARKETPLACE_SQUARE_OAUTH_SCOPES" default:"MERCHANT_PROFILE_READ PAYMENTS_READ PAYMENTS_WRITE ORDERS_READ"`
}

// BaseURL resolves the Square API host for the configured environment.
func (s SquareConfig) BaseURL() string {
	if strings.EqualFold(strings.TrimSpace(s.Env), "production") {
		return SquareProductionURL
	}
	return SquareSandboxURL
}

type StripeConfig struct {
	APIKey string `envconfig:"MARKETPLACE_STRIPE_API_KEY"`
	Env    string `envconfig:"MARKETPLACE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	PreferenceTTL time.Duration `envconfig:"MARKETPLACE_CHECKOUT_PREFERENCE_TTL" default:"24h"`
	RedirectURL   string        `envconfig:"MARKETPLACE_CHECKOUT_REDIRECT_URL"`
	Currency      string        `envconfig:"MARKETPLACE_CHECKOUT_CURRENCY" default:"USD"`
}

type PayoutConfig struct {
	RetryBase       time.Duration `envconfig:"MARKETPLACE_PAYOUT_RETRY_BASE" default:"5m"`
	RetryMaxBackoff time.Duration `envconfig:"MARKETPLACE_PAYOUT_RETRY_MAX_BACKOFF" default:"6h"`
	MaxAttempts     int           `envconfig:"MARKETPLACE_PAYOUT_MAX_ATTEMPTS" default:"5"`
	TransferLockTTL time.Duration `envconfig:"MARKETPLACE_PAYOUT_TRANSFER_LOCK_TTL" default:"2m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MARKETPLACE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"MARKETPLACE_CRON_LOCK_TTL" default:"4m"`
	// JobTimeout caps a single job so one stuck job cannot hold the lock all cycle.
	JobTimeout time.Duration `envconfig:"MARKETPLACE_CRON_JOB_TIMEOUT" default:"2m"`
	// NotificationRetentionDays bounds how long read notifications are kept.
	NotificationRetentionDays int `envconfig:"MARKETPLACE_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

// RateLimitConfig caps requests per caller over a fixed window.
type RateLimitConfig struct {
	Window          time.Duration `envconfig:"MARKETPLACE_RATE_LIMIT_WINDOW" default:"1m"`
	Requests        int           `envconfig:"MARKETPLACE_RATE_LIMIT_REQUESTS" default:"120"`
	WebhookRequests int           `envconfig:"MARKETPLACE_RATE_LIMIT_WEBHOOK_REQUESTS" default:"600"`
}

type SecurityConfig struct {
	TokenSealKey string `envconfig:"MARKETPLACE_TOKEN_SEAL_KEY"`
}

type TelemetryConfig struct {
	Enabled      bool   `envconfig:"MARKETPLACE_OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"MARKETPLACE_OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
