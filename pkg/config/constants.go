package config

const EnvPrefix = "MARKETPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	OutboxTransportPubSub = "pubsub"
	OutboxTransportKafka  = "kafka"

	SquareSandboxURL    = "https://connect.squareupsandbox.com"
	SquareProductionURL = "https://connect.squareup.com"
)

const (
	EnvAppEnv   = "MARKETPLACE_APP_ENV"
	EnvPort     = "MARKETPLACE_APP_PORT"
	EnvLogLevel = "MARKETPLACE_LOG_LEVEL"

	EnvDBDSN  = "MARKETPLACE_DB_DSN"
	EnvDBHost = "MARKETPLACE_DB_HOST"
	EnvDBUser = "MARKETPLACE_DB_USER"
	EnvDBName = "MARKETPLACE_DB_NAME"

	EnvRedisURL = "MARKETPLACE_REDIS_URL"

	EnvJWTSecret = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer = "MARKETPLACE_JWT_ISSUER"

	EnvOutboxTransport = "MARKETPLACE_OUTBOX_TRANSPORT"
	EnvKafkaBrokers    = "MARKETPLACE_KAFKA_BROKERS"

	EnvSquareEnv           = "MARKETPLACE_SQUARE_ENV"
	EnvSquareWebhookSecret = "MARKETPLACE_SQUARE_WEBHOOK_SECRET"

	EnvCheckoutPreferenceTTL = "MARKETPLACE_CHECKOUT_PREFERENCE_TTL"
	EnvPayoutMaxAttempts     = "MARKETPLACE_PAYOUT_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
