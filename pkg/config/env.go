package config

// EnvPrefix is passed to envconfig; individual tags spell the full
// variable names so the prefix mostly matters for documentation.
const EnvPrefix = "VELORA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared between Load, tests and tooling.
const (
	EnvAppEnv   = "VELORA_APP_ENV"
	EnvPort     = "VELORA_APP_PORT"
	EnvLogLevel = "VELORA_LOG_LEVEL"

	EnvDBDSN      = "VELORA_DB_DSN"
	EnvDBHost     = "VELORA_DB_HOST"
	EnvDBUser     = "VELORA_DB_USER"
	EnvDBName     = "VELORA_DB_NAME"
	EnvRedisURL   = "VELORA_REDIS_URL"
	EnvJWTSecret  = "VELORA_JWT_SECRET"
	EnvJWTIssuer  = "VELORA_JWT_ISSUER"
	EnvJWTExpMins = "VELORA_JWT_EXPIRATION_MINUTES"

	EnvVNPayTmnCode    = "VELORA_VNPAY_TMN_CODE"
	EnvVNPayHashSecret = "VELORA_VNPAY_HASH_SECRET"
	EnvVNPayBaseURL    = "VELORA_VNPAY_BASE_URL"
	EnvVNPayReturnURL  = "VELORA_VNPAY_RETURN_URL"

	EnvGCPProjectID      = "VELORA_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "VELORA_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
