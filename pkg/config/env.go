package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvGatewayAccessToken   = "STOREFRONT_GATEWAY_ACCESS_TOKEN"
	EnvGatewayWebhookSecret = "STOREFRONT_GATEWAY_WEBHOOK_SECRET"

	EnvPollRateLimitWindow = "STOREFRONT_POLL_RATE_LIMIT_WINDOW"
	EnvReconcileStaleAfter = "STOREFRONT_RECONCILE_PENDING_STALE_AFTER"
)

var dsnPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
