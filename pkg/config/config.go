// Package config loads the STOREFRONT_* environment into typed settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Gateway       GatewayConfig
	Webhook       WebhookConfig
	PollRateLimit PollRateLimitConfig
	Reconcile     ReconcileConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

// Load reads the environment, fills the DSN from its parts when needed and
// rejects settings no process could run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var structRules = validator.New()

func (c *Config) validate() error {
	if err := structRules.Struct(c); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			msgs := make([]string, 0, len(fields))
			for _, fe := range fields {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.App.IsProd() && c.Webhook.RequireSignature && strings.TrimSpace(c.Gateway.WebhookSecret) == "" {
		return fmt.Errorf("invalid config: %s is required in prod while webhook signatures are enforced", EnvGatewayWebhookSecret)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true" validate:"oneof=dev staging prod"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true" validate:"numeric"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json" validate:"oneof=json console"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
	// MetricsAddr exposes /metrics from the background workers; the api serves it on its own port.
	MetricsAddr string `envconfig:"STOREFRONT_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

// DBConfig takes a full DSN, or host/user/name parts that Load assembles into one.
type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20" validate:"gte=0"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin bearer tokens issued by the back-office identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60" validate:"gt=0"`
}

type GatewayConfig struct {
	BaseURL         string        `envconfig:"STOREFRONT_GATEWAY_BASE_URL" default:"https://api.mercadopago.com" validate:"url"`
	AccessToken     string        `envconfig:"STOREFRONT_GATEWAY_ACCESS_TOKEN" required:"true"`
	WebhookSecret   string        `envconfig:"STOREFRONT_GATEWAY_WEBHOOK_SECRET"`
	Timeout         time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"10s"`
	CurrencyID      string        `envconfig:"STOREFRONT_GATEWAY_CURRENCY_ID" default:"ARS"`
	NotificationURL string        `envconfig:"STOREFRONT_GATEWAY_NOTIFICATION_URL"`
	SuccessURL      string        `envconfig:"STOREFRONT_GATEWAY_SUCCESS_URL"`
	FailureURL      string        `envconfig:"STOREFRONT_GATEWAY_FAILURE_URL"`
	PendingURL      string        `envconfig:"STOREFRONT_GATEWAY_PENDING_URL"`
}

type WebhookConfig struct {
	IdempotencyTTL   time.Duration `envconfig:"STOREFRONT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	RequireSignature bool          `envconfig:"STOREFRONT_WEBHOOK_REQUIRE_SIGNATURE" default:"true"`
}

// PollRateLimitConfig throttles the client payment-status endpoint per IP.
type PollRateLimitConfig struct {
	Window time.Duration `envconfig:"STOREFRONT_POLL_RATE_LIMIT_WINDOW" default:"1m" validate:"gt=0"`
	Limit  int           `envconfig:"STOREFRONT_POLL_RATE_LIMIT_LIMIT" default:"30" validate:"gt=0"`
}

type ReconcileConfig struct {
	SweepInterval     time.Duration `envconfig:"STOREFRONT_RECONCILE_SWEEP_INTERVAL" default:"5m" validate:"gt=0"`
	PendingStaleAfter time.Duration `envconfig:"STOREFRONT_RECONCILE_PENDING_STALE_AFTER" default:"15m"`
	PendingMaxAge     time.Duration `envconfig:"STOREFRONT_RECONCILE_PENDING_MAX_AGE" default:"168h" validate:"gtfield=PendingStaleAfter"`
	BatchSize         int           `envconfig:"STOREFRONT_RECONCILE_BATCH_SIZE" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic    string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	InventoryTopic string `envconfig:"STOREFRONT_PUBSUB_INVENTORY_TOPIC" default:"sf-inventory-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"gt=0"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	parts := map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name}
	var missing []string
	for _, env := range dsnPartEnvVars {
		if strings.TrimSpace(parts[env]) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}
