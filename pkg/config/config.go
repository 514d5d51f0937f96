package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TRADEYARD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "TRADEYARD_DB_DSN"
	EnvDBHost = "TRADEYARD_DB_HOST"
	EnvDBUser = "TRADEYARD_DB_USER"
	EnvDBName = "TRADEYARD_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Orders       OrdersConfig
	Listing      ListingConfig
	Eventing     EventingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADEYARD_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEYARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADEYARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADEYARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADEYARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEYARD_DB_DSN"`
	Driver string `envconfig:"TRADEYARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADEYARD_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADEYARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADEYARD_DB_USER"`
	LegacyPassword string `envconfig:"TRADEYARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADEYARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADEYARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEYARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEYARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEYARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEYARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEYARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADEYARD_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEYARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEYARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEYARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEYARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEYARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEYARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEYARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADEYARD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TRADEYARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADEYARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrderEventsTopic        string `envconfig:"TRADEYARD_PUBSUB_ORDER_EVENTS_TOPIC" default:"ty-order-events"`
	OrderEventsSubscription string `envconfig:"TRADEYARD_PUBSUB_ORDER_EVENTS_SUBSCRIPTION" required:"true"`
	CompletionsTopic        string `envconfig:"TRADEYARD_PUBSUB_COMPLETIONS_TOPIC" default:"ty-order-completions"`
	CompletionsSubscription string `envconfig:"TRADEYARD_PUBSUB_COMPLETIONS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADEYARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADEYARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADEYARD_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention time.Duration `envconfig:"TRADEYARD_OUTBOX_RETENTION" default:"168h"`
}

// OrdersConfig carries the reaper and timeout knobs injected into the workflow
// engine and the expiration job; both stay testable because nothing reads these
// from global state.
type OrdersConfig struct {
	PendingTimeout  time.Duration `envconfig:"TRADEYARD_ORDERS_PENDING_TIMEOUT" default:"30m"`
	ReaperInterval  time.Duration `envconfig:"TRADEYARD_ORDERS_REAPER_INTERVAL" default:"60s"`
	ReaperBatchSize int           `envconfig:"TRADEYARD_ORDERS_REAPER_BATCH_SIZE" default:"100"`
}

type ListingConfig struct {
	BaseURL        string        `envconfig:"TRADEYARD_LISTING_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"TRADEYARD_LISTING_REQUEST_TIMEOUT" default:"3s"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TRADEYARD_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRADEYARD_AUTO_MIGRATE" default:"false"`
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
