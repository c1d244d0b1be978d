package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "PARCELGRID"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Audit        AuditConfig
	Cron         CronConfig
	TopUp        TopUpConfig
	Hold         HoldConfig
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
	Env          string `envconfig:"PARCELGRID_APP_ENV" required:"true"`
	Port         string `envconfig:"PARCELGRID_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PARCELGRID_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARCELGRID_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PARCELGRID_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARCELGRID_DB_DSN"`
	Driver string `envconfig:"PARCELGRID_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PARCELGRID_DB_HOST"`
	Port     int    `envconfig:"PARCELGRID_DB_PORT" default:"5432"`
	User     string `envconfig:"PARCELGRID_DB_USER"`
	Password string `envconfig:"PARCELGRID_DB_PASSWORD"`
	Name     string `envconfig:"PARCELGRID_DB_NAME"`
	SSLMode  string `envconfig:"PARCELGRID_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARCELGRID_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARCELGRID_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARCELGRID_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARCELGRID_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	TxRetryAttempts int `envconfig:"PARCELGRID_DB_TX_RETRY_ATTEMPTS" default:"3"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either DB DSN or host/user/name must be configured")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PARCELGRID_REDIS_URL"`
	Address      string        `envconfig:"PARCELGRID_REDIS_ADDR"`
	Password     string        `envconfig:"PARCELGRID_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARCELGRID_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARCELGRID_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARCELGRID_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARCELGRID_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARCELGRID_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARCELGRID_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig selects and configures the payment gateway client. The
// gateway is always called outside wallet-locking transactions.
type GatewayConfig struct {
	Provider string `envconfig:"PARCELGRID_GATEWAY_PROVIDER" default:"static"`

	SquareAccessToken string `envconfig:"PARCELGRID_SQUARE_ACCESS_TOKEN"`
	SquareEnvironment string `envconfig:"PARCELGRID_SQUARE_ENV" default:"sandbox"`
	SquareLocationID  string `envconfig:"PARCELGRID_SQUARE_LOCATION_ID"`
}

type AuditConfig struct {
	PubSubEnabled bool   `envconfig:"PARCELGRID_AUDIT_PUBSUB_ENABLED" default:"false"`
	ProjectID     string `envconfig:"PARCELGRID_AUDIT_GCP_PROJECT_ID"`
	TopicID       string `envconfig:"PARCELGRID_AUDIT_TOPIC_ID" default:"wallet-audit"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"PARCELGRID_CRON_INTERVAL" default:"1m"`
	LockKey        string        `envconfig:"PARCELGRID_CRON_LOCK_KEY" default:"cron:wallet-sweeps"`
	LockTTL        time.Duration `envconfig:"PARCELGRID_CRON_LOCK_TTL" default:"5m"`
	SweepBatchSize int           `envconfig:"PARCELGRID_CRON_SWEEP_BATCH_SIZE" default:"200"`
}

type TopUpConfig struct {
	PendingTTL time.Duration `envconfig:"PARCELGRID_TOPUP_PENDING_TTL" default:"1h"`
}

type HoldConfig struct {
	DefaultTTL time.Duration `envconfig:"PARCELGRID_HOLD_DEFAULT_TTL" default:"1h"`
	MaxTTL     time.Duration `envconfig:"PARCELGRID_HOLD_MAX_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PARCELGRID_AUTO_MIGRATE" default:"false"`
}
