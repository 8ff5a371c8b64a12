package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SETTLE_DB_DSN"
	EnvDBHost = "SETTLE_DB_HOST"
	EnvDBUser = "SETTLE_DB_USER"
	EnvDBName = "SETTLE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Sweeper      SweeperConfig
	Rail         RailConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"SETTLE_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLE_DB_DSN"`
	Driver string `envconfig:"SETTLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SETTLE_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLE_DB_USER"`
	LegacyPassword string `envconfig:"SETTLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SETTLE_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SETTLE_AUTO_MIGRATE" default:"false"`
}

// SweeperConfig tunes the delayed settlement sweeper. The cadence is a
// deployment parameter, not a correctness requirement.
type SweeperConfig struct {
	Interval  time.Duration `envconfig:"SETTLE_SWEEPER_INTERVAL" default:"5m"`
	BatchSize int           `envconfig:"SETTLE_SWEEPER_BATCH_SIZE" default:"100"`
	ClaimTTL  time.Duration `envconfig:"SETTLE_SWEEPER_CLAIM_TTL" default:"10m"`
	LockTTL   time.Duration `envconfig:"SETTLE_SWEEPER_LOCK_TTL" default:"4m"`
}

// RailConfig selects the settlement provider used for approved milestones.
type RailConfig struct {
	DefaultProvider string `envconfig:"SETTLE_RAIL_DEFAULT_PROVIDER" default:"INTERNAL_LEDGER"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SETTLE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SETTLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SETTLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"SETTLE_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
	SettlementSubscription string `envconfig:"SETTLE_PUBSUB_SETTLEMENT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
