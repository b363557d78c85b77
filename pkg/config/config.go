package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "NEXUS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Auction      AuctionConfig
	PayPal       PayPalConfig
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
	Env          string `envconfig:"NEXUS_APP_ENV" required:"true"`
	Port         string `envconfig:"NEXUS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NEXUS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NEXUS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NEXUS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NEXUS_DB_DSN"`
	Driver string `envconfig:"NEXUS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"NEXUS_DB_HOST"`
	Port     int    `envconfig:"NEXUS_DB_PORT" default:"5432"`
	User     string `envconfig:"NEXUS_DB_USER"`
	Password string `envconfig:"NEXUS_DB_PASSWORD"`
	Name     string `envconfig:"NEXUS_DB_NAME"`
	SSLMode  string `envconfig:"NEXUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NEXUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NEXUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NEXUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NEXUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either NEXUS_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"NEXUS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NEXUS_REDIS_ADDR"`
	Password     string        `envconfig:"NEXUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"NEXUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NEXUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NEXUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NEXUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NEXUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NEXUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NEXUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NEXUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NEXUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NEXUS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NEXUS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NEXUS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NEXUS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NEXUS_ARGON_KEY_LEN" default:"32"`
}

// AuctionConfig tunes the bidding and settlement engines.
type AuctionConfig struct {
	MinIncrement    string        `envconfig:"NEXUS_AUCTION_MIN_INCREMENT" default:"1.00"`
	SnipeWindow     time.Duration `envconfig:"NEXUS_AUCTION_SNIPE_WINDOW" default:"30s"`
	SnipeExtension  time.Duration `envconfig:"NEXUS_AUCTION_SNIPE_EXTENSION" default:"60s"`
	SweepInterval   time.Duration `envconfig:"NEXUS_AUCTION_SWEEP_INTERVAL" default:"45s"`
	LockWaitTimeout time.Duration `envconfig:"NEXUS_AUCTION_LOCK_WAIT_TIMEOUT" default:"5s"`
}

// PayPalConfig carries the gateway credentials, read once at process start.
type PayPalConfig struct {
	ClientID string `envconfig:"NEXUS_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"NEXUS_PAYPAL_SECRET"`
	Mode     string `envconfig:"NEXUS_PAYPAL_MODE" default:"sandbox"`
	BaseURL  string `envconfig:"NEXUS_PAYPAL_BASE_URL"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NEXUS_AUTO_MIGRATE" default:"false"`
}
