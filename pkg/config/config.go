package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Stripe     StripeConfig
	Routing    RoutingConfig
	Delivery   DeliveryConfig
	Settlement SettlementConfig
	Checkout   CheckoutConfig
	RateLimit  RateLimitConfig
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
	Env          string `envconfig:"SARVA_APP_ENV" required:"true"`
	Port         string `envconfig:"SARVA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SARVA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SARVA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SARVA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SARVA_DB_DSN"`
	Driver string `envconfig:"SARVA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SARVA_DB_HOST"`
	LegacyPort     int    `envconfig:"SARVA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SARVA_DB_USER"`
	LegacyPassword string `envconfig:"SARVA_DB_PASSWORD"`
	LegacyName     string `envconfig:"SARVA_DB_NAME"`
	LegacySSLMode  string `envconfig:"SARVA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SARVA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SARVA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SARVA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SARVA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"SARVA_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SARVA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SARVA_REDIS_ADDR"`
	Password     string        `envconfig:"SARVA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SARVA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SARVA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SARVA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SARVA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SARVA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SARVA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SARVA_STRIPE_API_KEY"`
	Env    string `envconfig:"SARVA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RoutingConfig struct {
	BaseURL string        `envconfig:"SARVA_ROUTING_BASE_URL"`
	APIKey  string        `envconfig:"SARVA_ROUTING_API_KEY"`
	Timeout time.Duration `envconfig:"SARVA_ROUTING_TIMEOUT" default:"5s"`
}

type DeliveryConfig struct {
	BaseFeeCents     int           `envconfig:"SARVA_DELIVERY_BASE_FEE_CENTS" default:"300"`
	FallbackSpeedKPH float64       `envconfig:"SARVA_DELIVERY_FALLBACK_SPEED_KPH" default:"30"`
	QuoteTTL         time.Duration `envconfig:"SARVA_DELIVERY_QUOTE_TTL" default:"10m"`
}

type SettlementConfig struct {
	Currency          string        `envconfig:"SARVA_SETTLEMENT_CURRENCY" default:"usd"`
	PlatformFeeBP     int           `envconfig:"SARVA_SETTLEMENT_PLATFORM_FEE_BP" default:"500"`
	RetryInterval     time.Duration `envconfig:"SARVA_SETTLEMENT_RETRY_INTERVAL" default:"1m"`
	RetryMaxAttempts  int           `envconfig:"SARVA_SETTLEMENT_RETRY_MAX_ATTEMPTS" default:"10"`
	RetryBatchSize    int           `envconfig:"SARVA_SETTLEMENT_RETRY_BATCH_SIZE" default:"25"`
	RetryBaseBackoff  time.Duration `envconfig:"SARVA_SETTLEMENT_RETRY_BASE_BACKOFF" default:"2s"`
	RetryLockTTL      time.Duration `envconfig:"SARVA_SETTLEMENT_RETRY_LOCK_TTL" default:"5m"`
	IdempotencyTTL    time.Duration `envconfig:"SARVA_SETTLEMENT_IDEMPOTENCY_TTL" default:"168h"`
}

type CheckoutConfig struct {
	TaxRateBP        int           `envconfig:"SARVA_CHECKOUT_TAX_RATE_BP" default:"700"`
	ServiceFeeRateBP int           `envconfig:"SARVA_CHECKOUT_SERVICE_FEE_RATE_BP" default:"500"`
	SessionTTL       time.Duration `envconfig:"SARVA_CHECKOUT_SESSION_TTL" default:"30m"`
}

type RateLimitConfig struct {
	QuoteWindow    time.Duration `envconfig:"SARVA_RATE_LIMIT_QUOTE_WINDOW" default:"1m"`
	QuoteIPLimit   int           `envconfig:"SARVA_RATE_LIMIT_QUOTE_IP_LIMIT" default:"60"`
	QuoteUserLimit int           `envconfig:"SARVA_RATE_LIMIT_QUOTE_USER_LIMIT" default:"120"`
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
