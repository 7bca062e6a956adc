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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"KICKOFF_APP_ENV" required:"true"`
	Port         string `envconfig:"KICKOFF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KICKOFF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KICKOFF_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KICKOFF_DB_DSN"`
	Driver string `envconfig:"KICKOFF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KICKOFF_DB_HOST"`
	LegacyPort     int    `envconfig:"KICKOFF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KICKOFF_DB_USER"`
	LegacyPassword string `envconfig:"KICKOFF_DB_PASSWORD"`
	LegacyName     string `envconfig:"KICKOFF_DB_NAME"`
	LegacySSLMode  string `envconfig:"KICKOFF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KICKOFF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KICKOFF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KICKOFF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KICKOFF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KICKOFF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KICKOFF_REDIS_ADDR"`
	Password     string        `envconfig:"KICKOFF_REDIS_PASSWORD"`
	DB           int           `envconfig:"KICKOFF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KICKOFF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KICKOFF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KICKOFF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KICKOFF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KICKOFF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KICKOFF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KICKOFF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KICKOFF_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey             string        `envconfig:"KICKOFF_STRIPE_API_KEY"`
	WebhookSecret      string        `envconfig:"KICKOFF_STRIPE_WEBHOOK_SECRET"`
	Env                string        `envconfig:"KICKOFF_STRIPE_ENV" default:"test"`
	BasicPriceID       string        `envconfig:"KICKOFF_STRIPE_BASIC_PRICE_ID"`
	PremiumPriceID     string        `envconfig:"KICKOFF_STRIPE_PREMIUM_PRICE_ID"`
	CheckoutSuccessURL string        `envconfig:"KICKOFF_STRIPE_CHECKOUT_SUCCESS_URL" default:"https://hq.kickoffclub.com/billing/success"`
	CheckoutCancelURL  string        `envconfig:"KICKOFF_STRIPE_CHECKOUT_CANCEL_URL" default:"https://hq.kickoffclub.com/billing/canceled"`
	PortalReturnURL    string        `envconfig:"KICKOFF_STRIPE_PORTAL_RETURN_URL" default:"https://hq.kickoffclub.com/account"`
	RequestTimeout     time.Duration `envconfig:"KICKOFF_STRIPE_REQUEST_TIMEOUT" default:"15s"`
	EventDedupTTL      time.Duration `envconfig:"KICKOFF_STRIPE_EVENT_DEDUP_TTL" default:"720h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"KICKOFF_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"KICKOFF_SENDGRID_FROM_EMAIL" default:"coach@kickoffclub.com"`
	FromName    string `envconfig:"KICKOFF_SENDGRID_FROM_NAME" default:"Kickoff Club HQ"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KICKOFF_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KICKOFF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KICKOFF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"KICKOFF_BIGQUERY_DATASET" default:"kickoff"`
	WebVitalsTable string `envconfig:"KICKOFF_BIGQUERY_WEB_VITALS_TABLE" default:"web_vitals"`
}

type RateLimitConfig struct {
	CouponValidateWindow time.Duration `envconfig:"KICKOFF_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponValidateLimit  int64         `envconfig:"KICKOFF_RATE_LIMIT_COUPON_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"KICKOFF_AUTO_MIGRATE" default:"false"`
	AnalyticsEnable bool `envconfig:"KICKOFF_ANALYTICS_ENABLE" default:"true"`
}

// ensureDSN assembles the connection string from the discrete host/user/name
// vars when no DSN is set. Those vars predate the single-DSN config and some
// deploy environments still use them.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	db.DSN = db.legacyDSN()
	return nil
}

func (db *DBConfig) legacyDSN() string {
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
	return u.String()
}
