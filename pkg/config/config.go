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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Mpesa        MpesaConfig
	Paystack     PaystackConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	cfg.Mpesa.Timeout = clampProcessorTimeout(cfg.Mpesa.Timeout)
	cfg.Paystack.Timeout = clampProcessorTimeout(cfg.Paystack.Timeout)
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"KICKS_APP_ENV" required:"true"`
	Port          string `envconfig:"KICKS_APP_PORT" required:"true"`
	LogLevel      string `envconfig:"KICKS_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"KICKS_LOG_WARN_STACK" default:"false"`
	PublicBaseURL string `envconfig:"KICKS_PUBLIC_BASE_URL"`
	APIBasePath   string `envconfig:"KICKS_API_BASE_PATH" default:"/api/v1"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KICKS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KICKS_DB_DSN"`
	Driver string `envconfig:"KICKS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KICKS_DB_HOST"`
	LegacyPort     int    `envconfig:"KICKS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KICKS_DB_USER"`
	LegacyPassword string `envconfig:"KICKS_DB_PASSWORD"`
	LegacyName     string `envconfig:"KICKS_DB_NAME"`
	LegacySSLMode  string `envconfig:"KICKS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KICKS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KICKS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KICKS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KICKS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"KICKS_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KICKS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KICKS_REDIS_ADDR"`
	Password     string        `envconfig:"KICKS_REDIS_PASSWORD"`
	DB           int           `envconfig:"KICKS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KICKS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KICKS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KICKS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KICKS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KICKS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KICKS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KICKS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KICKS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KICKS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KICKS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	RealtimeChannelPrefix string        `envconfig:"KICKS_EVENTING_REALTIME_PREFIX" default:"kicks:events"`
	WebhookIdempotencyTTL time.Duration `envconfig:"KICKS_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	HTTPIdempotencyTTL    time.Duration `envconfig:"KICKS_EVENTING_HTTP_IDEMPOTENCY_TTL" default:"24h"`
	OutboxEnabled         bool          `envconfig:"KICKS_EVENTING_OUTBOX_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"KICKS_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"KICKS_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"KICKS_PUBSUB_ORDERS_TOPIC" default:"kicks-order-events"`
	PaymentsTopic string `envconfig:"KICKS_PUBSUB_PAYMENTS_TOPIC" default:"kicks-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KICKS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KICKS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KICKS_OUTBOX_MAX_ATTEMPTS" default:"10"`

	RetentionDays    int `envconfig:"KICKS_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"KICKS_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

// MpesaConfig holds Safaricom Daraja credentials for Lipa na M-Pesa Online.
type MpesaConfig struct {
	BaseURL         string        `envconfig:"KICKS_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey     string        `envconfig:"KICKS_MPESA_CONSUMER_KEY"`
	ConsumerSecret  string        `envconfig:"KICKS_MPESA_CONSUMER_SECRET"`
	ShortCode       string        `envconfig:"KICKS_MPESA_SHORTCODE"`
	PassKey         string        `envconfig:"KICKS_MPESA_PASSKEY"`
	TransactionType string        `envconfig:"KICKS_MPESA_TRANSACTION_TYPE" default:"CustomerPayBillOnline"`
	AccountRef      string        `envconfig:"KICKS_MPESA_ACCOUNT_REFERENCE" default:"KICKS"`
	CallbackURL     string        `envconfig:"KICKS_MPESA_CALLBACK_URL"`
	Timeout         time.Duration `envconfig:"KICKS_MPESA_TIMEOUT" default:"10s"`
}

type PaystackConfig struct {
	BaseURL     string        `envconfig:"KICKS_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	SecretKey   string        `envconfig:"KICKS_PAYSTACK_SECRET_KEY"`
	CallbackURL string        `envconfig:"KICKS_PAYSTACK_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"KICKS_PAYSTACK_TIMEOUT" default:"10s"`
}

// ReconcileConfig tunes the cron job that resolves stuck STK pushes.
type ReconcileConfig struct {
	StaleAfter time.Duration `envconfig:"KICKS_RECONCILE_STALE_AFTER" default:"2m"`
	MaxAge     time.Duration `envconfig:"KICKS_RECONCILE_MAX_AGE" default:"24h"`
	BatchSize  int           `envconfig:"KICKS_RECONCILE_BATCH_SIZE" default:"25"`
	Interval   time.Duration `envconfig:"KICKS_RECONCILE_INTERVAL" default:"1m"`
}

func clampProcessorTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultProcessorTimeout
	case d < MinProcessorTimeout:
		return MinProcessorTimeout
	case d > MaxProcessorTimeout:
		return MaxProcessorTimeout
	}
	return d
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
