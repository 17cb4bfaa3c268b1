package config

import "time"

const (
	EnvPrefix = "KICKS"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv    = "KICKS_APP_ENV"
	EnvPort      = "KICKS_APP_PORT"
	EnvDBDSN     = "KICKS_DB_DSN"
	EnvDBHost    = "KICKS_DB_HOST"
	EnvDBUser    = "KICKS_DB_USER"
	EnvDBName    = "KICKS_DB_NAME"
	EnvRedisURL  = "KICKS_REDIS_URL"
	EnvJWTSecret = "KICKS_JWT_SECRET"
	EnvJWTIssuer = "KICKS_JWT_ISSUER"

	EnvMpesaTimeout    = "KICKS_MPESA_TIMEOUT"
	EnvPaystackTimeout = "KICKS_PAYSTACK_TIMEOUT"
)

// Outbound processor calls are bounded to this window.
const (
	MinProcessorTimeout     = 5 * time.Second
	MaxProcessorTimeout     = 15 * time.Second
	DefaultProcessorTimeout = 10 * time.Second
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
