package config

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "PDV"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages, tooling).
const (
	EnvAppEnv   = "PDV_APP_ENV"
	EnvPort     = "PDV_APP_PORT"
	EnvLogLevel = "PDV_LOG_LEVEL"

	EnvDBDSN  = "PDV_DB_DSN"
	EnvDBHost = "PDV_DB_HOST"
	EnvDBUser = "PDV_DB_USER"
	EnvDBName = "PDV_DB_NAME"

	EnvRedisURL = "PDV_REDIS_URL"

	EnvJWTSecret  = "PDV_JWT_SECRET"
	EnvJWTIssuer  = "PDV_JWT_ISSUER"
	EnvJWTExpMins = "PDV_JWT_EXPIRATION_MINUTES"

	EnvRefreshTokenTTLMinutes = "PDV_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
