package config

// EnvPrefix scopes every variable read by envconfig.
const EnvPrefix = "LIBRARY"

const (
	AppEnvDev  = "dev"
	AppEnvTest = "test"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DBDriverMongo    = "mongo"
)

const (
	EnvAppEnv       = "LIBRARY_APP_ENV"
	EnvPort         = "LIBRARY_APP_PORT"
	EnvLogLevel     = "LIBRARY_LOG_LEVEL"
	EnvLogWarnStack = "LIBRARY_LOG_WARN_STACK"

	EnvDBDSN      = "LIBRARY_DB_DSN"
	EnvDBDriver   = "LIBRARY_DB_DRIVER"
	EnvDBHost     = "LIBRARY_DB_HOST"
	EnvDBPort     = "LIBRARY_DB_PORT"
	EnvDBUser     = "LIBRARY_DB_USER"
	EnvDBPassword = "LIBRARY_DB_PASSWORD"
	EnvDBName     = "LIBRARY_DB_NAME"
	EnvDBSSLMode  = "LIBRARY_DB_SSLMODE"

	EnvMongoURI      = "LIBRARY_MONGO_URI"
	EnvMongoDatabase = "LIBRARY_MONGO_DATABASE"

	EnvRedisURL = "LIBRARY_REDIS_URL"

	EnvJWTSecret               = "LIBRARY_JWT_SECRET"
	EnvJWTIssuer               = "LIBRARY_JWT_ISSUER"
	EnvJWTExpMins              = "LIBRARY_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "LIBRARY_REFRESH_TOKEN_TTL_MINUTES"
	EnvAdminRegistrationSecret = "LIBRARY_ADMIN_SECRET"

	EnvRateLimitWindow   = "LIBRARY_RATE_LIMIT_WINDOW"
	EnvRateLimitRequests = "LIBRARY_RATE_LIMIT_REQUESTS"

	EnvLendingMaxActive  = "LIBRARY_LENDING_MAX_ACTIVE_BORROWS"
	EnvLendingLoanPeriod = "LIBRARY_LENDING_LOAN_PERIOD"

	EnvCORSAllowedOrigins = "LIBRARY_CORS_ALLOWED_ORIGINS"

	EnvAutoMigrate = "LIBRARY_AUTO_MIGRATE"
	EnvSeedData    = "LIBRARY_SEED_DATA"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
