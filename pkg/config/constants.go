package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// KICKOFF_-prefixed names so the prefix stays empty here.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "KICKOFF_APP_ENV"
	EnvPort     = "KICKOFF_APP_PORT"
	EnvDBDSN    = "KICKOFF_DB_DSN"
	EnvDBHost   = "KICKOFF_DB_HOST"
	EnvDBUser   = "KICKOFF_DB_USER"
	EnvDBName   = "KICKOFF_DB_NAME"
	EnvRedisURL = "KICKOFF_REDIS_URL"

	EnvJWTSecret  = "KICKOFF_JWT_SECRET"
	EnvJWTIssuer  = "KICKOFF_JWT_ISSUER"
	EnvJWTExpMins = "KICKOFF_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey        = "KICKOFF_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "KICKOFF_STRIPE_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
