package config

const (
	EnvPrefix = "TRENDLENS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TRENDLENS_APP_ENV"
	EnvPort     = "TRENDLENS_APP_PORT"
	EnvLogLevel = "TRENDLENS_LOG_LEVEL"

	EnvDBDSN  = "TRENDLENS_DB_DSN"
	EnvDBHost = "TRENDLENS_DB_HOST"
	EnvDBUser = "TRENDLENS_DB_USER"
	EnvDBName = "TRENDLENS_DB_NAME"

	EnvRedisURL = "TRENDLENS_REDIS_URL"

	EnvClerkWebhookSecret = "TRENDLENS_CLERK_WEBHOOK_SECRET"
	EnvClerkSecretKey     = "TRENDLENS_CLERK_SECRET_KEY"
	EnvClerkJWKSURL       = "TRENDLENS_CLERK_JWKS_URL"
	EnvClerkIssuer        = "TRENDLENS_CLERK_ISSUER"

	EnvN8NBaseURL        = "TRENDLENS_N8N_WEBHOOK_URL"
	EnvN8NVideoWorkflow  = "TRENDLENS_N8N_VIDEO_ANALYSIS_WEBHOOK_ID"
	EnvN8NURLWorkflow    = "TRENDLENS_N8N_YOUTUBE_ANALYSIS_WEBHOOK_ID"
	EnvN8NAPIKey         = "TRENDLENS_N8N_API_KEY"
	EnvN8NJWTSecret      = "TRENDLENS_N8N_JWT_SECRET"
	EnvN8NTimeout        = "TRENDLENS_N8N_TIMEOUT"
	EnvRelayRateLimit    = "TRENDLENS_RELAY_RATE_LIMIT"
	EnvRelayRateWindow   = "TRENDLENS_RELAY_RATE_WINDOW"
	EnvWebhookReplayTTL  = "TRENDLENS_WEBHOOK_REPLAY_TTL"
	EnvCORSAllowedOrigin = "TRENDLENS_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Values recognised as dev/prod in addition to the canonical constants.
var (
	devAliases  = []string{AppEnvDev, "development", "local"}
	prodAliases = []string{AppEnvProd, "production"}
)
