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
	Clerk        ClerkConfig
	N8N          N8NConfig
	Relay        RelayConfig
	Webhooks     WebhookConfig
	CORS         CORSConfig
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
	if err := cfg.N8N.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRENDLENS_APP_ENV" required:"true"`
	Port         string `envconfig:"TRENDLENS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRENDLENS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRENDLENS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return matchesAny(a.Env, devAliases)
}

func (a AppConfig) IsProd() bool {
	return matchesAny(a.Env, prodAliases)
}

func matchesAny(value string, candidates []string) bool {
	value = strings.TrimSpace(value)
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}

type DBConfig struct {
	DSN    string `envconfig:"TRENDLENS_DB_DSN"`
	Driver string `envconfig:"TRENDLENS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRENDLENS_DB_HOST"`
	LegacyPort     int    `envconfig:"TRENDLENS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRENDLENS_DB_USER"`
	LegacyPassword string `envconfig:"TRENDLENS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRENDLENS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRENDLENS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRENDLENS_DB_POOL_MAX" default:"20"`
	MaxIdleConns    int           `envconfig:"TRENDLENS_DB_POOL_MIN" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"TRENDLENS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRENDLENS_DB_CONN_MAX_IDLE_TIME" default:"30s"`

	SlowQueryThreshold time.Duration `envconfig:"TRENDLENS_DB_SLOW_QUERY" default:"200ms"`
}

// RedisConfig is optional. With no URL or address the delivery guard and the
// relay rate limiter are disabled.
type RedisConfig struct {
	URL          string        `envconfig:"TRENDLENS_REDIS_URL"`
	Address      string        `envconfig:"TRENDLENS_REDIS_ADDR"`
	Password     string        `envconfig:"TRENDLENS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRENDLENS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRENDLENS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRENDLENS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRENDLENS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRENDLENS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"TRENDLENS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type ClerkConfig struct {
	WebhookSecret     string        `envconfig:"TRENDLENS_CLERK_WEBHOOK_SECRET" required:"true"`
	SecretKey         string        `envconfig:"TRENDLENS_CLERK_SECRET_KEY"`
	APIURL            string        `envconfig:"TRENDLENS_CLERK_API_URL"`
	JWKSURL           string        `envconfig:"TRENDLENS_CLERK_JWKS_URL"`
	Issuer            string        `envconfig:"TRENDLENS_CLERK_ISSUER"`
	AuthorizedParties []string      `envconfig:"TRENDLENS_CLERK_AUTHORIZED_PARTIES"`
	JWKSRefresh       time.Duration `envconfig:"TRENDLENS_CLERK_JWKS_REFRESH" default:"1h"`
	ClockSkew         time.Duration `envconfig:"TRENDLENS_CLERK_CLOCK_SKEW" default:"5s"`
}

// SessionAuthEnabled reports whether session tokens can be verified.
func (c ClerkConfig) SessionAuthEnabled() bool {
	return strings.TrimSpace(c.JWKSURL) != ""
}

type N8NConfig struct {
	BaseURL         string        `envconfig:"TRENDLENS_N8N_WEBHOOK_URL"`
	VideoWorkflowID string        `envconfig:"TRENDLENS_N8N_VIDEO_ANALYSIS_WEBHOOK_ID"`
	URLWorkflowID   string        `envconfig:"TRENDLENS_N8N_YOUTUBE_ANALYSIS_WEBHOOK_ID"`
	APIKey          string        `envconfig:"TRENDLENS_N8N_API_KEY"`
	JWTSecret       string        `envconfig:"TRENDLENS_N8N_JWT_SECRET"`
	JWTIssuer       string        `envconfig:"TRENDLENS_N8N_JWT_ISSUER" default:"trendlens-api"`
	Timeout         time.Duration `envconfig:"TRENDLENS_N8N_TIMEOUT" default:"5m"`
}

func (n N8NConfig) validate() error {
	base := strings.TrimSpace(n.BaseURL)
	if base == "" {
		return nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", EnvN8NBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", EnvN8NBaseURL)
	}
	return nil
}

type RelayConfig struct {
	MaxVideoMB int           `envconfig:"TRENDLENS_RELAY_MAX_VIDEO_MB" default:"100"`
	RateLimit  int           `envconfig:"TRENDLENS_RELAY_RATE_LIMIT" default:"10"`
	RateWindow time.Duration `envconfig:"TRENDLENS_RELAY_RATE_WINDOW" default:"1m"`
}

// MaxVideoBytes returns the upload ceiling in bytes.
func (r RelayConfig) MaxVideoBytes() int64 {
	if r.MaxVideoMB <= 0 {
		return 100 << 20
	}
	return int64(r.MaxVideoMB) << 20
}

type WebhookConfig struct {
	ReplayTTL time.Duration `envconfig:"TRENDLENS_WEBHOOK_REPLAY_TTL" default:"72h"`
	MaxBodyKB int           `envconfig:"TRENDLENS_WEBHOOK_MAX_BODY_KB" default:"512"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TRENDLENS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRENDLENS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRENDLENS_AUTO_MIGRATE" default:"false"`
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
