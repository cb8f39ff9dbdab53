package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store and session backends.
const (
	StoreREST     = "rest"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SessionRedis  = "redis"
	SessionMemory = "memory"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreBackend    string        `mapstructure:"STORE_BACKEND"`
	SupabaseURL     string        `mapstructure:"SUPABASE_URL"`
	SupabaseAPIKey  string        `mapstructure:"SUPABASE_API_KEY"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	SessionBackend  string        `mapstructure:"SESSION_BACKEND"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookie   string        `mapstructure:"SESSION_COOKIE"`
	SessionSecure   bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	DefaultReferrer string        `mapstructure:"DEFAULT_REFERRER"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", StoreREST)
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SESSION_BACKEND", SessionRedis)
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("SESSION_COOKIE", "donorflow_session")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEFAULT_REFERRER", "/dashboard")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "STORE_BACKEND", "SUPABASE_URL", "SUPABASE_API_KEY", "UPSTREAM_TIMEOUT",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SESSION_BACKEND", "REDIS_URL",
		"SESSION_TTL", "SESSION_COOKIE", "SESSION_COOKIE_SECURE", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "CORS_ORIGINS",
		"DEFAULT_REFERRER", "REQUEST_TIMEOUT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secure cookies by default everywhere but local development.
	if !v.IsSet("SESSION_COOKIE_SECURE") {
		cfg.SessionSecure = !cfg.IsDev()
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Requests without a bearer token are treated as admin.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected backends have what they need to start.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreREST:
		if c.SupabaseURL == "" || c.SupabaseAPIKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_API_KEY are required when STORE_BACKEND is %q", StoreREST)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", StorePostgres)
		}
	case StoreMemory:
		if !c.IsDev() {
			return fmt.Errorf("STORE_BACKEND %q is only allowed in development", StoreMemory)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got %q", StoreREST, StorePostgres, StoreMemory, c.StoreBackend)
	}

	switch c.SessionBackend {
	case SessionRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND is %q", SessionRedis)
		}
	case SessionMemory:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", SessionRedis, SessionMemory, c.SessionBackend)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}
