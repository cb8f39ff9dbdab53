package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("STORE_BACKEND", "rest")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_API_KEY", "anon-key")
	t.Setenv("SESSION_BACKEND", "memory")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("expected upstream timeout 10s, got %s", cfg.UpstreamTimeout)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("expected session ttl 2h, got %s", cfg.SessionTTL)
	}
	if cfg.SessionCookie != "donorflow_session" {
		t.Errorf("expected default cookie name, got %s", cfg.SessionCookie)
	}
	if cfg.DefaultReferrer != "/dashboard" {
		t.Errorf("expected default referrer /dashboard, got %s", cfg.DefaultReferrer)
	}
}

func TestLoad_RESTRequiresSupabase(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SUPABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SUPABASE_URL is missing")
	}
}

func TestLoad_CORSOriginsSplit(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:             "production",
		StoreBackend:    StorePostgres,
		DatabaseURL:     "postgres://localhost/donorflow",
		SessionBackend:  SessionRedis,
		RedisURL:        "redis://localhost:6379/0",
		AuthSigningKey:  "secret",
		UpstreamTimeout: time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"redis without url", func(c *Config) { c.RedisURL = "" }, true},
		{"unknown store", func(c *Config) { c.StoreBackend = "mysql" }, true},
		{"unknown session", func(c *Config) { c.SessionBackend = "file" }, true},
		{"memory store outside dev", func(c *Config) { c.StoreBackend = StoreMemory }, true},
		{"memory store in dev", func(c *Config) { c.StoreBackend = StoreMemory; c.Env = "development" }, false},
		{"missing signing key", func(c *Config) { c.AuthSigningKey = "" }, true},
		{"signing key optional in dev", func(c *Config) { c.AuthSigningKey = ""; c.Env = "development" }, false},
		{"zero upstream timeout", func(c *Config) { c.UpstreamTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestLoad_SessionCookieSecure(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionSecure {
		t.Error("development cookies should not be secure by default")
	}

	t.Setenv("SESSION_COOKIE_SECURE", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.SessionSecure {
		t.Error("explicit SESSION_COOKIE_SECURE should win")
	}
}
