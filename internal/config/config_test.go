package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Geo.DefaultRadius != 5 || cfg.Geo.MinRadius != 1 || cfg.Geo.MaxRadius != 50 {
		t.Errorf("unexpected radius defaults %+v", cfg.Geo)
	}
	if cfg.Conversation.DirectTitle != "Direct Message" {
		t.Errorf("DirectTitle = %q", cfg.Conversation.DirectTitle)
	}
	if cfg.Conversation.CreateTimeout != 15*time.Second {
		t.Errorf("CreateTimeout = %v", cfg.Conversation.CreateTimeout)
	}
	if !cfg.Log.Pretty {
		t.Error("expected pretty logs in development")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GEO_DEFAULT_RADIUS", "10")
	t.Setenv("GEO_LINK_TIMEOUT", "3s")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_PRETTY", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Geo.DefaultRadius != 10 {
		t.Errorf("DefaultRadius = %v", cfg.Geo.DefaultRadius)
	}
	if cfg.Geo.LinkTimeout != 3*time.Second {
		t.Errorf("LinkTimeout = %v", cfg.Geo.LinkTimeout)
	}
	if len(cfg.Server.CorsOrigins) != 2 || cfg.Server.CorsOrigins[1] != "https://b.example" {
		t.Errorf("CorsOrigins = %v", cfg.Server.CorsOrigins)
	}
	if cfg.Log.Pretty {
		t.Error("LOG_PRETTY=false ignored")
	}
}

func TestLoadRejectsInvalidRadius(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("GEO_DEFAULT_RADIUS", "80")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a default radius above the maximum")
	}
}

func TestLoadRequiresPasswordOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for the default password in production")
	}
}
