package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "LOG_PRETTY", "TIMEZONE", "DISPATCH_WORKERS", "AUTO_MIGRATE", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.Port != "8081" || cfg.LogLevel != "info" || cfg.LogPretty {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DispatchWorkers != 8 || !cfg.AutoMigrate {
		t.Errorf("workers %d auto-migrate %v", cfg.DispatchWorkers, cfg.AutoMigrate)
	}
	if cfg.Location != time.Local {
		t.Errorf("location: got %v", cfg.Location)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("cors: got %v", cfg.CORSOrigins)
	}
}

func TestLoad_EnvFileAndCoercion(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_PRETTY", "TIMEZONE", "DISPATCH_WORKERS", "AUTO_MIGRATE", "CORS_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("DISPATCH_WORKERS", "-3")

	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=9090\nLOG_PRETTY=1\nTIMEZONE=UTC\nAUTO_MIGRATE=false\nCORS_ORIGINS=http://a.test, http://b.test ,\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)

	if cfg.Port != "9090" || !cfg.LogPretty || cfg.AutoMigrate {
		t.Errorf("env file not applied: %+v", cfg)
	}
	if cfg.Location != time.UTC {
		t.Errorf("location: got %v", cfg.Location)
	}
	if cfg.DispatchWorkers != 8 {
		t.Errorf("invalid worker count should fall back, got %d", cfg.DispatchWorkers)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("cors: got %v", cfg.CORSOrigins)
	}
}
