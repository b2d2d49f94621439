package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
debug: true
server:
  host: "0.0.0.0"
  port: 8060
database:
  host: "localhost"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"
engine:
  base_url: "http://localhost:3001"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if !cfg.Debug {
		t.Error("Load() cfg.Debug = false, want true")
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Load() cfg.Server.Host = %v, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8060 {
		t.Errorf("Load() cfg.Server.Port = %v, want 8060", cfg.Server.Port)
	}
	if cfg.Engine.BaseURL != "http://localhost:3001" {
		t.Errorf("Load() cfg.Engine.BaseURL = %v, want http://localhost:3001", cfg.Engine.BaseURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  host: "127.0.0.1"
database:
  host: "localhost"
  user: "user"
  password: "pass"
  dbname: "db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Load() cfg.Server.Port = %v, want %v", cfg.Server.Port, defaultServerPort)
	}
	if cfg.Database.MaxOpenConns != defaultMaxOpenConns {
		t.Errorf("Load() cfg.Database.MaxOpenConns = %v, want %v", cfg.Database.MaxOpenConns, defaultMaxOpenConns)
	}
	if cfg.Engine.BaseURL != defaultEngineURL {
		t.Errorf("Load() cfg.Engine.BaseURL = %v, want %v", cfg.Engine.BaseURL, defaultEngineURL)
	}
	if cfg.Dispatch.BatchLimit != defaultBatchLimit {
		t.Errorf("Load() cfg.Dispatch.BatchLimit = %v, want %v", cfg.Dispatch.BatchLimit, defaultBatchLimit)
	}
	if cfg.Dispatch.WebsiteBatchLimit != defaultSiteBatchLimit {
		t.Errorf("Load() cfg.Dispatch.WebsiteBatchLimit = %v, want %v", cfg.Dispatch.WebsiteBatchLimit, defaultSiteBatchLimit)
	}
	if cfg.Sessions.StaleAfter != 2*time.Minute {
		t.Errorf("Load() cfg.Sessions.StaleAfter = %v, want 2m", cfg.Sessions.StaleAfter)
	}
	if cfg.Scheduler.StaleSweepSpec != defaultSweepSpec {
		t.Errorf("Load() cfg.Scheduler.StaleSweepSpec = %v, want %v", cfg.Scheduler.StaleSweepSpec, defaultSweepSpec)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
server:
  host: "127.0.0.1"
database:
  host: "localhost"
  user: "user"
  dbname: "db"
`)

	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("BOT_ENGINE_URL", "http://engine:4000")
	t.Setenv("REDIS_EVENTS_ENABLED", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Load() cfg.Database.Host = %v, want db.internal", cfg.Database.Host)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Load() cfg.Database.Port = %v, want 5433", cfg.Database.Port)
	}
	if cfg.Engine.BaseURL != "http://engine:4000" {
		t.Errorf("Load() cfg.Engine.BaseURL = %v, want http://engine:4000", cfg.Engine.BaseURL)
	}
	if !cfg.Redis.Enabled {
		t.Error("Load() cfg.Redis.Enabled = false, want true")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Load() cfg.Server.Port = %v, want %v", cfg.Server.Port, defaultServerPort)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing server host",
			mutate:  func(cfg *Config) { cfg.Server.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing database user",
			mutate:  func(cfg *Config) { cfg.Database.User = "" },
			wantErr: true,
		},
		{
			name:    "missing engine base url",
			mutate:  func(cfg *Config) { cfg.Engine.BaseURL = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
