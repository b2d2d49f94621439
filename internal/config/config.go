// Package config loads service configuration from a YAML file with
// .env / environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"
	defaultEngineURL       = "http://localhost:3001"
	defaultBatchLimit      = 100
	defaultSiteBatchLimit  = 50
	defaultStaleAfter      = 2 * time.Minute
	defaultSweepSpec       = "* * * * *"
)

type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Engine    EngineConfig    `yaml:"engine"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection configuration for event publishing.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// EngineConfig holds the worker engine connection settings. The base URL is
// explicit configuration rather than process-wide state so a gateway instance
// fully owns its connection parameters.
type EngineConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type DispatchConfig struct {
	BatchLimit        int `yaml:"batch_limit"`
	WebsiteBatchLimit int `yaml:"website_batch_limit"`
}

type SessionsConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

// SchedulerConfig controls the optional cron-driven background jobs. The stale
// sweep and auto-dispatch remain invocable through the API regardless.
type SchedulerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	StaleSweepSpec   string `yaml:"stale_sweep_spec"`
	AutoDispatchSpec string `yaml:"auto_dispatch_spec"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Engine.BaseURL == "" {
		return errors.New("engine.base_url is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	// .env files are optional; missing files are not an error
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("parse config: %w", unmarshalErr)
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "gobotctl"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Engine.BaseURL == "" {
		cfg.Engine.BaseURL = defaultEngineURL
	}
	if cfg.Engine.ConnectTimeout == 0 {
		cfg.Engine.ConnectTimeout = 5 * time.Second
	}
	if cfg.Dispatch.BatchLimit == 0 {
		cfg.Dispatch.BatchLimit = defaultBatchLimit
	}
	if cfg.Dispatch.WebsiteBatchLimit == 0 {
		cfg.Dispatch.WebsiteBatchLimit = defaultSiteBatchLimit
	}
	if cfg.Sessions.StaleAfter == 0 {
		cfg.Sessions.StaleAfter = defaultStaleAfter
	}
	if cfg.Scheduler.StaleSweepSpec == "" {
		cfg.Scheduler.StaleSweepSpec = defaultSweepSpec
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Server.Host, "SERVER_HOST")
	overrideInt(&cfg.Server.Port, "SERVER_PORT")
	overrideBool(&cfg.Debug, "APP_DEBUG")
	overrideString(&cfg.Database.Host, "DB_HOST")
	overrideInt(&cfg.Database.Port, "DB_PORT")
	overrideString(&cfg.Database.User, "DB_USER")
	overrideString(&cfg.Database.Password, "DB_PASSWORD")
	overrideString(&cfg.Database.DBName, "DB_NAME")
	overrideString(&cfg.Database.SSLMode, "DB_SSLMODE")
	overrideString(&cfg.Redis.Address, "REDIS_ADDRESS")
	overrideString(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideInt(&cfg.Redis.DB, "REDIS_DB")
	overrideBool(&cfg.Redis.Enabled, "REDIS_EVENTS_ENABLED")
	overrideString(&cfg.Engine.BaseURL, "BOT_ENGINE_URL")
	overrideBool(&cfg.Scheduler.Enabled, "SCHEDULER_ENABLED")
}

func overrideString(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

func overrideInt(target *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*target = n
		}
	}
}

func overrideBool(target *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val == "true" || val == "1" || val == "yes"
	}
}

// GetConfigPath returns the config path from CONFIG_PATH env var or the default.
func GetConfigPath(defaultPath string) string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return defaultPath
}
