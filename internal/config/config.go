// Package config loads CurioBox settings from YAML, .env and the process
// environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// PathEnv names the variable pointing at the YAML config file.
const PathEnv = "CURIOBOX_CONFIG"

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Database    DatabaseConfig       `yaml:"database"`
	Redis       RedisConfig          `yaml:"redis"`
	Auth        AuthConfig           `yaml:"auth"`
	Uploads     UploadsConfig        `yaml:"uploads"`
	Logging     logger.LoggingConfig `yaml:"logging"`
	Maintenance MaintenanceConfig    `yaml:"maintenance"`
	Audit       AuditConfig          `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	CORSOrigins  []string      `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" env:"SERVER_RATE_LIMIT_RPS"`
	RateBurst    int           `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// RedisConfig enables the shared cache and revocation list. An empty Addr
// keeps both in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

// AuthConfig configures tokens and the bootstrap admin.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"JWT_TTL"`
	Issuer        string        `yaml:"issuer" env:"JWT_ISSUER"`
	AdminUsername string        `yaml:"admin_username" env:"ADMIN_USERNAME"`
	AdminPassword string        `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

// UploadsConfig configures image storage.
type UploadsConfig struct {
	Dir          string `yaml:"dir" env:"UPLOADS_DIR"`
	PublicPrefix string `yaml:"public_prefix" env:"UPLOADS_PREFIX"`
	MaxBytes     int64  `yaml:"max_bytes" env:"UPLOADS_MAX_BYTES"`
}

// MaintenanceConfig holds cron specs for housekeeping jobs. An empty spec
// disables the job.
type MaintenanceConfig struct {
	PruneSpec   string `yaml:"prune" env:"MAINTENANCE_PRUNE"`
	SummarySpec string `yaml:"summary" env:"MAINTENANCE_SUMMARY"`
}

// AuditConfig configures the admin audit trail.
type AuditConfig struct {
	File     string `yaml:"file" env:"AUDIT_FILE"`
	RingSize int    `yaml:"ring_size" env:"AUDIT_RING_SIZE"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"*"},
			RateLimitRPS: 20,
			RateBurst:    40,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{Prefix: "curiobox:"},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "curiobox",
		},
		Uploads: UploadsConfig{
			Dir:          "data/uploads",
			PublicPrefix: "/uploads",
			MaxBytes:     5 << 20,
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Maintenance: MaintenanceConfig{
			PruneSpec:   "@every 5m",
			SummarySpec: "@hourly",
		},
		Audit: AuditConfig{RingSize: 200},
	}
}

// Load builds a configuration from defaults, the YAML file at path (or
// $CURIOBOX_CONFIG when path is empty), a .env file and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv(PathEnv))
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave
// the current values alone.
func ApplyEnv(cfg *Config) error {
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be memory or postgres", c.Database.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("uploads.max_bytes must be positive"))
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("auth.admin_username and auth.admin_password must be set together"))
	}
	return errors.Join(errs...)
}
