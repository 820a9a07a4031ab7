// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the orchestrator
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Cache      CacheConfig      `json:"cache"`
	Logging    LoggingConfig    `json:"logging"`
	Extraction ExtractionConfig `json:"extraction"`
	Engine     EngineConfig     `json:"engine"`
	Gateway    GatewayConfig    `json:"gateway"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Wizard     WizardConfig     `json:"wizard"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type LoggingConfig struct {
	Output     string `json:"output"` // "stdout" or "file"
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

// ExtractionConfig points at the document extraction service. A domain of
// "mock" swaps in the in-process mock client.
type ExtractionConfig struct {
	Domain  string        `json:"domain"`
	Timeout time.Duration `json:"timeout"`
}

// EngineConfig points at the remote message-sending engine.
type EngineConfig struct {
	Domain  string        `json:"domain"`
	Timeout time.Duration `json:"timeout"`
}

// GatewayConfig points at the payment verification backend and the hosted
// checkout page operators are sent to.
type GatewayConfig struct {
	Domain      string        `json:"domain"`
	CheckoutURL string        `json:"checkout_url"`
	Timeout     time.Duration `json:"timeout"`
}

type TelemetryConfig struct {
	Domain           string        `json:"domain"` // ws:// or wss://
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
	LogCapacity      int           `json:"log_capacity"`
}

// WizardConfig carries orchestration policy: operators allowed to skip the
// payment gate entirely.
type WizardConfig struct {
	BypassOperators []string `json:"bypass_operators"`
}

// Load reads configuration from the environment, preferring an optional
// .env file for local development.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 12*1024*1024),
			AllowedOrigins:  getEnvStringSlice("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "voteflow"),
			User:            getEnvString("DB_USER", "voteflow"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", true),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "voteflow:"),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/voteflow/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Extraction: ExtractionConfig{
			Domain:  getEnvString("EXTRACTION_DOMAIN", "mock"),
			Timeout: getEnvDuration("EXTRACTION_TIMEOUT", 120*time.Second),
		},
		Engine: EngineConfig{
			Domain:  getEnvString("ENGINE_DOMAIN", "http://localhost:8000"),
			Timeout: getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),
		},
		Gateway: GatewayConfig{
			Domain:      getEnvString("GATEWAY_DOMAIN", "http://localhost:8000"),
			CheckoutURL: getEnvString("GATEWAY_CHECKOUT_URL", "https://pay.voteflow.in/checkout"),
			Timeout:     getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			Domain:           getEnvString("TELEMETRY_DOMAIN", "ws://localhost:8000"),
			HandshakeTimeout: getEnvDuration("TELEMETRY_HANDSHAKE_TIMEOUT", 15*time.Second),
			LogCapacity:      getEnvInt("TELEMETRY_LOG_CAPACITY", 50),
		},
		Wizard: WizardConfig{
			BypassOperators: getEnvStringSlice("WIZARD_BYPASS_OPERATORS", []string{}),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values the orchestrator
// cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Engine.Domain == "" {
		return fmt.Errorf("engine domain is required")
	}
	if cfg.Telemetry.Domain == "" {
		return fmt.Errorf("telemetry domain is required")
	}
	if !strings.HasPrefix(cfg.Telemetry.Domain, "ws://") && !strings.HasPrefix(cfg.Telemetry.Domain, "wss://") {
		return fmt.Errorf("telemetry domain must be a ws:// or wss:// URL: %s", cfg.Telemetry.Domain)
	}
	if cfg.Telemetry.LogCapacity <= 0 {
		return fmt.Errorf("telemetry log capacity must be positive: %d", cfg.Telemetry.LogCapacity)
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	file, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
