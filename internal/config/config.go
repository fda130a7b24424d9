// Package config loads and validates the application configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the INS_ prefix (e.g., INS_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments — no recompilation or different binaries needed.
//
// The ENCRYPTION_KEY variable has no INS_ prefix because it may be injected by
// infrastructure tooling (e.g., Kubernetes secrets, Vault agent) that does not
// know the application-specific prefix and treats it as a generic secret name.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// RedisConfig holds the Redis connection used for rate limiting. Rate limiting
// falls back to an in-process limiter when no address is configured.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Lockout    LockoutConfig `mapstructure:"lockout"`
	Tokens     TokensConfig  `mapstructure:"tokens"`
}

// LockoutConfig holds the failed-login lockout policy.
type LockoutConfig struct {
	Threshold    int           `mapstructure:"threshold"`
	LockDuration time.Duration `mapstructure:"lock_duration"`
}

// TokensConfig holds the validity windows for single-use action tokens.
type TokensConfig struct {
	VerificationTTL  time.Duration `mapstructure:"verification_ttl"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl"`
}

// CryptoConfig holds field encryption configuration. EncryptionKey is a
// hex-encoded 32-byte key; when empty, Passphrase and Salt derive one.
type CryptoConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	Passphrase    string `mapstructure:"passphrase"`
	Salt          string `mapstructure:"salt"`
	Iterations    int    `mapstructure:"iterations"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// LoginPerMinute is a tighter limit applied to the credential endpoints.
	LoginPerMinute int `mapstructure:"login_per_minute"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// AuditConfig holds audit trail configuration. Rows are always written to the
// database; the shipper additionally forwards them to an external collector.
type AuditConfig struct {
	Shipper AuditShipperConfig `mapstructure:"shipper"`
}

// AuditShipperConfig holds webhook shipping configuration for audit rows.
type AuditShipperConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	TimeoutSecs   int               `mapstructure:"timeout_secs"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval int               `mapstructure:"flush_interval_secs"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
// viper.BindEnv only errors when called with zero keys; since every key here is a non-empty
// hardcoded string, any error indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.read_timeout",
		"server.write_timeout",

		// Redis
		"redis.address",
		"redis.password",
		"redis.db",

		// Auth
		"auth.session_ttl",
		"auth.lockout.threshold",
		"auth.lockout.lock_duration",
		"auth.tokens.verification_ttl",
		"auth.tokens.password_reset_ttl",

		// Crypto
		"crypto.encryption_key",
		"crypto.passphrase",
		"crypto.salt",
		"crypto.iterations",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.login_per_minute",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Audit shipper
		"audit.shipper.enabled",
		"audit.shipper.url",
		"audit.shipper.timeout_secs",
		"audit.shipper.batch_size",
		"audit.shipper.flush_interval_secs",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file path if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yaml in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/insureline")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	// Enable environment variable support
	v.SetEnvPrefix("INS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Crypto.Passphrase = expandEnv(cfg.Crypto.Passphrase)

	// The unprefixed ENCRYPTION_KEY wins over the config key.
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		cfg.Crypto.EncryptionKey = key
	} else {
		cfg.Crypto.EncryptionKey = expandEnv(cfg.Crypto.EncryptionKey)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "insureline")
	v.SetDefault("database.user", "insureline")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.session_ttl", "1h")
	v.SetDefault("auth.lockout.threshold", 5)
	v.SetDefault("auth.lockout.lock_duration", "15m")
	v.SetDefault("auth.tokens.verification_ttl", "48h")
	v.SetDefault("auth.tokens.password_reset_ttl", "1h")

	// Crypto defaults
	v.SetDefault("crypto.iterations", 100000)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.rate_limiting.login_per_minute", 10)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "insureline")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Audit shipper defaults
	v.SetDefault("audit.shipper.enabled", false)
	v.SetDefault("audit.shipper.timeout_secs", 10)
	v.SetDefault("audit.shipper.batch_size", 50)
	v.SetDefault("audit.shipper.flush_interval_secs", 15)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate database
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	// Validate lockout policy
	if c.Auth.Lockout.Threshold < 1 {
		return fmt.Errorf("auth.lockout.threshold must be at least 1")
	}
	if c.Auth.Lockout.LockDuration <= 0 {
		return fmt.Errorf("auth.lockout.lock_duration must be positive")
	}

	// Validate crypto: exactly one of key or passphrase+salt
	if c.Crypto.EncryptionKey != "" {
		raw, err := hex.DecodeString(c.Crypto.EncryptionKey)
		if err != nil {
			return fmt.Errorf("crypto.encryption_key must be hex-encoded: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("crypto.encryption_key must decode to 32 bytes, got %d", len(raw))
		}
	} else if c.Crypto.Passphrase != "" {
		if len(c.Crypto.Salt) < 16 {
			return fmt.Errorf("crypto.salt must be at least 16 bytes when deriving from a passphrase")
		}
	}

	// Validate audit shipper if enabled
	if c.Audit.Shipper.Enabled && c.Audit.Shipper.URL == "" {
		return fmt.Errorf("audit.shipper.url is required when the shipper is enabled")
	}

	// Validate TLS if enabled
	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// FieldKey returns the raw 32-byte field encryption key, or nil when field
// encryption is not configured.
func (c *CryptoConfig) FieldKey() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	raw, err := hex.DecodeString(c.EncryptionKey)
	if err != nil || len(raw) != 32 {
		return nil
	}
	return raw
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
