package config

import (
	"encoding/hex"
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "insureline",
				Password: "secret",
				Name:     "insureline",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=insureline password=secret dbname=insureline sslmode=require",
		},
		{
			name: "disable ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "mydb",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=mydb sslmode=disable",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "",
				Name:     "dbname",
				SSLMode:  "prefer",
			},
			want: "host=localhost port=5432 user=user password= dbname=dbname sslmode=prefer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetDSN()
			if got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3000}, "localhost:3000"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
		{"port 443", ServerConfig{Host: "0.0.0.0", Port: 443}, "0.0.0.0:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetAddress()
			if got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "insureline",
			User: "insureline",
		},
		Auth: AuthConfig{
			Lockout: LockoutConfig{Threshold: 5, LockDuration: 15 * time.Minute},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("invalid server port 0", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Server.Port = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for port 0, got nil")
		}
	})

	t.Run("invalid server port 70000", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Server.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for port 70000, got nil")
		}
	})

	t.Run("missing base_url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Server.BaseURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty base_url, got nil")
		}
	})

	t.Run("missing database host", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Database.Host = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty database host, got nil")
		}
	})

	t.Run("missing database name", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Database.Name = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty database name, got nil")
		}
	})

	t.Run("missing database user", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Database.User = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for empty database user, got nil")
		}
	})

	t.Run("zero lockout threshold", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Auth.Lockout.Threshold = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for zero lockout threshold, got nil")
		}
	})

	t.Run("zero lock duration", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Auth.Lockout.LockDuration = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for zero lock duration, got nil")
		}
	})

	t.Run("encryption key not hex", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Crypto.EncryptionKey = "not-hex!!"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for non-hex encryption key, got nil")
		}
	})

	t.Run("encryption key wrong length", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Crypto.EncryptionKey = hex.EncodeToString(make([]byte, 16))
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for 16-byte encryption key, got nil")
		}
	})

	t.Run("valid encryption key passes", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Crypto.EncryptionKey = hex.EncodeToString(make([]byte, 32))
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error for valid encryption key: %v", err)
		}
	})

	t.Run("passphrase with short salt", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Crypto.Passphrase = "my-passphrase"
		cfg.Crypto.Salt = "short"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for short salt, got nil")
		}
	})

	t.Run("shipper enabled missing url", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shipper.Enabled = true
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for shipper without url, got nil")
		}
	})

	t.Run("tls enabled missing cert_file", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.TLS = TLSConfig{Enabled: true, KeyFile: "key.pem"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for missing tls cert_file, got nil")
		}
	})

	t.Run("tls enabled missing key_file", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.TLS = TLSConfig{Enabled: true, CertFile: "cert.pem"}
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for missing tls key_file, got nil")
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Logging.Level = "verbose"
		if err := cfg.Validate(); err == nil {
			t.Error("Validate() expected error for invalid log level, got nil")
		}
	})

	t.Run("all valid log levels pass", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			cfg := minimalValidConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() unexpected error for log level %q: %v", level, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// CryptoConfig.FieldKey
// ---------------------------------------------------------------------------

func TestFieldKey(t *testing.T) {
	t.Run("empty config yields nil", func(t *testing.T) {
		c := CryptoConfig{}
		if key := c.FieldKey(); key != nil {
			t.Errorf("FieldKey() = %v, want nil", key)
		}
	})

	t.Run("valid hex key decodes", func(t *testing.T) {
		raw := make([]byte, 32)
		raw[0] = 0xAB
		c := CryptoConfig{EncryptionKey: hex.EncodeToString(raw)}
		key := c.FieldKey()
		if len(key) != 32 || key[0] != 0xAB {
			t.Errorf("FieldKey() = %v, want decoded 32-byte key", key)
		}
	})
}

// ---------------------------------------------------------------------------
// Load – defaults and env var expansion
// ---------------------------------------------------------------------------

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	// Load with a nonexistent config path falls back to defaults + env vars
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		// Validation may fail due to missing required fields in default config;
		// that is acceptable – we just check that a file-not-found doesn't crash.
		if !strings.Contains(err.Error(), "invalid configuration") &&
			!strings.Contains(err.Error(), "error reading config file") {
			t.Fatalf("Load() unexpected error kind: %v", err)
		}
	} else {
		// If it did succeed, the defaults should be sensible.
		if cfg.Server.Port != 8080 {
			t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
		}
		if cfg.Database.Host != "localhost" {
			t.Errorf("default database host = %q, want %q", cfg.Database.Host, "localhost")
		}
	}
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Run("expands ${VAR} syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SECRET", "super-secret")
		got := expandEnv("${CONFIG_TEST_SECRET}")
		if got != "super-secret" {
			t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
		}
	})

	t.Run("expands $VAR syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_VAL", "hello")
		got := expandEnv("$CONFIG_TEST_VAL")
		if got != "hello" {
			t.Errorf("expandEnv() = %q, want %q", got, "hello")
		}
	})

	t.Run("plain string passthrough", func(t *testing.T) {
		got := expandEnv("no-vars-here")
		if got != "no-vars-here" {
			t.Errorf("expandEnv() = %q, want %q", got, "no-vars-here")
		}
	})

	t.Run("unset variable expands to empty string", func(t *testing.T) {
		os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
		got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}")
		if got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})

	t.Run("empty string passthrough", func(t *testing.T) {
		got := expandEnv("")
		if got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Load – with config file
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
  base_url: "http://testhost:9999"
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
logging:
  level: "debug"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" {
		t.Errorf("Server.Host = %q, want testhost", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("Database.Name = %q, want testdb", cfg.Database.Name)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	// Config without server.host or server.port — setDefaults() should fill them in.
	const content = `
server:
  base_url: "http://localhost:8080"
database:
  host: "localhost"
  name: "insureline"
  user: "insureline"
logging:
  level: "info"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("default Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("default Database.SSLMode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Auth.Lockout.Threshold != 5 {
		t.Errorf("default Auth.Lockout.Threshold = %d, want 5", cfg.Auth.Lockout.Threshold)
	}
	if cfg.Auth.Lockout.LockDuration != 15*time.Minute {
		t.Errorf("default Auth.Lockout.LockDuration = %v, want 15m", cfg.Auth.Lockout.LockDuration)
	}
	if cfg.Auth.Tokens.VerificationTTL != 48*time.Hour {
		t.Errorf("default Auth.Tokens.VerificationTTL = %v, want 48h", cfg.Auth.Tokens.VerificationTTL)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
server:
  port: 8080
  base_url: "http://localhost:8080"
database:
  host: "localhost"
  name: "insureline"
  user: "insureline"
  password: "${TEST_DB_PASS}"
logging:
  level: "info"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_UnprefixedEncryptionKeyWins(t *testing.T) {
	key := hex.EncodeToString(make([]byte, 32))
	t.Setenv("ENCRYPTION_KEY", key)
	const content = `
server:
  port: 8080
  base_url: "http://localhost:8080"
database:
  host: "localhost"
  name: "insureline"
  user: "insureline"
logging:
  level: "info"
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Crypto.EncryptionKey != key {
		t.Errorf("Crypto.EncryptionKey = %q, want value of ENCRYPTION_KEY", cfg.Crypto.EncryptionKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [unclosed")
	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}
