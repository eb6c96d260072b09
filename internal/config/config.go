package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/socrates8300/openchime/internal/ocerr"
)

// Config holds all application configuration.
type Config struct {
	DataDir   string
	Database  DatabaseConfig
	Vault     VaultConfig
	Google    GoogleConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path          string
	BusyTimeoutMs int
}

// VaultConfig holds credential-at-rest vault settings.
type VaultConfig struct {
	KeystoreService string
	KeystoreKeyName string
}

// GoogleConfig holds Google OAuth settings, validated as mandatory at
// startup.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// SchedulerConfig holds alert-scheduler and sync-coordinator settings.
type SchedulerConfig struct {
	SyncIntervalSeconds int
	ShutdownTimeout     time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// placeholderClientIDs are literal values rejected as clearly unconfigured.
var placeholderClientIDs = map[string]bool{
	"your-client-id": true,
	"changeme":       true,
	"replace-me":     true,
	"YOUR_CLIENT_ID": true,
}

// Load reads configuration from defaults, then an optional YAML file,
// then environment variable overrides, then validates.
func Load() (*Config, error) {
	dataDir := getEnvAnyDefault(defaultDataDir(), "OPENCHIME_DATA_DIR")
	cfg := defaultConfig(dataDir)

	configPath := getEnvAnyDefault(filepath.Join(dataDir, "config.yaml"), "OPENCHIME_CONFIG_FILE")
	if err := loadConfigFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set and
// well-formed, returning a ConfigInvalid error otherwise.
func (c *Config) Validate() error {
	if c.Google.ClientID == "" {
		return ocerr.New(ocerr.ConfigInvalid, "config: GOOGLE_CLIENT_ID is required")
	}
	if placeholderClientIDs[c.Google.ClientID] {
		return ocerr.New(ocerr.ConfigInvalid, "config: GOOGLE_CLIENT_ID is a placeholder value")
	}
	if !strings.Contains(c.Google.ClientID, ".apps.googleusercontent.com") {
		return ocerr.New(ocerr.ConfigInvalid, "config: GOOGLE_CLIENT_ID must be a valid Google OAuth client id")
	}
	if c.Google.ClientSecret == "" {
		return ocerr.New(ocerr.ConfigInvalid, "config: GOOGLE_CLIENT_SECRET is required")
	}
	if placeholderClientIDs[c.Google.ClientSecret] {
		return ocerr.New(ocerr.ConfigInvalid, "config: GOOGLE_CLIENT_SECRET is a placeholder value")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return ocerr.New(ocerr.ConfigInvalid, "config: logging format must be json or text")
	}

	if c.Scheduler.SyncIntervalSeconds <= 0 {
		return ocerr.New(ocerr.ConfigInvalid, "config: sync interval must be positive")
	}

	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "openchime")
	}
	return filepath.Join(".", "openchime-data")
}

func defaultConfig(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		Database: DatabaseConfig{
			Path:          filepath.Join(dataDir, DefaultDBFileName),
			BusyTimeoutMs: DefaultBusyTimeoutMs,
		},
		Vault: VaultConfig{
			KeystoreService: DefaultKeystoreService,
			KeystoreKeyName: DefaultKeystoreKeyName,
		},
		Google: GoogleConfig{
			Scopes: append([]string(nil), DefaultGoogleScopes...),
		},
		Scheduler: SchedulerConfig{
			SyncIntervalSeconds: DefaultSyncIntervalSeconds,
			ShutdownTimeout:     DefaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if dataDir := getEnvAny("OPENCHIME_DATA_DIR"); dataDir != "" && dataDir != cfg.DataDir {
		cfg.DataDir = dataDir
		cfg.Database.Path = filepath.Join(dataDir, filepath.Base(cfg.Database.Path))
	}

	cfg.Database.BusyTimeoutMs = getEnvIntAny(cfg.Database.BusyTimeoutMs, "OPENCHIME_DB_BUSY_TIMEOUT_MS")

	cfg.Google.ClientID = getEnvAnyDefault(cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = getEnvAnyDefault(cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")

	cfg.Scheduler.SyncIntervalSeconds = getEnvIntAny(cfg.Scheduler.SyncIntervalSeconds, "OPENCHIME_SYNC_INTERVAL_SECONDS")

	cfg.Logging.Level = getEnvAnyDefault(cfg.Logging.Level, "OPENCHIME_LOG_LEVEL")
	cfg.Logging.Format = getEnvAnyDefault(cfg.Logging.Format, "OPENCHIME_LOG_FORMAT")
}

// Helper functions for environment variable parsing.

func getEnvAny(keys ...string) string {
	for _, key := range keys {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
	}
	return ""
}

func getEnvAnyDefault(defaultValue string, keys ...string) string {
	if value := getEnvAny(keys...); value != "" {
		return value
	}
	return defaultValue
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func getEnvIntAny(defaultValue int, keys ...string) int {
	if value := getEnvAny(keys...); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
