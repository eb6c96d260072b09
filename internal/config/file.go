package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile mirrors Config with pointer fields so an absent YAML key
// leaves the corresponding default untouched.
type ConfigFile struct {
	DataDir   *string             `yaml:"data_dir"`
	Database  *DatabaseConfigFile `yaml:"database"`
	Vault     *VaultConfigFile    `yaml:"vault"`
	Google    *GoogleConfigFile   `yaml:"google"`
	Scheduler *SchedulerConfigFile `yaml:"scheduler"`
	Logging   *LoggingConfigFile  `yaml:"logging"`
}

type DatabaseConfigFile struct {
	Path          *string `yaml:"path"`
	BusyTimeoutMs *int    `yaml:"busy_timeout_ms"`
}

type VaultConfigFile struct {
	KeystoreService *string `yaml:"keystore_service"`
	KeystoreKeyName *string `yaml:"keystore_key_name"`
}

type GoogleConfigFile struct {
	ClientID     *string   `yaml:"client_id"`
	ClientSecret *string   `yaml:"client_secret"`
	Scopes       *[]string `yaml:"scopes"`
}

type SchedulerConfigFile struct {
	SyncIntervalSeconds *int    `yaml:"sync_interval_seconds"`
	ShutdownTimeoutSecs *int    `yaml:"shutdown_timeout_seconds"`
}

type LoggingConfigFile struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

func loadConfigFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyConfigFile(cfg, &file)
	return nil
}

func applyConfigFile(cfg *Config, file *ConfigFile) {
	if cfg == nil || file == nil {
		return
	}

	if file.DataDir != nil {
		cfg.DataDir = *file.DataDir
	}

	if file.Database != nil {
		if file.Database.Path != nil {
			cfg.Database.Path = *file.Database.Path
		}
		if file.Database.BusyTimeoutMs != nil {
			cfg.Database.BusyTimeoutMs = *file.Database.BusyTimeoutMs
		}
	}

	if file.Vault != nil {
		if file.Vault.KeystoreService != nil {
			cfg.Vault.KeystoreService = *file.Vault.KeystoreService
		}
		if file.Vault.KeystoreKeyName != nil {
			cfg.Vault.KeystoreKeyName = *file.Vault.KeystoreKeyName
		}
	}

	if file.Google != nil {
		if file.Google.ClientID != nil {
			cfg.Google.ClientID = *file.Google.ClientID
		}
		if file.Google.ClientSecret != nil {
			cfg.Google.ClientSecret = *file.Google.ClientSecret
		}
		if file.Google.Scopes != nil {
			cfg.Google.Scopes = *file.Google.Scopes
		}
	}

	if file.Scheduler != nil {
		if file.Scheduler.SyncIntervalSeconds != nil {
			cfg.Scheduler.SyncIntervalSeconds = *file.Scheduler.SyncIntervalSeconds
		}
		if file.Scheduler.ShutdownTimeoutSecs != nil {
			cfg.Scheduler.ShutdownTimeout = secondsToDuration(*file.Scheduler.ShutdownTimeoutSecs)
		}
	}

	if file.Logging != nil {
		if file.Logging.Level != nil {
			cfg.Logging.Level = *file.Logging.Level
		}
		if file.Logging.Format != nil {
			cfg.Logging.Format = *file.Logging.Format
		}
	}
}
