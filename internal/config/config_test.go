package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFileWithEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`
scheduler:
  sync_interval_seconds: 120
logging:
  level: "debug"
`), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("OPENCHIME_CONFIG_FILE", cfgPath)
	t.Setenv("GOOGLE_CLIENT_ID", "abc123.apps.googleusercontent.com")
	t.Setenv("GOOGLE_CLIENT_SECRET", "shh-secret")
	t.Setenv("OPENCHIME_LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.SyncIntervalSeconds != 120 {
		t.Fatalf("expected file-configured sync interval 120, got %d", cfg.Scheduler.SyncIntervalSeconds)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("expected env override for format, got %s", cfg.Logging.Format)
	}
	if cfg.Google.ClientID != "abc123.apps.googleusercontent.com" {
		t.Fatalf("unexpected client id: %s", cfg.Google.ClientID)
	}
}

func TestValidate_RejectsPlaceholderClientID(t *testing.T) {
	cfg := defaultConfig(t.TempDir())
	cfg.Google.ClientID = "your-client-id"
	cfg.Google.ClientSecret = "secret"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a placeholder client id")
	}
}

func TestValidate_RejectsMissingGoogleusercontentSuffix(t *testing.T) {
	cfg := defaultConfig(t.TempDir())
	cfg.Google.ClientID = "not-a-real-client-id"
	cfg.Google.ClientSecret = "secret"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a malformed client id")
	}
}

func TestValidate_RejectsBadLoggingFormat(t *testing.T) {
	cfg := defaultConfig(t.TempDir())
	cfg.Google.ClientID = "abc.apps.googleusercontent.com"
	cfg.Google.ClientSecret = "secret"
	cfg.Logging.Format = "xml"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unsupported logging format")
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := defaultConfig(t.TempDir())
	cfg.Google.ClientID = "abc.apps.googleusercontent.com"
	cfg.Google.ClientSecret = "secret"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a well-formed config to validate, got %v", err)
	}
}
