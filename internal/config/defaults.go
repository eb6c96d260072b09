// Package config loads OpenChime's configuration from defaults, an
// optional YAML file, and environment variable overrides, in that order.
package config

import "time"

// Scheduler defaults
const (
	DefaultSyncIntervalSeconds = 300
)

// Vault defaults
const (
	DefaultKeystoreService = "openchime"
	DefaultKeystoreKeyName = "master-key"
)

// Database defaults
const (
	DefaultDBFileName    = "openchime.db"
	DefaultBusyTimeoutMs = 10000
)

// Google defaults
var DefaultGoogleScopes = []string{"https://www.googleapis.com/auth/calendar.readonly"}

// Logging defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// HTTP client defaults (ICS fetch).
const (
	DefaultHTTPRequestTimeout = 30 * time.Second
	DefaultHTTPConnectTimeout = 10 * time.Second
)

// Shutdown defaults
const (
	DefaultShutdownTimeout = 10 * time.Second
)
