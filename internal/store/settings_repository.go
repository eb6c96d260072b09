package store

import (
	"context"
	"strconv"

	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/ocerr"
)

// SettingsRepository is a key/value store over the settings table. The
// recognized key set is closed; readers coerce values with explicit
// parsing and defaults, and unknown keys are ignored.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository returns a SettingsRepository.
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the raw stored value for key, and whether it was present.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return "", false, nil
		}
		return "", false, ocerr.Wrap(ocerr.DatabaseError, "failed to read setting", err)
	}
	return value, true, nil
}

// Set upserts key=value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to write setting", err)
	}
	return nil
}

// All loads every recognized setting, falling back to its documented
// default when absent.
func (r *SettingsRepository) All(ctx context.Context) (Settings, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return Settings{}, ocerr.Wrap(ocerr.DatabaseError, "failed to list settings", err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, ocerr.Wrap(ocerr.DatabaseError, "failed to scan setting row", err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}

	return settingsFromRaw(raw), nil
}

// Settings is the typed view over the recognized settings keys and
// their defaults.
type Settings struct {
	Sound               string
	Volume               float64
	VideoAlertOffset     int // minutes
	RegularAlertOffset   int // minutes
	SnoozeInterval       int // minutes
	MaxSnoozes           int
	SyncIntervalSeconds  int
	AutoJoinEnabled      bool
	Theme                string
	Alert30m             bool
	Alert10m             bool
	Alert5m              bool
	Alert1m              bool
	AlertDefault         bool
}

// DefaultSettings returns the documented default settings.
func DefaultSettings() Settings {
	return Settings{
		Sound:               "bells",
		Volume:              0.7,
		VideoAlertOffset:    3,
		RegularAlertOffset:  1,
		SnoozeInterval:      2,
		MaxSnoozes:          3,
		SyncIntervalSeconds: 300,
		AutoJoinEnabled:     false,
		Theme:               "dark",
		Alert30m:            false,
		Alert10m:            false,
		Alert5m:             true,
		Alert1m:             true,
		AlertDefault:        true,
	}
}

func settingsFromRaw(raw map[string]string) Settings {
	s := DefaultSettings()

	if v, ok := raw["sound"]; ok {
		s.Sound = v
	}
	if v, ok := raw["volume"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Volume = f
		}
	}
	if v, ok := raw["video_alert_offset"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.VideoAlertOffset = n
		}
	}
	if v, ok := raw["regular_alert_offset"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.RegularAlertOffset = n
		}
	}
	if v, ok := raw["snooze_interval"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.SnoozeInterval = n
		}
	}
	if v, ok := raw["max_snoozes"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxSnoozes = n
		}
	}
	if v, ok := raw["sync_interval"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.SyncIntervalSeconds = n
		}
	}
	if v, ok := raw["auto_join_enabled"]; ok {
		s.AutoJoinEnabled = v == "true" || v == "1"
	}
	if v, ok := raw["theme"]; ok {
		s.Theme = v
	}
	if v, ok := raw["alert_30m"]; ok {
		s.Alert30m = v == "true" || v == "1"
	}
	if v, ok := raw["alert_10m"]; ok {
		s.Alert10m = v == "true" || v == "1"
	}
	if v, ok := raw["alert_5m"]; ok {
		s.Alert5m = v == "true" || v == "1"
	}
	if v, ok := raw["alert_1m"]; ok {
		s.Alert1m = v == "true" || v == "1"
	}
	if v, ok := raw["alert_default"]; ok {
		s.AlertDefault = v == "true" || v == "1"
	}

	return s
}

// EnabledThresholds returns the sorted set of alert bands (minutes) the
// settings enable, from {30, 10, 5, 1, 0}, used as additional nudges
// layered on top of the video/regular offset.
func (s Settings) EnabledThresholds() []int {
	var bands []int
	if s.Alert30m {
		bands = append(bands, 30)
	}
	if s.Alert10m {
		bands = append(bands, 10)
	}
	if s.Alert5m {
		bands = append(bands, 5)
	}
	if s.Alert1m {
		bands = append(bands, 1)
	}
	if s.AlertDefault {
		bands = append(bands, 0)
	}
	return bands
}
