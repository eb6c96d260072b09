// Package store is the thin persistence interface over the single SQLite
// file: narrow named mutation methods for accounts, events, and settings,
// with transparent encrypt/decrypt of credential columns via the vault.
package store

import "time"

// Account is a credential record for one calendar source.
type Account struct {
	ID                int64
	Provider          string // "google" or "ics"
	AccountName       string
	AuthData          string // decrypted on read; plaintext in memory only
	RefreshToken      *string
	LastSyncedAt      *time.Time
	EncryptionVersion *int
	EncryptedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const (
	ProviderGoogle = "google"
	ProviderICS    = "ics"
)

// Event is a cached instance of a scheduled meeting.
type Event struct {
	ID                  int64
	ExternalID          string
	AccountID           int64
	Title               string
	Description         *string
	StartTime           time.Time
	EndTime             time.Time
	VideoLink           *string
	VideoPlatform       *string
	SnoozeCount         int
	HasAlerted          bool
	LastAlertThreshold  *int
	IsDismissed         bool
	LastSnoozedAt       *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EventFields carries the remote-sourced fields a sync upsert supplies;
// user-mutated fields (snooze state, alert state, dismissal) are
// preserved across an upsert and are not part of this struct.
type EventFields struct {
	Title         string
	Description   *string
	StartTime     time.Time
	EndTime       time.Time
	VideoLink     *string
	VideoPlatform *string
}

// Setting is a recognized key/value configuration row.
type Setting struct {
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
