package migrate

import (
	"context"
	"database/sql"

	"github.com/socrates8300/openchime/internal/vault"
)

// baselineSchema is migration 1: the initial store schema.
const baselineSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	provider           TEXT NOT NULL CHECK (provider IN ('google', 'ics')),
	account_name       TEXT NOT NULL,
	auth_data          TEXT NOT NULL,
	refresh_token      TEXT,
	last_synced_at     TEXT,
	created_at         TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_accounts_provider ON accounts(provider);

CREATE TABLE IF NOT EXISTS events (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id           TEXT NOT NULL,
	account_id            INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	title                 TEXT NOT NULL,
	description           TEXT,
	start_time            TEXT NOT NULL,
	end_time              TEXT NOT NULL,
	video_link            TEXT,
	video_platform        TEXT,
	snooze_count          INTEGER NOT NULL DEFAULT 0,
	has_alerted           INTEGER NOT NULL DEFAULT 0,
	last_alert_threshold  INTEGER,
	is_dismissed          INTEGER NOT NULL DEFAULT 0,
	last_snoozed_at       TEXT,
	created_at            TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at            TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time);
CREATE INDEX IF NOT EXISTS idx_events_account ON events(account_id);
CREATE INDEX IF NOT EXISTS idx_events_external_id ON events(external_id);
CREATE INDEX IF NOT EXISTS idx_events_alert_window ON events(has_alerted, is_dismissed, start_time);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// encryptionColumns is migration 2: additive encryption-tracking columns
// on accounts, schema-only, null defaults.
const encryptionColumns = `
ALTER TABLE accounts ADD COLUMN encryption_version INTEGER;
ALTER TABLE accounts ADD COLUMN encrypted_at TEXT;
`

// Defined returns the ordered migration list. v is required by migration
// 3 (data re-encryption); it may be nil only when every migration in the
// ledger has already been applied, since Driver.Run skips migrations
// already recorded before ever calling Apply.
func Defined(v *vault.Vault) []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "baseline schema",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, baselineSchema)
				return err
			},
		},
		{
			Version: 2,
			Name:    "add encryption tracking columns",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, encryptionColumns)
				return err
			},
		},
		{
			Version: 3,
			Name:    "encrypt legacy plaintext credentials",
			Guard:   hasLegacyCredentials,
			Apply:   func(ctx context.Context, tx *sql.Tx) error { return encryptLegacyCredentials(ctx, tx, v) },
		},
	}
}

// hasLegacyCredentials reports whether any account still needs migration
// 3. On a fresh install this is false, and the migration is skipped
// entirely: no ledger row is written for version 3 until there is
// something to migrate.
func hasLegacyCredentials(ctx context.Context, db migrationQuerier) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE encryption_version IS NULL OR encryption_version = 0
	`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// encryptLegacyCredentials re-encrypts auth_data and refresh_token for
// every account with encryption_version IS NULL OR 0. Rows already at
// encryption_version=1 are left untouched,
// which also makes the migration idempotent beyond the ledger check.
func encryptLegacyCredentials(ctx context.Context, tx *sql.Tx, v *vault.Vault) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, auth_data, refresh_token
		FROM accounts
		WHERE encryption_version IS NULL OR encryption_version = 0
	`)
	if err != nil {
		return err
	}

	type legacyRow struct {
		id           int64
		authData     string
		refreshToken sql.NullString
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.authData, &r.refreshToken); err != nil {
			rows.Close()
			return err
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range legacy {
		encAuthData, err := v.EncryptString(r.authData)
		if err != nil {
			return err
		}

		var encRefreshToken sql.NullString
		if r.refreshToken.Valid {
			enc, err := v.EncryptString(r.refreshToken.String)
			if err != nil {
				return err
			}
			encRefreshToken = sql.NullString{String: enc, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET auth_data = ?, refresh_token = ?, encryption_version = 1, encrypted_at = datetime('now')
			WHERE id = ?
		`, encAuthData, encRefreshToken, r.id); err != nil {
			return err
		}
	}

	return nil
}
