package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/util"
	"github.com/socrates8300/openchime/internal/vault"
)

// AccountRepository is the narrow set of named mutation methods the rest
// of the system uses to touch the accounts table. All reads decrypt
// auth_data/refresh_token transparently; all writes encrypt before
// binding, so no caller outside this package ever handles ciphertext.
type AccountRepository struct {
	db    *database.DB
	vault *vault.Vault
}

// NewAccountRepository returns an AccountRepository.
func NewAccountRepository(db *database.DB, v *vault.Vault) *AccountRepository {
	return &AccountRepository{db: db, vault: v}
}

// Add inserts a new account. refreshToken must be nil for provider=ics
// per the data model invariant.
func (r *AccountRepository) Add(ctx context.Context, provider, accountName, authData string, refreshToken *string) (*Account, error) {
	if provider == ProviderICS && refreshToken != nil {
		return nil, ocerr.New(ocerr.ConfigInvalid, "ics accounts cannot carry a refresh token")
	}
	if authData == "" {
		return nil, ocerr.New(ocerr.ConfigInvalid, "auth_data cannot be empty")
	}

	encAuthData, err := r.vault.EncryptString(authData)
	if err != nil {
		return nil, err
	}

	var encRefreshToken sql.NullString
	if refreshToken != nil {
		enc, err := r.vault.EncryptString(*refreshToken)
		if err != nil {
			return nil, err
		}
		encRefreshToken = sql.NullString{String: enc, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (provider, account_name, auth_data, refresh_token, encryption_version, encrypted_at)
		VALUES (?, ?, ?, ?, 1, datetime('now'))
	`, provider, accountName, encAuthData, encRefreshToken)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to insert account", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to read inserted account id", err)
	}

	return r.Get(ctx, id)
}

// Get retrieves a single account by id, decrypting its credential columns.
func (r *AccountRepository) Get(ctx context.Context, id int64) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, account_name, auth_data, refresh_token, last_synced_at,
		       encryption_version, encrypted_at, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)
	return r.scanAccount(row)
}

// List retrieves every account, decrypting credential columns.
func (r *AccountRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, provider, account_name, auth_data, refresh_token, last_synced_at,
		       encryption_version, encrypted_at, created_at, updated_at
		FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to list accounts", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acct, err := r.scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

// Delete removes an account; events cascade via the foreign key.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to delete account", err)
	}
	return nil
}

// UpdateAuth re-encrypts and stores new credentials, used after an OAuth
// token refresh.
func (r *AccountRepository) UpdateAuth(ctx context.Context, id int64, authData string, refreshToken *string) error {
	encAuthData, err := r.vault.EncryptString(authData)
	if err != nil {
		return err
	}

	var encRefreshToken sql.NullString
	if refreshToken != nil {
		enc, err := r.vault.EncryptString(*refreshToken)
		if err != nil {
			return err
		}
		encRefreshToken = sql.NullString{String: enc, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE accounts SET auth_data = ?, refresh_token = ?, updated_at = datetime('now')
		WHERE id = ?
	`, encAuthData, encRefreshToken, id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to update account credentials", err)
	}
	return nil
}

// UpdateLastSynced records the timestamp of the most recent successful
// sync for an account.
func (r *AccountRepository) UpdateLastSynced(ctx context.Context, id int64, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET last_synced_at = ?, updated_at = datetime('now') WHERE id = ?
	`, util.SQLiteTimestamp(ts), id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to update last_synced_at", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AccountRepository) scanAccount(row *sql.Row) (*Account, error) {
	return r.scanAccountRow(row)
}

func (r *AccountRepository) scanAccountRow(scanner rowScanner) (*Account, error) {
	var (
		a                 Account
		encAuthData       string
		encRefreshToken   sql.NullString
		lastSyncedAt      sql.NullString
		encryptionVersion sql.NullInt64
		encryptedAt       sql.NullString
		createdAt         string
		updatedAt         string
	)

	if err := scanner.Scan(
		&a.ID, &a.Provider, &a.AccountName, &encAuthData, &encRefreshToken, &lastSyncedAt,
		&encryptionVersion, &encryptedAt, &createdAt, &updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ocerr.New(ocerr.DatabaseError, "account not found")
		}
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to scan account row", err)
	}

	if encryptionVersion.Valid && encryptionVersion.Int64 >= 1 {
		plaintext, err := r.vault.Decrypt(encAuthData)
		if err != nil {
			return nil, ocerr.Wrap(ocerr.DecryptionFailed, "failed to decrypt auth_data", err)
		}
		a.AuthData = plaintext.String()
		plaintext.Close()
	} else {
		// Legacy plaintext row, not yet migrated by migration 3.
		a.AuthData = encAuthData
	}

	if encRefreshToken.Valid {
		if encryptionVersion.Valid && encryptionVersion.Int64 >= 1 {
			plaintext, err := r.vault.Decrypt(encRefreshToken.String)
			if err != nil {
				return nil, ocerr.Wrap(ocerr.DecryptionFailed, "failed to decrypt refresh_token", err)
			}
			s := plaintext.String()
			plaintext.Close()
			a.RefreshToken = &s
		} else {
			s := encRefreshToken.String
			a.RefreshToken = &s
		}
	}

	if lastSyncedAt.Valid {
		t, err := util.ParseSQLiteTimestamp(lastSyncedAt.String)
		if err == nil {
			a.LastSyncedAt = &t
		}
	}
	if encryptionVersion.Valid {
		v := int(encryptionVersion.Int64)
		a.EncryptionVersion = &v
	}
	if encryptedAt.Valid {
		t, err := util.ParseSQLiteTimestamp(encryptedAt.String)
		if err == nil {
			a.EncryptedAt = &t
		}
	}
	if t, err := util.ParseSQLiteTimestamp(createdAt); err == nil {
		a.CreatedAt = t
	}
	if t, err := util.ParseSQLiteTimestamp(updatedAt); err == nil {
		a.UpdatedAt = t
	}

	return &a, nil
}
