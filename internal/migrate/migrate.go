// Package migrate implements the versioned schema and data migration
// driver: an append-only ledger, pre-migration file-copy backups,
// transactional apply, and automatic restore-on-failure.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/logging"
	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/vault"
)

const ledgerTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	applied_at  TEXT NOT NULL DEFAULT (datetime('now')),
	checksum    TEXT
)
`

// MaxBackups is the number of most-recent pre-migration backups retained.
const MaxBackups = 3

// migrationQuerier is the subset of *database.DB a Guard needs to decide
// whether a migration has anything to do.
type migrationQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Migration is one ordered, named, idempotent schema or data step.
type Migration struct {
	Version int
	Name    string
	// Guard, if set, is checked before Apply runs. A false result skips
	// the migration entirely for this run, including the backup and the
	// ledger insert — it will be reconsidered on every future run until
	// it reports true.
	Guard func(ctx context.Context, db migrationQuerier) (bool, error)
	// Apply runs inside a transaction already opened by the driver.
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// Driver runs the ordered migration list against a *database.DB.
type Driver struct {
	db    *database.DB
	vault *vault.Vault
}

// New returns a Driver. v may be nil if no data migration in the list
// needs the vault; passing nil when migration 3 runs will panic, so
// callers should always construct the vault before running migrations.
func New(db *database.DB, v *vault.Vault) *Driver {
	return &Driver{db: db, vault: v}
}

// Run applies every migration in Defined() not yet present in the
// ledger, in ascending version order. Any failure rolls back the
// transaction, restores the pre-migration backup, and returns a fatal
// ocerr.MigrationFailed — the caller must not start the scheduler.
func (d *Driver) Run(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, ledgerTable); err != nil {
		return ocerr.Wrap(ocerr.MigrationFailed, "failed to create migration ledger", err)
	}

	applied, err := d.appliedVersions(ctx)
	if err != nil {
		return ocerr.Wrap(ocerr.MigrationFailed, "failed to read migration ledger", err)
	}

	for _, m := range Defined(d.vault) {
		if applied[m.Version] {
			continue
		}
		if m.Guard != nil {
			ok, err := m.Guard(ctx, d.db)
			if err != nil {
				return ocerr.Wrap(ocerr.MigrationFailed, fmt.Sprintf("guard for migration %d failed", m.Version), err)
			}
			if !ok {
				logging.Debug("skipping migration, nothing to do", "version", m.Version, "name", m.Name)
				continue
			}
		}
		if err := d.applyOne(ctx, m); err != nil {
			return err
		}
	}

	return d.pruneBackups()
}

func (d *Driver) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (d *Driver) applyOne(ctx context.Context, m Migration) error {
	backupPath, err := d.backup()
	if err != nil {
		return ocerr.Wrap(ocerr.MigrationFailed, fmt.Sprintf("failed to back up before migration %d", m.Version), err)
	}

	if err := d.runInTx(ctx, m); err != nil {
		if backupPath != "" {
			if restoreErr := d.restore(backupPath); restoreErr != nil {
				logging.Error("failed to restore backup after migration failure",
					"version", m.Version, "backup", backupPath, "error", restoreErr)
			} else {
				logging.Error("restored pre-migration backup after failure",
					"version", m.Version, "backup", backupPath)
			}
		}
		return ocerr.Wrap(ocerr.MigrationFailed, fmt.Sprintf("migration %d (%s) failed", m.Version, m.Name), err)
	}

	logging.Info("applied migration", "version", m.Version, "name", m.Name)
	return nil
}

func (d *Driver) runInTx(ctx context.Context, m Migration) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}

	checksum := checksumOf(m)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at, checksum) VALUES (?, ?, datetime('now'), ?)",
		m.Version, m.Name, checksum,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func checksumOf(m Migration) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", m.Version, m.Name)))
	return hex.EncodeToString(sum[:])
}

// backup copies the database file to <path>.backup_YYYYMMDD_HHMMSS and
// returns the backup path. In-memory databases are not backed up; backup
// returns "" with a nil error.
func (d *Driver) backup() (string, error) {
	path := d.db.Path()
	if path == "" || path == ":memory:" {
		return "", nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	backupPath := fmt.Sprintf("%s.backup_%s", path, time.Now().UTC().Format("20060102_150405"))
	if err := copyFile(path, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

func (d *Driver) restore(backupPath string) error {
	path := d.db.Path()
	return copyFile(backupPath, path)
}

// pruneBackups keeps the MaxBackups most recent backup files adjacent to
// the database, deleting older ones.
func (d *Driver) pruneBackups() error {
	path := d.db.Path()
	if path == "" || path == ":memory:" {
		return nil
	}

	matches, err := filepath.Glob(path + ".backup_*")
	if err != nil {
		return nil
	}
	if len(matches) <= MaxBackups {
		return nil
	}

	sort.Strings(matches) // timestamp suffix sorts lexically == chronologically
	for _, stale := range matches[:len(matches)-MaxBackups] {
		if err := os.Remove(stale); err != nil {
			logging.Warn("failed to remove stale migration backup", "path", stale, "error", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
