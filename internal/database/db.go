// Package database opens and configures the single SQLite file backing
// OpenChime's store: WAL journaling, bounded connection pool, and a
// periodic pre-acquire health check. Schema and data migrations live in
// internal/migrate and run against the *DB returned here before the
// scheduler starts.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/socrates8300/openchime/internal/logging"
	"github.com/socrates8300/openchime/internal/ocerr"
)

// Pool bounds for a single-writer SQLite file in WAL mode.
const (
	MaxOpenConns    = 5
	MaxIdleConns    = 1
	ConnMaxIdleTime = 5 * time.Minute
	ConnMaxLifetime = 30 * time.Minute
	AcquireTimeout  = 30 * time.Second
	HealthInterval  = time.Minute
)

// DB wraps *sql.DB with OpenChime's pragma configuration and a background
// health-check loop.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens the SQLite file at path with WAL mode, a bounded
// pool, and busy_timeout ≥ 10s.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to create database directory", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=10000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to open database", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(ConnMaxLifetime)

	db := &DB{DB: sqlDB, path: path}

	if err := db.configure(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return ocerr.Wrap(ocerr.DatabaseError, fmt.Sprintf("failed to execute %s", pragma), err)
		}
	}
	return nil
}

// Path returns the database file path (":memory:" for in-memory databases).
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn("WAL checkpoint failed on close", "error", err)
	}
	return db.DB.Close()
}

// RunHealthCheck starts a background loop that pings the pool every
// HealthInterval until ctx is cancelled, surfacing connectivity loss early
// rather than on the next query in the monitor's critical path.
func (db *DB) RunHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, AcquireTimeout)
			if err := db.PingContext(pingCtx); err != nil {
				logging.Error("database health check failed", "error", err)
			}
			cancel()
		}
	}
}
