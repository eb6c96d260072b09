package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/ocerr"
	"github.com/socrates8300/openchime/internal/util"
)

// ErrMaxSnoozesReached is returned by RecordSnooze when the event has
// already been snoozed max_snoozes times.
var ErrMaxSnoozesReached = fmt.Errorf("event has reached the maximum number of snoozes")

// EventRepository is the narrow set of named mutation methods the
// scheduler and sync coordinator use to touch the events table.
type EventRepository struct {
	db *database.DB
}

// NewEventRepository returns an EventRepository.
func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

// UpsertByExternalID inserts or updates the remote-sourced fields of an
// event keyed by (account_id, external_id). User-mutated fields
// (snooze_count, has_alerted, last_alert_threshold, is_dismissed,
// last_snoozed_at) are preserved across the upsert.
func (r *EventRepository) UpsertByExternalID(ctx context.Context, accountID int64, externalID string, f EventFields) (*Event, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (external_id, account_id, title, description, start_time, end_time, video_link, video_platform)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			video_link = excluded.video_link,
			video_platform = excluded.video_platform,
			updated_at = datetime('now')
	`, externalID, accountID, f.Title, f.Description,
		util.SQLiteTimestamp(f.StartTime), util.SQLiteTimestamp(f.EndTime),
		f.VideoLink, f.VideoPlatform,
	)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to upsert event", err)
	}

	row := r.db.QueryRowContext(ctx, r.selectColumns()+" WHERE account_id = ? AND external_id = ?", accountID, externalID)
	return r.scanEvent(row)
}

// ListWindow returns events whose start_time lies in [from, to], optionally
// restricted to undismissed events, ordered (start_time asc, id asc) per
// the tie-breaking rule.
func (r *EventRepository) ListWindow(ctx context.Context, from, to time.Time, undismissedOnly bool) ([]Event, error) {
	query := r.selectColumns() + " WHERE start_time >= ? AND start_time <= ?"
	args := []interface{}{util.SQLiteTimestamp(from), util.SQLiteTimestamp(to)}
	if undismissedOnly {
		query += " AND is_dismissed = 0"
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to list event window", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := r.scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// MarkAlerted records that an event fired at the given threshold band.
// last_alert_threshold only ever decreases, so the caller is expected
// to have already verified threshold < the event's
// current stored value (or it was null).
func (r *EventRepository) MarkAlerted(ctx context.Context, id int64, threshold int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE events SET has_alerted = 1, last_alert_threshold = ?, updated_at = datetime('now')
		WHERE id = ?
	`, threshold, id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to mark event alerted", err)
	}
	return nil
}

// RecordSnooze implements the bounded snooze state machine: if
// snooze_count < maxSnoozes, increment it, set last_snoozed_at = now, and
// clear has_alerted so the event can fire again after snooze_interval.
// Otherwise the command is rejected with ErrMaxSnoozesReached, and if the
// event's start_time has already passed it is auto-dismissed.
func (r *EventRepository) RecordSnooze(ctx context.Context, id int64, maxSnoozes int) error {
	row := r.db.QueryRowContext(ctx, "SELECT snooze_count, start_time FROM events WHERE id = ?", id)
	var snoozeCount int
	var startTimeStr string
	if err := row.Scan(&snoozeCount, &startTimeStr); err != nil {
		if err == sql.ErrNoRows {
			return ocerr.New(ocerr.DatabaseError, "event not found")
		}
		return ocerr.Wrap(ocerr.DatabaseError, "failed to read event for snooze", err)
	}

	if snoozeCount >= maxSnoozes {
		startTime, parseErr := util.ParseSQLiteTimestamp(startTimeStr)
		if parseErr == nil && !startTime.After(util.NowUTC()) {
			if err := r.Dismiss(ctx, id); err != nil {
				return err
			}
		}
		return ErrMaxSnoozesReached
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE events SET snooze_count = snooze_count + 1, last_snoozed_at = datetime('now'),
		       has_alerted = 0, updated_at = datetime('now')
		WHERE id = ?
	`, id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to record snooze", err)
	}
	return nil
}

// Dismiss marks an event as permanently dismissed; per the data model
// invariant, a dismissed event is never re-alerted.
func (r *EventRepository) Dismiss(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE events SET is_dismissed = 1, updated_at = datetime('now') WHERE id = ?
	`, id)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to dismiss event", err)
	}
	return nil
}

// DeleteOrphans removes events belonging to accountID whose external_id
// is not present in keptExternalIDs, per a sync pass reporting them gone
// upstream.
func (r *EventRepository) DeleteOrphans(ctx context.Context, accountID int64, keptExternalIDs []string) error {
	if len(keptExternalIDs) == 0 {
		_, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE account_id = ?", accountID)
		if err != nil {
			return ocerr.Wrap(ocerr.DatabaseError, "failed to delete orphaned events", err)
		}
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keptExternalIDs)), ",")
	args := make([]interface{}, 0, len(keptExternalIDs)+1)
	args = append(args, accountID)
	for _, id := range keptExternalIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"DELETE FROM events WHERE account_id = ? AND external_id NOT IN (%s)",
		placeholders,
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to delete orphaned events", err)
	}
	return nil
}

func (r *EventRepository) selectColumns() string {
	return `
		SELECT id, external_id, account_id, title, description, start_time, end_time,
		       video_link, video_platform, snooze_count, has_alerted, last_alert_threshold,
		       is_dismissed, last_snoozed_at, created_at, updated_at
		FROM events`
}

func (r *EventRepository) scanEvent(row *sql.Row) (*Event, error) {
	return r.scanEventRow(row)
}

func (r *EventRepository) scanEventRow(scanner rowScanner) (*Event, error) {
	var (
		e                  Event
		startTime          string
		endTime            string
		hasAlerted         int
		isDismissed        int
		lastAlertThreshold sql.NullInt64
		lastSnoozedAt      sql.NullString
		createdAt          string
		updatedAt          string
	)

	if err := scanner.Scan(
		&e.ID, &e.ExternalID, &e.AccountID, &e.Title, &e.Description, &startTime, &endTime,
		&e.VideoLink, &e.VideoPlatform, &e.SnoozeCount, &hasAlerted, &lastAlertThreshold,
		&isDismissed, &lastSnoozedAt, &createdAt, &updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ocerr.New(ocerr.DatabaseError, "event not found")
		}
		return nil, ocerr.Wrap(ocerr.DatabaseError, "failed to scan event row", err)
	}

	e.HasAlerted = hasAlerted != 0
	e.IsDismissed = isDismissed != 0
	if lastAlertThreshold.Valid {
		v := int(lastAlertThreshold.Int64)
		e.LastAlertThreshold = &v
	}
	if lastSnoozedAt.Valid {
		if t, err := util.ParseSQLiteTimestamp(lastSnoozedAt.String); err == nil {
			e.LastSnoozedAt = &t
		}
	}
	if t, err := util.ParseSQLiteTimestamp(startTime); err == nil {
		e.StartTime = t
	}
	if t, err := util.ParseSQLiteTimestamp(endTime); err == nil {
		e.EndTime = t
	}
	if t, err := util.ParseSQLiteTimestamp(createdAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := util.ParseSQLiteTimestamp(updatedAt); err == nil {
		e.UpdatedAt = t
	}

	return &e, nil
}
