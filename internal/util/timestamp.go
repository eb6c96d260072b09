// Package util holds small timestamp helpers shared by the store and
// migration packages (UTC, "2006-01-02 15:04:05").
package util

import "time"

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// SQLiteTimestamp formats a time for storage in a TEXT column.
func SQLiteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// ParseSQLiteTimestamp parses a timestamp previously written by
// SQLiteTimestamp.
func ParseSQLiteTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s)
}
