package utils

import (
	"database/sql"
	"strings"
	"time"
)

// layoutStamp is fixed width so stored timestamps sort lexically.
const layoutStamp = "2006-01-02T15:04:05.000000Z"

const layoutTripID = "20060102T150405"

// NowUTC returns current time in UTC at the stored precision.
func NowUTC() time.Time {
	return StampPrecision(time.Now())
}

// StampPrecision drops what FormatStamp cannot keep, so a time survives a
// store and reload unchanged.
func StampPrecision(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatStamp renders t for storage.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(layoutStamp)
}

// ParseStamp parses a stored timestamp; RFC3339 is accepted for hand-edited rows.
func ParseStamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(layoutStamp, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ParseNullStamp converts a nullable column into an optional time.
func ParseNullStamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	t, err := ParseStamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatTripStamp renders the compact timestamp used inside trip ids.
func FormatTripStamp(t time.Time) string {
	return t.UTC().Format(layoutTripID)
}
