package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is the layout for every timestamp column. The fixed-width
// fraction keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatOptionalTime returns nil for a nil time so the column stores NULL.
func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime tries the stored layout first, then other SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

func parseOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// optionalBool returns nil for a nil flag so keepKnown columns retain their value.
func optionalBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func scanOptionalBool(ni sql.NullInt64) *bool {
	if !ni.Valid {
		return nil
	}
	b := ni.Int64 != 0
	return &b
}

func optionalString[T ~string](s *T) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

// nullIfEmpty stores an empty string as NULL so keepKnown columns retain their value.
func nullIfEmpty[T ~string](s T) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func scanOptionalString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// contentText renders a content snapshot; an absent snapshot is stored as JSON null.
func contentText(content json.RawMessage) string {
	if len(content) == 0 {
		return "null"
	}
	return string(content)
}
