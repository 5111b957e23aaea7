// Package normalize maps GitHub webhook and REST payloads onto the canonical
// rows stored by the mirror. Every function is pure: no I/O, no clock.
//
// Entity kinds that arrive through both channels (repositories and pull
// requests) have one entry point per shape. Both converge on the same row
// builder so equivalent data produces an identical row. Normalizers always
// emit their best-effort full row; deciding which columns may change after
// creation is the store's job.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
)

// ErrMalformedPayload indicates a payload is missing data required to build a row.
var ErrMalformedPayload = errors.New("malformed payload")

// ID renders a GitHub numeric identifier as a local identifier.
func ID(githubID int64) string {
	return strconv.FormatInt(githubID, 10)
}

// idPtr returns a pointer to the local identifier, or nil for a zero ID.
func idPtr(githubID int64) *string {
	if githubID == 0 {
		return nil
	}
	id := ID(githubID)
	return &id
}

// userID returns the local identifier of u, or nil when u is absent.
func userID(u *gh.User) *string {
	return idPtr(u.GetID())
}

// malformed builds an ErrMalformedPayload with context.
func malformed(kind, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", kind, ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Verbatim returns raw when it holds a JSON object and fallback otherwise.
// Callers that still have the upstream bytes use it to store them in place of
// the re-encoded snapshot, which drops fields go-github does not declare.
func Verbatim(raw, fallback json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fallback
	}
	return trimmed
}

// snapshot re-encodes the decoded upstream object for the content column.
func snapshot(kind string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal content: %w", kind, err)
	}
	return data, nil
}

// timestamp converts a go-github timestamp to UTC, or the zero time when absent.
func timestamp(ts *gh.Timestamp) time.Time {
	if ts == nil || ts.IsZero() {
		return time.Time{}
	}
	return ts.Time.UTC()
}

// optionalTimestamp converts a go-github timestamp to a UTC pointer, or nil when absent.
func optionalTimestamp(ts *gh.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

// lower lowercases and trims GitHub enum-like strings, which are upper case
// in some REST responses and lower case in webhooks.
func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
