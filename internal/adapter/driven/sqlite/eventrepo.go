package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

const eventColumns = `delivery_id, event_type, action, installation_id, org_login,
	repo_full_name, content, received_at`

// EventRepo is the SQLite implementation of the EventStore port interface.
// Rows are append-only; a redelivery with a known delivery ID is ignored.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Record inserts the audit row and reports whether it was new.
func (r *EventRepo) Record(ctx context.Context, ev model.IngestedEvent) (bool, error) {
	res, err := r.db.Writer.ExecContext(ctx,
		`INSERT INTO github_events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(delivery_id) DO NOTHING`,
		ev.DeliveryID, ev.EventType, ev.Action, ev.InstallationID, ev.OrgLogin,
		ev.RepoFullName, contentText(ev.Content), formatTime(ev.ReceivedAt),
	)
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", ev.DeliveryID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event %s: rows affected: %w", ev.DeliveryID, err)
	}

	return n == 1, nil
}

// Get returns the audit row for a delivery, or nil, nil if absent.
func (r *EventRepo) Get(ctx context.Context, deliveryID string) (*model.IngestedEvent, error) {
	ev, err := scanEvent(r.db.Reader.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM github_events WHERE delivery_id = ?`, deliveryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", deliveryID, err)
	}

	return ev, nil
}

// List returns audit rows matching the filter in the order they were received.
func (r *EventRepo) List(ctx context.Context, filter driven.EventFilter) ([]model.IngestedEvent, error) {
	var where []string
	var args []any

	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if !filter.Since.IsZero() {
		where = append(where, "received_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := `SELECT ` + eventColumns + ` FROM github_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at, delivery_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.IngestedEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func scanEvent(s scanner) (*model.IngestedEvent, error) {
	var ev model.IngestedEvent
	var content, receivedAt string

	if err := s.Scan(&ev.DeliveryID, &ev.EventType, &ev.Action, &ev.InstallationID,
		&ev.OrgLogin, &ev.RepoFullName, &content, &receivedAt); err != nil {
		return nil, err
	}

	ev.Content = []byte(content)

	var err error
	if ev.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}

	return &ev, nil
}
