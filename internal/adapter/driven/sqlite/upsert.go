package sqlite

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// merge says how an allow-listed column is updated when a row already exists.
type merge int

const (
	// overwrite replaces the stored value, including with NULL.
	overwrite merge = iota
	// keepKnown replaces the stored value only when the incoming value is not
	// NULL. Used for columns that some payload shapes do not carry.
	keepKnown
)

// updateColumn is one entry of a per-kind update allow-list.
type updateColumn struct {
	name  string
	merge merge
}

// mergePolicy defines an idempotent insert-or-update for one table. Columns
// lists every inserted column in argument order. Update is the allow-list of
// columns a later sighting may change; anything else is fixed at creation.
type mergePolicy struct {
	table   string
	columns []string
	update  []updateColumn
	query   string
}

// immutableColumns may never appear in an update allow-list.
var immutableColumns = []string{"id", "github_id"}

// newMergePolicy validates the allow-list and renders the upsert statement.
// It panics on an invalid policy since policies are package-level constants.
func newMergePolicy(table string, columns []string, update ...updateColumn) mergePolicy {
	for _, col := range update {
		if slices.Contains(immutableColumns, col.name) {
			panic(fmt.Sprintf("sqlite: %s merge policy updates immutable column %q", table, col.name))
		}
		if !slices.Contains(columns, col.name) {
			panic(fmt.Sprintf("sqlite: %s merge policy updates unknown column %q", table, col.name))
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	sets := make([]string, 0, len(update))
	for _, col := range update {
		switch col.merge {
		case keepKnown:
			sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, %s.%s)", col.name, col.name, table, col.name))
		default:
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col.name, col.name))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), placeholders, strings.Join(sets, ", "),
	)

	return mergePolicy{
		table:   table,
		columns: columns,
		update:  update,
		query:   query,
	}
}

// Updatable returns the names of the allow-listed columns.
func (p mergePolicy) Updatable() []string {
	names := make([]string, 0, len(p.update))
	for _, col := range p.update {
		names = append(names, col.name)
	}
	return names
}

// upsertRows writes rows with the policy's statement inside one transaction.
// An empty batch is a no-op. args must return one value per policy column.
func upsertRows[T any](ctx context.Context, db *DB, policy mergePolicy, rows []T, key func(T) string, args func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s upsert: %w", policy.table, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, policy.query)
	if err != nil {
		return fmt.Errorf("prepare %s upsert: %w", policy.table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		values := args(row)
		if len(values) != len(policy.columns) {
			return fmt.Errorf("upsert %s %s: got %d values for %d columns", policy.table, key(row), len(values), len(policy.columns))
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("upsert %s %s: %w", policy.table, key(row), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s upsert: %w", policy.table, err)
	}

	return nil
}

// countRows returns the number of rows in table.
func countRows(ctx context.Context, db *DB, table string) (int, error) {
	var n int
	if err := db.Reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
