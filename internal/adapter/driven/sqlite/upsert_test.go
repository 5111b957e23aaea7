package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMergePolicy_RejectsImmutableColumns(t *testing.T) {
	columns := []string{"id", "github_id", "name"}

	assert.Panics(t, func() { newMergePolicy("t", columns, updateColumn{name: "id"}) })
	assert.Panics(t, func() { newMergePolicy("t", columns, updateColumn{name: "github_id"}) })
	assert.Panics(t, func() { newMergePolicy("t", columns, updateColumn{name: "missing"}) })
	assert.NotPanics(t, func() { newMergePolicy("t", columns, updateColumn{name: "name"}) })
}

func TestNewMergePolicy_RendersStatement(t *testing.T) {
	p := newMergePolicy("things", []string{"id", "github_id", "name", "note"},
		updateColumn{name: "name"},
		updateColumn{name: "note", merge: keepKnown},
	)

	assert.Equal(t,
		"INSERT INTO things (id, github_id, name, note) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET "+
			"name = excluded.name, note = COALESCE(excluded.note, things.note)",
		p.query,
	)
	assert.Equal(t, []string{"name", "note"}, p.Updatable())
}

func TestPolicies_NeverUpdateIdentity(t *testing.T) {
	policies := []mergePolicy{
		accountPolicy, repositoryPolicy, pullRequestPolicy, issuePolicy,
		reviewPolicy, reviewCommentPolicy, issueCommentPolicy,
	}

	for _, p := range policies {
		t.Run(p.table, func(t *testing.T) {
			assert.NotContains(t, p.Updatable(), "id")
			assert.NotContains(t, p.Updatable(), "github_id")
			assert.NotContains(t, p.Updatable(), "created_at")
		})
	}
}

func TestUpsertRows_EmptyBatchIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewRepositoryRepo(db).Upsert(ctx))
	require.NoError(t, NewAccountRepo(db).Upsert(ctx))

	n, err := countRows(ctx, db, "repositories")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertRows_ArgumentCountMismatch(t *testing.T) {
	db := setupTestDB(t)

	err := upsertRows(context.Background(), db, accountPolicy, []string{"x"},
		func(s string) string { return s },
		func(s string) []any { return []any{s} },
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 values for 5 columns")
}

func TestMigrationVersion(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := MigrationVersion(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(db.Writer))
}
