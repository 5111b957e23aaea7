package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

var accountPolicy = newMergePolicy("accounts",
	[]string{"id", "github_id", "login", "avatar_url", "kind"},
	updateColumn{name: "login", merge: keepKnown},
	updateColumn{name: "avatar_url", merge: keepKnown},
	updateColumn{name: "kind", merge: keepKnown},
)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Upsert inserts accounts or updates login, avatar, and kind of existing ones.
// Empty fields are unknown: they are stored as NULL and never clear a value
// recorded by an earlier, fuller sighting.
func (r *AccountRepo) Upsert(ctx context.Context, accounts ...model.Account) error {
	return upsertRows(ctx, r.db, accountPolicy, accounts,
		func(a model.Account) string { return a.ID },
		func(a model.Account) []any {
			return []any{a.ID, a.GitHubID, nullIfEmpty(a.Login), nullIfEmpty(a.AvatarURL), nullIfEmpty(a.Kind)}
		},
	)
}

// GetByID returns the account with the given local ID, or nil, nil if absent.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	const query = `SELECT id, github_id, login, avatar_url, kind FROM accounts WHERE id = ?`

	var a model.Account
	var login, avatarURL, kind sql.NullString
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.GitHubID, &login, &avatarURL, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	a.Login = login.String
	a.AvatarURL = avatarURL.String
	a.Kind = model.AccountKind(kind.String)
	return &a, nil
}

// Count returns the number of stored accounts.
func (r *AccountRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "accounts")
}
