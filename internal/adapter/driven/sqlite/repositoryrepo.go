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
var _ driven.RepositoryStore = (*RepositoryRepo)(nil)

// Visibility and description are absent from some webhook repository shapes,
// so a NULL there keeps the last known value.
var repositoryPolicy = newMergePolicy("repositories",
	[]string{
		"id", "github_id", "owner_id", "name", "full_name", "visibility", "fork",
		"stars", "description", "content", "created_at", "modified_at",
	},
	updateColumn{name: "name"},
	updateColumn{name: "full_name"},
	updateColumn{name: "owner_id"},
	updateColumn{name: "visibility", merge: keepKnown},
	updateColumn{name: "fork"},
	updateColumn{name: "stars"},
	updateColumn{name: "description", merge: keepKnown},
	updateColumn{name: "content"},
	updateColumn{name: "modified_at"},
)

const repositoryColumns = `id, github_id, owner_id, name, full_name, visibility, fork,
	stars, description, content, created_at, modified_at`

// RepositoryRepo is the SQLite implementation of the RepositoryStore port interface.
type RepositoryRepo struct {
	db *DB
}

// NewRepositoryRepo creates a new RepositoryRepo backed by the given DB.
func NewRepositoryRepo(db *DB) *RepositoryRepo {
	return &RepositoryRepo{db: db}
}

// Upsert inserts repositories or applies the repository merge policy to existing rows.
func (r *RepositoryRepo) Upsert(ctx context.Context, repos ...model.Repository) error {
	return upsertRows(ctx, r.db, repositoryPolicy, repos,
		func(repo model.Repository) string { return repo.ID },
		func(repo model.Repository) []any {
			return []any{
				repo.ID, repo.GitHubID, repo.OwnerID, repo.Name, repo.FullName,
				optionalString(repo.Visibility), boolToInt(repo.Fork), repo.Stars,
				optionalString(repo.Description), contentText(repo.Content),
				formatTime(repo.CreatedAt), formatTime(repo.ModifiedAt),
			}
		},
	)
}

// GetByID returns the repository with the given local ID, or nil, nil if absent.
func (r *RepositoryRepo) GetByID(ctx context.Context, id string) (*model.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}

	return repo, nil
}

// ListByOwner returns all repositories owned by the given account, ordered by name.
func (r *RepositoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE owner_id = ? ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// Count returns the number of stored repositories.
func (r *RepositoryRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "repositories")
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var visibility, description sql.NullString
	var fork int
	var content, createdAt, modifiedAt string

	err := s.Scan(
		&repo.ID, &repo.GitHubID, &repo.OwnerID, &repo.Name, &repo.FullName,
		&visibility, &fork, &repo.Stars, &description, &content, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	if visibility.Valid {
		v := model.Visibility(visibility.String)
		repo.Visibility = &v
	}
	repo.Fork = fork != 0
	repo.Description = scanOptionalString(description)
	repo.Content = []byte(content)

	repo.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	repo.ModifiedAt, err = parseTime(modifiedAt)
	if err != nil {
		return nil, fmt.Errorf("parse modified_at: %w", err)
	}

	return &repo, nil
}
