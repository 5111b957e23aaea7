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
var _ driven.PullRequestStore = (*PullRequestRepo)(nil)

// Repository, owner, and number are fixed at creation. Draft is missing from
// older payload shapes and creator may be absent for deleted users, so both
// keep the last known value.
var pullRequestPolicy = newMergePolicy("pull_requests",
	[]string{
		"id", "github_id", "repo_id", "owner_id", "creator_id", "number", "title", "state",
		"locked", "draft", "body", "merged_at", "closed_at", "content", "created_at", "modified_at",
	},
	updateColumn{name: "creator_id", merge: keepKnown},
	updateColumn{name: "title"},
	updateColumn{name: "state"},
	updateColumn{name: "locked"},
	updateColumn{name: "draft", merge: keepKnown},
	updateColumn{name: "body"},
	updateColumn{name: "merged_at"},
	updateColumn{name: "closed_at"},
	updateColumn{name: "content"},
	updateColumn{name: "modified_at"},
)

const pullRequestColumns = `id, github_id, repo_id, owner_id, creator_id, number, title, state,
	locked, draft, body, merged_at, closed_at, content, created_at, modified_at`

// PullRequestRepo is the SQLite implementation of the PullRequestStore port interface.
type PullRequestRepo struct {
	db *DB
}

// NewPullRequestRepo creates a new PullRequestRepo backed by the given DB.
func NewPullRequestRepo(db *DB) *PullRequestRepo {
	return &PullRequestRepo{db: db}
}

// Upsert inserts pull requests or applies the pull request merge policy to existing rows.
func (r *PullRequestRepo) Upsert(ctx context.Context, prs ...model.PullRequest) error {
	return upsertRows(ctx, r.db, pullRequestPolicy, prs,
		func(pr model.PullRequest) string { return pr.ID },
		func(pr model.PullRequest) []any {
			return []any{
				pr.ID, pr.GitHubID, pr.RepoID, pr.OwnerID, optionalString(pr.CreatorID),
				pr.Number, pr.Title, string(pr.State), boolToInt(pr.Locked), optionalBool(pr.Draft),
				optionalString(pr.Body), formatOptionalTime(pr.MergedAt), formatOptionalTime(pr.ClosedAt),
				contentText(pr.Content), formatTime(pr.CreatedAt), formatTime(pr.ModifiedAt),
			}
		},
	)
}

// GetByID returns the pull request with the given local ID, or nil, nil if absent.
func (r *PullRequestRepo) GetByID(ctx context.Context, id string) (*model.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE id = ?`

	pr, err := scanPullRequest(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %s: %w", id, err)
	}

	return pr, nil
}

// GetByNumber returns the pull request with the given number in a repository,
// or nil, nil if absent.
func (r *PullRequestRepo) GetByNumber(ctx context.Context, repoID string, number int) (*model.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE repo_id = ? AND number = ?`

	pr, err := scanPullRequest(r.db.Reader.QueryRowContext(ctx, query, repoID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %s#%d: %w", repoID, number, err)
	}

	return pr, nil
}

// ListByRepo returns all pull requests of a repository ordered by number.
func (r *PullRequestRepo) ListByRepo(ctx context.Context, repoID string) ([]model.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE repo_id = ? ORDER BY number`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPullRequest(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var creatorID, body, mergedAt, closedAt sql.NullString
	var draft sql.NullInt64
	var state, content, createdAt, modifiedAt string
	var locked int

	err := s.Scan(
		&pr.ID, &pr.GitHubID, &pr.RepoID, &pr.OwnerID, &creatorID, &pr.Number, &pr.Title, &state,
		&locked, &draft, &body, &mergedAt, &closedAt, &content, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.CreatorID = scanOptionalString(creatorID)
	pr.State = model.State(state)
	pr.Locked = locked != 0
	pr.Draft = scanOptionalBool(draft)
	pr.Body = scanOptionalString(body)
	pr.Content = []byte(content)

	if pr.MergedAt, err = parseOptionalTime(mergedAt); err != nil {
		return nil, fmt.Errorf("parse merged_at: %w", err)
	}
	if pr.ClosedAt, err = parseOptionalTime(closedAt); err != nil {
		return nil, fmt.Errorf("parse closed_at: %w", err)
	}
	if pr.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if pr.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, fmt.Errorf("parse modified_at: %w", err)
	}

	return &pr, nil
}
