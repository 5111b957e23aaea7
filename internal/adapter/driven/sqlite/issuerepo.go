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
var _ driven.IssueStore = (*IssueRepo)(nil)

var issuePolicy = newMergePolicy("issues",
	[]string{
		"id", "github_id", "repo_id", "owner_id", "author_id", "number", "title", "state",
		"locked", "body", "content", "created_at", "modified_at",
	},
	updateColumn{name: "author_id", merge: keepKnown},
	updateColumn{name: "title"},
	updateColumn{name: "state"},
	updateColumn{name: "locked"},
	updateColumn{name: "body"},
	updateColumn{name: "content"},
	updateColumn{name: "modified_at"},
)

const issueColumns = `id, github_id, repo_id, owner_id, author_id, number, title, state,
	locked, body, content, created_at, modified_at`

// IssueRepo is the SQLite implementation of the IssueStore port interface.
type IssueRepo struct {
	db *DB
}

// NewIssueRepo creates a new IssueRepo backed by the given DB.
func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

// Upsert inserts issues or applies the issue merge policy to existing rows.
func (r *IssueRepo) Upsert(ctx context.Context, issues ...model.Issue) error {
	return upsertRows(ctx, r.db, issuePolicy, issues,
		func(i model.Issue) string { return i.ID },
		func(i model.Issue) []any {
			return []any{
				i.ID, i.GitHubID, i.RepoID, i.OwnerID, optionalString(i.AuthorID),
				i.Number, i.Title, string(i.State), boolToInt(i.Locked), optionalString(i.Body),
				contentText(i.Content), formatTime(i.CreatedAt), formatTime(i.ModifiedAt),
			}
		},
	)
}

// GetByID returns the issue with the given local ID, or nil, nil if absent.
func (r *IssueRepo) GetByID(ctx context.Context, id string) (*model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = ?`

	issue, err := scanIssue(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, err)
	}

	return issue, nil
}

// ListByRepo returns all issues of a repository ordered by number.
func (r *IssueRepo) ListByRepo(ctx context.Context, repoID string) ([]model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE repo_id = ? ORDER BY number`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	return issues, nil
}

func scanIssue(s scanner) (*model.Issue, error) {
	var issue model.Issue
	var authorID, body sql.NullString
	var state, content, createdAt, modifiedAt string
	var locked int

	err := s.Scan(
		&issue.ID, &issue.GitHubID, &issue.RepoID, &issue.OwnerID, &authorID, &issue.Number,
		&issue.Title, &state, &locked, &body, &content, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.AuthorID = scanOptionalString(authorID)
	issue.State = model.State(state)
	issue.Locked = locked != 0
	issue.Body = scanOptionalString(body)
	issue.Content = []byte(content)

	if issue.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if issue.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, fmt.Errorf("parse modified_at: %w", err)
	}

	return &issue, nil
}
