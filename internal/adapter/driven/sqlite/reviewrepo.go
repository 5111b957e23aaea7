package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewStore = (*ReviewRepo)(nil)

// A review's parent and commit never change once submitted.
var reviewPolicy = newMergePolicy("reviews",
	[]string{
		"id", "github_id", "repo_id", "pull_request_id", "author_id", "state", "body",
		"commit_id", "content", "submitted_at",
	},
	updateColumn{name: "author_id", merge: keepKnown},
	updateColumn{name: "state"},
	updateColumn{name: "body"},
	updateColumn{name: "content"},
	updateColumn{name: "submitted_at", merge: keepKnown},
)

// A review comment follows its file when the pull request renames it.
var reviewCommentPolicy = newMergePolicy("review_comments",
	[]string{
		"id", "github_id", "repo_id", "pull_request_id", "review_id", "author_id", "path",
		"diff_hunk", "body", "in_reply_to_id", "content", "submitted_at", "modified_at",
	},
	updateColumn{name: "review_id", merge: keepKnown},
	updateColumn{name: "author_id", merge: keepKnown},
	updateColumn{name: "path"},
	updateColumn{name: "body"},
	updateColumn{name: "diff_hunk"},
	updateColumn{name: "content"},
	updateColumn{name: "modified_at"},
)

var issueCommentPolicy = newMergePolicy("issue_comments",
	[]string{
		"id", "github_id", "repo_id", "issue_id", "issue_number", "on_pull_request",
		"author_id", "body", "content", "submitted_at", "modified_at",
	},
	updateColumn{name: "author_id", merge: keepKnown},
	updateColumn{name: "body"},
	updateColumn{name: "content"},
	updateColumn{name: "modified_at"},
)

// ReviewRepo is the SQLite implementation of the ReviewStore port interface.
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo creates a new ReviewRepo backed by the given DB.
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// UpsertReviews inserts reviews or applies the review merge policy to existing rows.
func (r *ReviewRepo) UpsertReviews(ctx context.Context, reviews ...model.Review) error {
	return upsertRows(ctx, r.db, reviewPolicy, reviews,
		func(rv model.Review) string { return rv.ID },
		func(rv model.Review) []any {
			return []any{
				rv.ID, rv.GitHubID, rv.RepoID, rv.PullRequestID, optionalString(rv.AuthorID),
				rv.State, optionalString(rv.Body), rv.CommitID, contentText(rv.Content),
				formatOptionalTime(rv.SubmittedAt),
			}
		},
	)
}

// UpsertReviewComments inserts inline review comments or applies their merge policy.
func (r *ReviewRepo) UpsertReviewComments(ctx context.Context, comments ...model.ReviewComment) error {
	return upsertRows(ctx, r.db, reviewCommentPolicy, comments,
		func(c model.ReviewComment) string { return c.ID },
		func(c model.ReviewComment) []any {
			return []any{
				c.ID, c.GitHubID, c.RepoID, c.PullRequestID, optionalString(c.ReviewID),
				optionalString(c.AuthorID), c.Path, c.DiffHunk, c.Body, optionalString(c.InReplyToID),
				contentText(c.Content), formatTime(c.SubmittedAt), formatTime(c.ModifiedAt),
			}
		},
	)
}

// UpsertIssueComments inserts conversation comments or applies their merge policy.
func (r *ReviewRepo) UpsertIssueComments(ctx context.Context, comments ...model.IssueComment) error {
	return upsertRows(ctx, r.db, issueCommentPolicy, comments,
		func(c model.IssueComment) string { return c.ID },
		func(c model.IssueComment) []any {
			return []any{
				c.ID, c.GitHubID, c.RepoID, c.IssueID, c.IssueNumber, boolToInt(c.OnPullRequest),
				optionalString(c.AuthorID), c.Body, contentText(c.Content),
				formatTime(c.SubmittedAt), formatTime(c.ModifiedAt),
			}
		},
	)
}

// GetReviewsByPR returns the reviews of a pull request, oldest submission first.
// Pending reviews have no submission time and sort last.
func (r *ReviewRepo) GetReviewsByPR(ctx context.Context, prID string) ([]model.Review, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT id, github_id, repo_id, pull_request_id, author_id, state, body, commit_id, content, submitted_at
		 FROM reviews WHERE pull_request_id = ?
		 ORDER BY submitted_at IS NULL, submitted_at, github_id`,
		prID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rv model.Review
		var authorID, body, submittedAt sql.NullString
		var content string

		if err := rows.Scan(&rv.ID, &rv.GitHubID, &rv.RepoID, &rv.PullRequestID, &authorID,
			&rv.State, &body, &rv.CommitID, &content, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}

		rv.AuthorID = scanOptionalString(authorID)
		rv.Body = scanOptionalString(body)
		rv.Content = []byte(content)
		if rv.SubmittedAt, err = parseOptionalTime(submittedAt); err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}

		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}

// GetReviewCommentsByPR returns the inline comments of a pull request in
// submission order.
func (r *ReviewRepo) GetReviewCommentsByPR(ctx context.Context, prID string) ([]model.ReviewComment, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT id, github_id, repo_id, pull_request_id, review_id, author_id, path, diff_hunk,
		        body, in_reply_to_id, content, submitted_at, modified_at
		 FROM review_comments WHERE pull_request_id = ?
		 ORDER BY submitted_at, github_id`,
		prID,
	)
	if err != nil {
		return nil, fmt.Errorf("query review comments: %w", err)
	}
	defer rows.Close()

	var comments []model.ReviewComment
	for rows.Next() {
		var c model.ReviewComment
		var reviewID, authorID, inReplyTo sql.NullString
		var content, submittedAt, modifiedAt string

		if err := rows.Scan(&c.ID, &c.GitHubID, &c.RepoID, &c.PullRequestID, &reviewID, &authorID,
			&c.Path, &c.DiffHunk, &c.Body, &inReplyTo, &content, &submittedAt, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scan review comment: %w", err)
		}

		c.ReviewID = scanOptionalString(reviewID)
		c.AuthorID = scanOptionalString(authorID)
		c.InReplyToID = scanOptionalString(inReplyTo)
		c.Content = []byte(content)
		if c.SubmittedAt, err = parseTime(submittedAt); err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}
		if c.ModifiedAt, err = parseTime(modifiedAt); err != nil {
			return nil, fmt.Errorf("parse modified_at: %w", err)
		}

		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review comments: %w", err)
	}

	return comments, nil
}

// GetIssueComments returns the conversation comments of the issue or pull
// request with the given number in a repository.
func (r *ReviewRepo) GetIssueComments(ctx context.Context, repoID string, number int) ([]model.IssueComment, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT id, github_id, repo_id, issue_id, issue_number, on_pull_request, author_id,
		        body, content, submitted_at, modified_at
		 FROM issue_comments WHERE repo_id = ? AND issue_number = ?
		 ORDER BY submitted_at, github_id`,
		repoID, number,
	)
	if err != nil {
		return nil, fmt.Errorf("query issue comments: %w", err)
	}
	defer rows.Close()

	var comments []model.IssueComment
	for rows.Next() {
		var c model.IssueComment
		var authorID sql.NullString
		var onPR int
		var content, submittedAt, modifiedAt string

		if err := rows.Scan(&c.ID, &c.GitHubID, &c.RepoID, &c.IssueID, &c.IssueNumber, &onPR,
			&authorID, &c.Body, &content, &submittedAt, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scan issue comment: %w", err)
		}

		c.OnPullRequest = onPR != 0
		c.AuthorID = scanOptionalString(authorID)
		c.Content = []byte(content)
		if c.SubmittedAt, err = parseTime(submittedAt); err != nil {
			return nil, fmt.Errorf("parse submitted_at: %w", err)
		}
		if c.ModifiedAt, err = parseTime(modifiedAt); err != nil {
			return nil, fmt.Errorf("parse modified_at: %w", err)
		}

		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue comments: %w", err)
	}

	return comments, nil
}
