package driven

import (
	"context"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// ReviewStore defines the driven port for persisting reviews, review comments,
// and issue comments.
type ReviewStore interface {
	UpsertReviews(ctx context.Context, reviews ...model.Review) error
	UpsertReviewComments(ctx context.Context, comments ...model.ReviewComment) error
	UpsertIssueComments(ctx context.Context, comments ...model.IssueComment) error
	GetReviewsByPR(ctx context.Context, prID string) ([]model.Review, error)
	GetReviewCommentsByPR(ctx context.Context, prID string) ([]model.ReviewComment, error)
	GetIssueComments(ctx context.Context, repoID string, number int) ([]model.IssueComment, error)
}
