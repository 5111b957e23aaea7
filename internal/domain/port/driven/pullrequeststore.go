package driven

import (
	"context"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// PullRequestStore defines the driven port for pull request persistence.
type PullRequestStore interface {
	Upsert(ctx context.Context, prs ...model.PullRequest) error
	GetByID(ctx context.Context, id string) (*model.PullRequest, error)
	GetByNumber(ctx context.Context, repoID string, number int) (*model.PullRequest, error)
	ListByRepo(ctx context.Context, repoID string) ([]model.PullRequest, error)
}
