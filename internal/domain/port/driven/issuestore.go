package driven

import (
	"context"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// IssueStore defines the driven port for issue persistence.
type IssueStore interface {
	Upsert(ctx context.Context, issues ...model.Issue) error
	GetByID(ctx context.Context, id string) (*model.Issue, error)
	ListByRepo(ctx context.Context, repoID string) ([]model.Issue, error)
}
