package driven

import (
	"context"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// RepositoryStore defines the driven port for repository persistence.
type RepositoryStore interface {
	Upsert(ctx context.Context, repos ...model.Repository) error
	GetByID(ctx context.Context, id string) (*model.Repository, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Repository, error)
	Count(ctx context.Context) (int, error)
}
