package driven

import (
	"context"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// AccountStore defines the driven port for account persistence.
// Upsert with no rows is a no-op.
type AccountStore interface {
	Upsert(ctx context.Context, accounts ...model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	Count(ctx context.Context) (int, error)
}
