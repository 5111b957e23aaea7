package model

import (
	"encoding/json"
	"time"
)

// Issue is a mirrored GitHub issue. Issues share their numbering space with
// pull requests but live in their own table.
type Issue struct {
	ID         string
	GitHubID   int64
	RepoID     string
	OwnerID    string
	AuthorID   *string
	Number     int
	Title      string
	State      State
	Locked     bool
	Body       *string
	Content    json.RawMessage
	CreatedAt  time.Time
	ModifiedAt time.Time
}
