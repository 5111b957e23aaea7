package model

import (
	"encoding/json"
	"time"
)

// Repository is a mirrored GitHub repository.
type Repository struct {
	ID          string
	GitHubID    int64
	OwnerID     string
	Name        string
	FullName    string
	Visibility  *Visibility // nil when the payload shape does not carry it.
	Fork        bool
	Stars       int
	Description *string
	Content     json.RawMessage // Last seen upstream representation.
	CreatedAt   time.Time
	ModifiedAt  time.Time
}
