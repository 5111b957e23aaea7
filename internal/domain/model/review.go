package model

import (
	"encoding/json"
	"time"
)

// Review is a review submitted on a pull request.
type Review struct {
	ID            string
	GitHubID      int64
	RepoID        string
	PullRequestID string
	AuthorID      *string
	State         string // approved, changes_requested, commented, dismissed, pending.
	Body          *string
	CommitID      string
	Content       json.RawMessage
	SubmittedAt   *time.Time
}
