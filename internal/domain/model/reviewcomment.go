package model

import (
	"encoding/json"
	"time"
)

// ReviewComment is an inline comment attached to a pull request diff.
type ReviewComment struct {
	ID            string
	GitHubID      int64
	RepoID        string
	PullRequestID string
	ReviewID      *string
	AuthorID      *string
	Path          string
	DiffHunk      string
	Body          string
	InReplyToID   *string
	Content       json.RawMessage
	SubmittedAt   time.Time
	ModifiedAt    time.Time
}
