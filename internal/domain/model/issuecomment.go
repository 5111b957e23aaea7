package model

import (
	"encoding/json"
	"time"
)

// IssueComment is a conversation comment on an issue or pull request. The
// parent is addressed by repository and number so that comments on pull
// requests resolve to the pull_requests table.
type IssueComment struct {
	ID            string
	GitHubID      int64
	RepoID        string
	IssueID       string // Upstream issue id; for pull requests this is the issue-side id.
	IssueNumber   int
	OnPullRequest bool
	AuthorID      *string
	Body          string
	Content       json.RawMessage
	SubmittedAt   time.Time
	ModifiedAt    time.Time
}
