package model

import (
	"encoding/json"
	"time"
)

// PullRequest is a mirrored GitHub pull request.
type PullRequest struct {
	ID         string
	GitHubID   int64
	RepoID     string
	OwnerID    string
	CreatorID  *string
	Number     int
	Title      string
	State      State
	Locked     bool
	Draft      *bool // nil when the payload shape does not carry it.
	Body       *string
	MergedAt   *time.Time
	ClosedAt   *time.Time
	Content    json.RawMessage
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// IsMerged reports whether the pull request has been merged.
func (pr PullRequest) IsMerged() bool {
	return pr.MergedAt != nil
}

// IsDraft reports whether the pull request is known to be a draft.
func (pr PullRequest) IsDraft() bool {
	return pr.Draft != nil && *pr.Draft
}
