package model

// AccountKind distinguishes the three account types GitHub reports.
type AccountKind string

const (
	AccountKindUser         AccountKind = "user"
	AccountKindBot          AccountKind = "bot"
	AccountKindOrganization AccountKind = "organization"
)

// Visibility is a repository's visibility level.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityInternal Visibility = "internal"
)

// State is the lifecycle state of a pull request or issue.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// EntityKind names a mirrored table. Used for metrics labels and logging.
type EntityKind string

const (
	KindAccount       EntityKind = "account"
	KindRepository    EntityKind = "repository"
	KindPullRequest   EntityKind = "pull_request"
	KindIssue         EntityKind = "issue"
	KindReview        EntityKind = "review"
	KindReviewComment EntityKind = "review_comment"
	KindIssueComment  EntityKind = "issue_comment"
)
