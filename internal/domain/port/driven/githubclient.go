package driven

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	gh "github.com/google/go-github/v82/github"
)

// Sentinel errors returned by GitHubClient implementations.
var (
	// ErrRateLimited indicates GitHub rejected a request because a primary or
	// secondary rate limit was exceeded. Callers may retry later or skip.
	ErrRateLimited = errors.New("github rate limit exceeded")

	// ErrSequenceConsumed is yielded when a collection sequence is ranged
	// over a second time.
	ErrSequenceConsumed = errors.New("collection sequence already consumed")
)

// Fetched is a decoded GitHub object together with the JSON it was decoded
// from. Raw keeps fields the go-github types do not declare.
type Fetched[T any] struct {
	Item T
	Raw  json.RawMessage
}

// GitHubClient defines the driven port for reading GitHub on behalf of one
// installation. Collection methods return lazy, finite sequences that fetch
// one page at a time; an error ends the sequence.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (Fetched[*gh.Repository], error)

	ListInstallationRepositories(ctx context.Context) iter.Seq2[*gh.Repository, error]
	ListPullRequests(ctx context.Context, owner, name string) iter.Seq2[Fetched[*gh.PullRequest], error]
	ListIssues(ctx context.Context, owner, name string) iter.Seq2[Fetched[*gh.Issue], error]
	ListReviews(ctx context.Context, owner, name string, number int) iter.Seq2[Fetched[*gh.PullRequestReview], error]
	ListReviewComments(ctx context.Context, owner, name string, number int) iter.Seq2[Fetched[*gh.PullRequestComment], error]
	ListIssueComments(ctx context.Context, owner, name string, number int) iter.Seq2[Fetched[*gh.IssueComment], error]
	ListOrgMembers(ctx context.Context, org string) iter.Seq2[*gh.User, error]
}

// GitHubClientFactory builds installation-scoped clients.
type GitHubClientFactory interface {
	ForInstallation(installationID int64) (GitHubClient, error)
}
