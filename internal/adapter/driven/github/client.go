// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// perPage is the maximum page size GitHub accepts for list endpoints.
const perPage = 100

// Client implements the driven.GitHubClient port for one installation.
type Client struct {
	gh             *gh.Client
	installationID int64
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// GetRepository fetches the full repository record. Installation payloads only
// carry repository metadata, so backfill uses this to obtain visibility, stars,
// fork flag, and description.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (driven.Fetched[*gh.Repository], error) {
	var raw json.RawMessage
	resp, err := c.get(ctx, repoPath(owner, name), nil, &raw)
	if err != nil {
		return driven.Fetched[*gh.Repository]{}, classify(fmt.Sprintf("fetching repository %s/%s", owner, name), err)
	}

	logRateLimit(resp, owner+"/"+name, 0, 1)

	var repo *gh.Repository
	if err := json.Unmarshal(raw, &repo); err != nil {
		return driven.Fetched[*gh.Repository]{}, fmt.Errorf("decoding repository %s/%s: %w", owner, name, err)
	}

	return driven.Fetched[*gh.Repository]{Item: repo, Raw: raw}, nil
}

// ListInstallationRepositories lists every repository the installation can access.
func (c *Client) ListInstallationRepositories(ctx context.Context) Seq[*gh.Repository] {
	endpoint := fmt.Sprintf("installation %d repositories", c.installationID)
	return paginate(ctx, endpoint, func(ctx context.Context, opts gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
		list, resp, err := c.gh.Apps.ListRepos(ctx, &opts)
		if err != nil {
			return nil, resp, err
		}
		return list.Repositories, resp, nil
	})
}

// ListPullRequests lists open and closed pull requests of a repository.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string) Seq[driven.Fetched[*gh.PullRequest]] {
	return listFetched[*gh.PullRequest](ctx, owner+"/"+name+"/pulls",
		c.rawPages(repoPath(owner, name)+"/pulls", url.Values{"state": {"all"}}))
}

// ListIssues lists open and closed issues of a repository. GitHub includes pull
// requests in this listing; callers filter them with Issue.IsPullRequest.
func (c *Client) ListIssues(ctx context.Context, owner, name string) Seq[driven.Fetched[*gh.Issue]] {
	return listFetched[*gh.Issue](ctx, owner+"/"+name+"/issues",
		c.rawPages(repoPath(owner, name)+"/issues", url.Values{"state": {"all"}}))
}

// ListReviews lists the reviews of a pull request.
func (c *Client) ListReviews(ctx context.Context, owner, name string, number int) Seq[driven.Fetched[*gh.PullRequestReview]] {
	endpoint := fmt.Sprintf("%s/%s#%d/reviews", owner, name, number)
	return listFetched[*gh.PullRequestReview](ctx, endpoint,
		c.rawPages(fmt.Sprintf("%s/pulls/%d/reviews", repoPath(owner, name), number), nil))
}

// ListReviewComments lists the inline review comments of a pull request.
func (c *Client) ListReviewComments(ctx context.Context, owner, name string, number int) Seq[driven.Fetched[*gh.PullRequestComment]] {
	endpoint := fmt.Sprintf("%s/%s#%d/review-comments", owner, name, number)
	return listFetched[*gh.PullRequestComment](ctx, endpoint,
		c.rawPages(fmt.Sprintf("%s/pulls/%d/comments", repoPath(owner, name), number), nil))
}

// ListIssueComments lists the conversation comments of an issue or pull request.
func (c *Client) ListIssueComments(ctx context.Context, owner, name string, number int) Seq[driven.Fetched[*gh.IssueComment]] {
	endpoint := fmt.Sprintf("%s/%s#%d/comments", owner, name, number)
	return listFetched[*gh.IssueComment](ctx, endpoint,
		c.rawPages(fmt.Sprintf("%s/issues/%d/comments", repoPath(owner, name), number), nil))
}

// ListOrgMembers lists the members of an organization.
func (c *Client) ListOrgMembers(ctx context.Context, org string) Seq[*gh.User] {
	return paginate(ctx, org+"/members", func(ctx context.Context, opts gh.ListOptions) ([]*gh.User, *gh.Response, error) {
		return c.gh.Organizations.ListMembers(ctx, org, &gh.ListMembersOptions{
			ListOptions: opts,
		})
	})
}

// repoPath is the API path of a repository.
func repoPath(owner, name string) string {
	return "repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
}

// get sends a GET request and decodes the response body into v.
func (c *Client) get(ctx context.Context, path string, query url.Values, v any) (*gh.Response, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := c.gh.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return c.gh.Do(ctx, req, v)
}

// rawPages requests one page of a list endpoint without decoding its items.
func (c *Client) rawPages(path string, query url.Values) pageFunc[json.RawMessage] {
	return func(ctx context.Context, opts gh.ListOptions) ([]json.RawMessage, *gh.Response, error) {
		q := url.Values{}
		maps.Copy(q, query)
		q.Set("per_page", strconv.Itoa(opts.PerPage))
		if opts.Page > 0 {
			q.Set("page", strconv.Itoa(opts.Page))
		}

		var items []json.RawMessage
		resp, err := c.get(ctx, path, q, &items)
		return items, resp, err
	}
}

// classify wraps err with context and marks rate limit rejections with
// driven.ErrRateLimited so callers can choose to retry or skip.
func classify(op string, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%s: %w: %w", op, driven.ErrRateLimited, err)
	case errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %w", op, driven.ErrRateLimited, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"endpoint", endpoint,
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
