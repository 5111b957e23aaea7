package normalize

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// PullRequestFromWebhook maps the pull request carried by a pull_request event.
// The event's top-level repository is preferred over the base branch's copy.
func PullRequestFromWebhook(ev *gh.PullRequestEvent) (model.PullRequest, error) {
	if ev == nil || ev.PullRequest == nil {
		return model.PullRequest{}, malformed("pull request", "missing pull_request")
	}

	repo := ev.GetRepo()
	if repo.GetID() == 0 {
		repo = ev.GetPullRequest().GetBase().GetRepo()
	}
	return pullRequest(ev.GetPullRequest(), repo)
}

// PullRequestFromREST maps an item from GET /repos/{owner}/{repo}/pulls. List
// items only reference their repository through the base branch.
func PullRequestFromREST(pr *gh.PullRequest) (model.PullRequest, error) {
	if pr == nil {
		return model.PullRequest{}, malformed("pull request", "missing pull request")
	}
	return pullRequest(pr, pr.GetBase().GetRepo())
}

// PullRequestsFromREST maps a page or collection of list items, stopping at
// the first malformed item.
func PullRequestsFromREST(prs []*gh.PullRequest) ([]model.PullRequest, error) {
	rows := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		row, err := PullRequestFromREST(pr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func pullRequest(pr *gh.PullRequest, repo *gh.Repository) (model.PullRequest, error) {
	if pr.GetID() == 0 {
		return model.PullRequest{}, malformed("pull request", "missing id")
	}
	if repo.GetID() == 0 || repo.GetOwner().GetID() == 0 {
		return model.PullRequest{}, malformed("pull request", "pull request %d has no repository", pr.GetID())
	}

	content, err := snapshot("pull request", pr)
	if err != nil {
		return model.PullRequest{}, err
	}

	return model.PullRequest{
		ID:         ID(pr.GetID()),
		GitHubID:   pr.GetID(),
		RepoID:     ID(repo.GetID()),
		OwnerID:    ID(repo.GetOwner().GetID()),
		CreatorID:  userID(pr.GetUser()),
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		State:      state(pr.GetState()),
		Locked:     pr.GetLocked(),
		Draft:      pr.Draft,
		Body:       pr.Body,
		MergedAt:   optionalTimestamp(pr.MergedAt),
		ClosedAt:   optionalTimestamp(pr.ClosedAt),
		Content:    content,
		CreatedAt:  timestamp(pr.CreatedAt),
		ModifiedAt: timestamp(pr.UpdatedAt),
	}, nil
}

// state maps GitHub's lifecycle state. Anything other than "closed" is open.
func state(s string) model.State {
	if lower(s) == string(model.StateClosed) {
		return model.StateClosed
	}
	return model.StateOpen
}
