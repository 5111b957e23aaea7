package normalize

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// Issue maps an issue. Repository-scoped REST listings do not embed the
// repository, so the caller supplies it; webhook callers pass the event's.
func Issue(issue *gh.Issue, repo *gh.Repository) (model.Issue, error) {
	if issue == nil || issue.GetID() == 0 {
		return model.Issue{}, malformed("issue", "missing id")
	}
	if repo == nil || repo.GetID() == 0 {
		repo = issue.GetRepository()
	}
	if repo.GetID() == 0 || repo.GetOwner().GetID() == 0 {
		return model.Issue{}, malformed("issue", "issue %d has no repository", issue.GetID())
	}

	content, err := snapshot("issue", issue)
	if err != nil {
		return model.Issue{}, err
	}

	return model.Issue{
		ID:         ID(issue.GetID()),
		GitHubID:   issue.GetID(),
		RepoID:     ID(repo.GetID()),
		OwnerID:    ID(repo.GetOwner().GetID()),
		AuthorID:   userID(issue.GetUser()),
		Number:     issue.GetNumber(),
		Title:      issue.GetTitle(),
		State:      state(issue.GetState()),
		Locked:     issue.GetLocked(),
		Body:       issue.Body,
		Content:    content,
		CreatedAt:  timestamp(issue.CreatedAt),
		ModifiedAt: timestamp(issue.UpdatedAt),
	}, nil
}

// IssueFromWebhook maps the issue carried by an issues event.
func IssueFromWebhook(ev *gh.IssuesEvent) (model.Issue, error) {
	if ev == nil {
		return model.Issue{}, malformed("issue", "missing event")
	}
	return Issue(ev.GetIssue(), ev.GetRepo())
}
