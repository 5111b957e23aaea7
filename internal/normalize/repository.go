package normalize

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// RepositoryFromWebhook maps the repository carried by a repository event.
// Webhook repository objects may omit visibility and description; those
// fields are left nil so the store keeps what it already knows.
func RepositoryFromWebhook(ev *gh.RepositoryEvent) (model.Repository, error) {
	if ev == nil || ev.Repo == nil {
		return model.Repository{}, malformed("repository", "missing repository")
	}

	repo := ev.GetRepo()
	return repository(repo, visibility(repo.Visibility), repo.Description)
}

// RepositoryFromREST maps a full repository record from GET /repos/{owner}/{repo}.
// The REST record always carries visibility and description, so an absent
// description means the repository has none and clears any stored value.
func RepositoryFromREST(repo *gh.Repository) (model.Repository, error) {
	if repo == nil {
		return model.Repository{}, malformed("repository", "missing repository")
	}

	vis := visibility(repo.Visibility)
	if vis == nil && repo.Private != nil {
		derived := model.VisibilityPublic
		if repo.GetPrivate() {
			derived = model.VisibilityPrivate
		}
		vis = &derived
	}

	description := repo.GetDescription()
	return repository(repo, vis, &description)
}

func repository(repo *gh.Repository, vis *model.Visibility, description *string) (model.Repository, error) {
	if repo.GetID() == 0 {
		return model.Repository{}, malformed("repository", "missing id")
	}
	if repo.GetOwner().GetID() == 0 {
		return model.Repository{}, malformed("repository", "repository %d has no owner id", repo.GetID())
	}

	content, err := snapshot("repository", repo)
	if err != nil {
		return model.Repository{}, err
	}

	return model.Repository{
		ID:          ID(repo.GetID()),
		GitHubID:    repo.GetID(),
		OwnerID:     ID(repo.GetOwner().GetID()),
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Visibility:  vis,
		Fork:        repo.GetFork(),
		Stars:       repo.GetStargazersCount(),
		Description: description,
		Content:     content,
		CreatedAt:   timestamp(repo.CreatedAt),
		ModifiedAt:  timestamp(repo.UpdatedAt),
	}, nil
}

// visibility validates an upstream visibility string. Unknown or empty
// values map to nil.
func visibility(v *string) *model.Visibility {
	if v == nil {
		return nil
	}

	var vis model.Visibility
	switch model.Visibility(lower(*v)) {
	case model.VisibilityPublic:
		vis = model.VisibilityPublic
	case model.VisibilityPrivate:
		vis = model.VisibilityPrivate
	case model.VisibilityInternal:
		vis = model.VisibilityInternal
	default:
		return nil
	}
	return &vis
}
