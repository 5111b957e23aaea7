package application_test

import (
	"context"
	"errors"
	"testing"

	gh "github.com/google/go-github/v82/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gitmirror/internal/application"
	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

var (
	octoOrg   = &gh.User{ID: gh.Ptr(int64(7)), Login: gh.Ptr("octo"), Type: gh.Ptr("Organization")}
	alice     = &gh.User{ID: gh.Ptr(int64(100)), Login: gh.Ptr("alice"), Type: gh.Ptr("User")}
	reviewBot = &gh.User{ID: gh.Ptr(int64(102)), Login: gh.Ptr("ci-bot"), Type: gh.Ptr("Bot")}
)

func fullRepo(id int64, name string) *gh.Repository {
	return &gh.Repository{
		ID:              gh.Ptr(id),
		Name:            gh.Ptr(name),
		FullName:        gh.Ptr("octo/" + name),
		Owner:           octoOrg,
		Private:         gh.Ptr(false),
		StargazersCount: gh.Ptr(3),
	}
}

func repoMeta(id int64, name string) *gh.Repository {
	return &gh.Repository{ID: gh.Ptr(id), Name: gh.Ptr(name), FullName: gh.Ptr("octo/" + name)}
}

func pull(id int64, number int, repo *gh.Repository) *gh.PullRequest {
	return &gh.PullRequest{
		ID:                 gh.Ptr(id),
		Number:             gh.Ptr(number),
		State:              gh.Ptr("open"),
		User:               alice,
		RequestedReviewers: []*gh.User{reviewBot},
		Base:               &gh.PullRequestBranch{Repo: repo},
	}
}

func installation(account *gh.User) *gh.Installation {
	return &gh.Installation{ID: gh.Ptr(int64(77)), Account: account}
}

type staticClients struct {
	client driven.GitHubClient
	err    error
}

func (s staticClients) Get(int64) (driven.GitHubClient, error) { return s.client, s.err }

func newTwoRepoClient() *mockGitHubClient {
	foo, bar := fullRepo(42, "foo"), fullRepo(43, "bar")
	return &mockGitHubClient{
		repos: map[string]*gh.Repository{"octo/foo": foo, "octo/bar": bar},
		pulls: map[string][]*gh.PullRequest{
			"octo/foo": {pull(9001, 1, foo)},
			"octo/bar": {pull(9002, 1, bar)},
		},
		issues: map[string][]*gh.Issue{
			"octo/foo": {
				{ID: gh.Ptr(int64(500)), Number: gh.Ptr(2), State: gh.Ptr("open"), User: alice},
				{ID: gh.Ptr(int64(501)), Number: gh.Ptr(1), PullRequestLinks: &gh.PullRequestLinks{URL: gh.Ptr("x")}},
			},
		},
		members: []*gh.User{alice, reviewBot},
	}
}

func TestBackfill_RunFullInstallation(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	metrics := newRecordingMetrics()
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{Concurrency: 2}, metrics)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo"), repoMeta(43, "bar")},
	})

	require.NoError(t, report.Err())
	assert.Len(t, report.Outcomes, 1+2+2*2+1)

	assert.Contains(t, store.accounts, "7")
	assert.Equal(t, model.AccountKindOrganization, store.accounts["7"].Kind)
	assert.Contains(t, store.accounts, "100")
	assert.Contains(t, store.accounts, "102")

	assert.Len(t, store.repos, 2)
	assert.Equal(t, 3, store.repos["42"].Stars)
	assert.Len(t, store.prs, 2)

	require.Len(t, store.issues, 1, "pull requests listed by the issues endpoint are skipped")
	assert.Contains(t, store.issues, "500")

	assert.True(t, client.called("members octo"))
	assert.False(t, client.called("reviews"), "discussions are disabled by default")
	assert.Empty(t, store.reviews)
	assert.Empty(t, store.issueComments)

	assert.Equal(t, 2, metrics.rows[model.KindPullRequest])
	assert.Equal(t, 2, metrics.rows[model.KindRepository])
}

func TestBackfill_OneRepositoryFetchFails(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	client.repoErrs = map[string]error{"octo/foo": errors.New("access revoked")}
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo"), repoMeta(43, "bar")},
	})

	assert.True(t, client.called("get octo/foo"))
	assert.True(t, client.called("get octo/bar"))

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "repository octo/foo", failed[0].Task)

	assert.NotContains(t, store.repos, "42")
	assert.Contains(t, store.repos, "43")
	assert.Contains(t, store.prs, "9002")
	assert.False(t, client.called("pulls octo/foo"))
}

func TestBackfill_RepositoryUpsertFailureStillSyncsCollections(t *testing.T) {
	store := newMemStore()
	store.failRepoIDs["42"] = true
	client := newTwoRepoClient()
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo"), repoMeta(43, "bar")},
	})

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "repository octo/foo", failed[0].Task)

	o, ok := report.Outcome("pull requests octo/foo")
	require.True(t, ok)
	assert.NoError(t, o.Err)
	o, ok = report.Outcome("issues octo/foo")
	require.True(t, ok)
	assert.NoError(t, o.Err)

	assert.NotContains(t, store.repos, "42")
	assert.Contains(t, store.prs, "9001")
	assert.Contains(t, store.issues, "500")
	assert.Contains(t, store.repos, "43")
}

func TestBackfill_StoresUpstreamJSON(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	client.raw = map[int64]string{
		42:   `{"id": 42, "name": "foo", "full_name": "octo/foo", "owner": {"id": 7, "login": "octo", "type": "Organization"}, "stargazers_count": 3, "custom_properties": {"team": "core"}}`,
		9001: `{"id": 9001, "number": 1, "state": "open", "user": {"id": 100}, "auto_merge_hint": "squash"}`,
	}
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo")},
	})
	require.NoError(t, report.Err())

	require.Contains(t, store.repos, "42")
	assert.JSONEq(t, client.raw[42], string(store.repos["42"].Content))
	assert.Equal(t, 3, store.repos["42"].Stars)

	require.Contains(t, store.prs, "9001")
	assert.JSONEq(t, client.raw[9001], string(store.prs["9001"].Content))

	require.Contains(t, store.issues, "500")
	assert.Contains(t, string(store.issues["500"].Content), `"id":500`)
}

func TestBackfill_CollectionFailureIsolated(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	client.pullErrs = map[string]error{"octo/foo": driven.ErrRateLimited}
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo"), repoMeta(43, "bar")},
	})

	o, ok := report.Outcome("pull requests octo/foo")
	require.True(t, ok)
	require.ErrorIs(t, o.Err, driven.ErrRateLimited)

	o, ok = report.Outcome("issues octo/foo")
	require.True(t, ok)
	assert.NoError(t, o.Err)

	assert.Contains(t, store.issues, "500")
	assert.Contains(t, store.prs, "9002")
	assert.NotContains(t, store.prs, "9001")
}

func TestBackfill_ReviewFailureDoesNotAffectOtherRepository(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	client.reviewErr = errors.New("reviews unavailable")
	b := application.NewBackfill(store.ports(), staticClients{client: client},
		application.BackfillOptions{Discussions: true, Concurrency: 1}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo"), repoMeta(43, "bar")},
	})

	for _, o := range report.Failed() {
		assert.Contains(t, o.Task, "reviews ")
	}
	assert.Len(t, report.Failed(), 2)

	assert.Contains(t, store.prs, "9001")
	assert.Contains(t, store.prs, "9002")
	assert.Contains(t, store.issues, "500")
}

func TestBackfill_DiscussionsEnabled(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	client.reviews = map[int][]*gh.PullRequestReview{
		1: {{ID: gh.Ptr(int64(7000)), State: gh.Ptr("APPROVED"), User: reviewBot}},
	}
	client.comments = map[int][]*gh.PullRequestComment{
		1: {{ID: gh.Ptr(int64(8000)), Body: gh.Ptr("nit"), User: alice}},
	}
	client.issueComments = map[int][]*gh.IssueComment{
		1: {{ID: gh.Ptr(int64(8100)), Body: gh.Ptr("thanks"), User: alice}},
	}
	b := application.NewBackfill(store.ports(), staticClients{client: client},
		application.BackfillOptions{Discussions: true}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo")},
	})
	require.NoError(t, report.Err())

	require.Contains(t, store.reviews, "7000")
	assert.Equal(t, "approved", store.reviews["7000"].State)
	assert.Equal(t, "9001", store.reviews["7000"].PullRequestID)
	assert.Contains(t, store.comments, "8000")

	require.Contains(t, store.issueComments, "8100")
	assert.True(t, store.issueComments["8100"].OnPullRequest, "comments on pull requests come through the issues listing")
}

func TestBackfill_PersonalAccountSkipsMembers(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(alice),
	})

	require.NoError(t, report.Err())
	assert.Len(t, report.Outcomes, 1)
	assert.False(t, client.called("members alice"))
	assert.Equal(t, model.AccountKindUser, store.accounts["100"].Kind)
}

func TestBackfill_ClientUnavailable(t *testing.T) {
	store := newMemStore()
	b := application.NewBackfill(store.ports(), staticClients{err: application.ErrNoClientFactory}, application.BackfillOptions{}, nil)

	report := b.Run(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Installation:   installation(octoOrg),
		Repositories:   []*gh.Repository{repoMeta(42, "foo")},
	})

	assert.Contains(t, store.accounts, "7", "the installing account needs no fetch")
	require.Len(t, report.Failed(), 1)
	require.ErrorIs(t, report.Failed()[0].Err, application.ErrNoClientFactory)
}

func TestBackfill_RunRepositories(t *testing.T) {
	store := newMemStore()
	client := newTwoRepoClient()
	b := application.NewBackfill(store.ports(), staticClients{client: client}, application.BackfillOptions{}, nil)

	report := b.RunRepositories(context.Background(), application.InstallationGrant{
		InstallationID: 77,
		Repositories:   []*gh.Repository{repoMeta(43, "bar"), {ID: gh.Ptr(int64(1)), FullName: gh.Ptr("bad")}},
	})

	o, ok := report.Outcome("repository bad")
	require.True(t, ok)
	assert.Error(t, o.Err)

	assert.Contains(t, store.repos, "43")
	assert.Contains(t, store.prs, "9002")
	assert.False(t, client.called("members octo"))
	assert.Contains(t, store.accounts, "7", "repository owners are upserted with their repository")
}
