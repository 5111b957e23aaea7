package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"slices"
	"sync"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/application"
	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// --- Mock implementations ---

// seqOf yields items, then err when non-nil.
func seqOf[T any](items []T, err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		if err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// fetchedOf yields items paired with their JSON, then err when non-nil. raw
// overrides the encoded JSON of items by GitHub ID.
func fetchedOf[T interface{ GetID() int64 }](items []T, raw map[int64]string, err error) iter.Seq2[driven.Fetched[T], error] {
	fetched := make([]driven.Fetched[T], 0, len(items))
	for _, item := range items {
		fetched = append(fetched, fetch(item, raw))
	}
	return seqOf(fetched, err)
}

func fetch[T interface{ GetID() int64 }](item T, raw map[int64]string) driven.Fetched[T] {
	if r, ok := raw[item.GetID()]; ok {
		return driven.Fetched[T]{Item: item, Raw: json.RawMessage(r)}
	}
	data, _ := json.Marshal(item)
	return driven.Fetched[T]{Item: item, Raw: data}
}

type mockGitHubClient struct {
	mu    sync.Mutex
	calls []string

	repos         map[string]*gh.Repository
	repoErrs      map[string]error
	pulls         map[string][]*gh.PullRequest
	pullErrs      map[string]error
	issues        map[string][]*gh.Issue
	reviews       map[int][]*gh.PullRequestReview
	reviewErr     error
	comments      map[int][]*gh.PullRequestComment
	issueComments map[int][]*gh.IssueComment
	members       []*gh.User
	installRepos  []*gh.Repository
	raw           map[int64]string
}

func (m *mockGitHubClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockGitHubClient) called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.calls, call)
}

func (m *mockGitHubClient) GetRepository(_ context.Context, owner, name string) (driven.Fetched[*gh.Repository], error) {
	full := owner + "/" + name
	m.record("get " + full)
	if err := m.repoErrs[full]; err != nil {
		return driven.Fetched[*gh.Repository]{}, err
	}
	repo, ok := m.repos[full]
	if !ok {
		return driven.Fetched[*gh.Repository]{}, errors.New("not found")
	}
	return fetch(repo, m.raw), nil
}

func (m *mockGitHubClient) ListInstallationRepositories(_ context.Context) iter.Seq2[*gh.Repository, error] {
	return seqOf(m.installRepos, nil)
}

func (m *mockGitHubClient) ListPullRequests(_ context.Context, owner, name string) iter.Seq2[driven.Fetched[*gh.PullRequest], error] {
	full := owner + "/" + name
	m.record("pulls " + full)
	return fetchedOf(m.pulls[full], m.raw, m.pullErrs[full])
}

func (m *mockGitHubClient) ListIssues(_ context.Context, owner, name string) iter.Seq2[driven.Fetched[*gh.Issue], error] {
	full := owner + "/" + name
	m.record("issues " + full)
	return fetchedOf(m.issues[full], m.raw, nil)
}

func (m *mockGitHubClient) ListReviews(_ context.Context, _, _ string, number int) iter.Seq2[driven.Fetched[*gh.PullRequestReview], error] {
	m.record("reviews")
	return fetchedOf(m.reviews[number], m.raw, m.reviewErr)
}

func (m *mockGitHubClient) ListReviewComments(_ context.Context, _, _ string, number int) iter.Seq2[driven.Fetched[*gh.PullRequestComment], error] {
	m.record("review comments")
	return fetchedOf(m.comments[number], m.raw, nil)
}

func (m *mockGitHubClient) ListIssueComments(_ context.Context, _, _ string, number int) iter.Seq2[driven.Fetched[*gh.IssueComment], error] {
	m.record("issue comments")
	return fetchedOf(m.issueComments[number], m.raw, nil)
}

func (m *mockGitHubClient) ListOrgMembers(_ context.Context, org string) iter.Seq2[*gh.User, error] {
	m.record("members " + org)
	return seqOf(m.members, nil)
}

type mockFactory struct {
	mu      sync.Mutex
	created int
	client  driven.GitHubClient
	err     error
}

func (f *mockFactory) ForInstallation(_ int64) (driven.GitHubClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	return f.client, nil
}

// memStore is an in-memory implementation of every store port keyed by local ID.
type memStore struct {
	mu            sync.Mutex
	accounts      map[string]model.Account
	repos         map[string]model.Repository
	prs           map[string]model.PullRequest
	issues        map[string]model.Issue
	reviews       map[string]model.Review
	comments      map[string]model.ReviewComment
	issueComments map[string]model.IssueComment
	writes        int
	failRepoIDs   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts:      make(map[string]model.Account),
		repos:         make(map[string]model.Repository),
		prs:           make(map[string]model.PullRequest),
		issues:        make(map[string]model.Issue),
		reviews:       make(map[string]model.Review),
		comments:      make(map[string]model.ReviewComment),
		issueComments: make(map[string]model.IssueComment),
		failRepoIDs:   make(map[string]bool),
	}
}

func (s *memStore) totalWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// The store ports share method names, so each gets its own view of memStore.
type (
	accountStore     struct{ *memStore }
	repositoryStore  struct{ *memStore }
	pullRequestStore struct{ *memStore }
	issueStore       struct{ *memStore }
	reviewStore      struct{ *memStore }
)

func (s *memStore) ports() application.Stores {
	return application.Stores{
		Accounts:     accountStore{s},
		Repositories: repositoryStore{s},
		PullRequests: pullRequestStore{s},
		Issues:       issueStore{s},
		Reviews:      reviewStore{s},
	}
}

func (a accountStore) Upsert(_ context.Context, rows ...model.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rows {
		if prev, ok := a.accounts[r.ID]; ok {
			if r.Login == "" {
				r.Login = prev.Login
			}
			if r.AvatarURL == "" {
				r.AvatarURL = prev.AvatarURL
			}
			if r.Kind == "" {
				r.Kind = prev.Kind
			}
		}
		a.accounts[r.ID] = r
		a.writes++
	}
	return nil
}

func (a accountStore) GetByID(_ context.Context, id string) (*model.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.accounts[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (a accountStore) Count(_ context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.accounts), nil
}

func (r repositoryStore) Upsert(_ context.Context, rows ...model.Repository) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if r.failRepoIDs[row.ID] {
			return errors.New("constraint failed")
		}
		r.repos[row.ID] = row
		r.writes++
	}
	return nil
}

func (r repositoryStore) GetByID(_ context.Context, id string) (*model.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.repos[id]; ok {
		return &row, nil
	}
	return nil, nil
}

func (r repositoryStore) ListByOwner(_ context.Context, ownerID string) ([]model.Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Repository
	for _, row := range r.repos {
		if row.OwnerID == ownerID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r repositoryStore) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.repos), nil
}

func (p pullRequestStore) Upsert(_ context.Context, rows ...model.PullRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range rows {
		p.prs[row.ID] = row
		p.writes++
	}
	return nil
}

func (p pullRequestStore) GetByID(_ context.Context, id string) (*model.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if row, ok := p.prs[id]; ok {
		return &row, nil
	}
	return nil, nil
}

func (p pullRequestStore) GetByNumber(_ context.Context, repoID string, number int) (*model.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.prs {
		if row.RepoID == repoID && row.Number == number {
			return &row, nil
		}
	}
	return nil, nil
}

func (p pullRequestStore) ListByRepo(_ context.Context, repoID string) ([]model.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.PullRequest
	for _, row := range p.prs {
		if row.RepoID == repoID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (i issueStore) Upsert(_ context.Context, rows ...model.Issue) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, row := range rows {
		i.issues[row.ID] = row
		i.writes++
	}
	return nil
}

func (i issueStore) GetByID(_ context.Context, id string) (*model.Issue, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if row, ok := i.issues[id]; ok {
		return &row, nil
	}
	return nil, nil
}

func (i issueStore) ListByRepo(_ context.Context, repoID string) ([]model.Issue, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []model.Issue
	for _, row := range i.issues {
		if row.RepoID == repoID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r reviewStore) UpsertReviews(_ context.Context, rows ...model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.reviews[row.ID] = row
		r.writes++
	}
	return nil
}

func (r reviewStore) UpsertReviewComments(_ context.Context, rows ...model.ReviewComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.comments[row.ID] = row
		r.writes++
	}
	return nil
}

func (r reviewStore) UpsertIssueComments(_ context.Context, rows ...model.IssueComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.issueComments[row.ID] = row
		r.writes++
	}
	return nil
}

func (r reviewStore) GetReviewsByPR(_ context.Context, _ string) ([]model.Review, error) {
	return nil, nil
}

func (r reviewStore) GetReviewCommentsByPR(_ context.Context, _ string) ([]model.ReviewComment, error) {
	return nil, nil
}

func (r reviewStore) GetIssueComments(_ context.Context, _ string, _ int) ([]model.IssueComment, error) {
	return nil, nil
}

// recordingMetrics counts signals by name.
type recordingMetrics struct {
	mu        sync.Mutex
	routed    []string
	unhandled []string
	failed    []string
	tasks     map[string]error
	rows      map[model.EntityKind]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{tasks: make(map[string]error), rows: make(map[model.EntityKind]int)}
}

func (m *recordingMetrics) EventRouted(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routed = append(m.routed, key)
}

func (m *recordingMetrics) EventUnhandled(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhandled = append(m.unhandled, key)
}

func (m *recordingMetrics) HandlerFailed(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, key)
}

func (m *recordingMetrics) BackfillTask(task string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task] = err
}

func (m *recordingMetrics) RowsUpserted(kind model.EntityKind, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[kind] += n
}
