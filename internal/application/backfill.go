package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/gitmirror/internal/normalize"
)

// ClientSource returns the GitHub client for an installation.
type ClientSource interface {
	Get(installationID int64) (driven.GitHubClient, error)
}

// BackfillOptions tunes a Backfill.
type BackfillOptions struct {
	// Discussions enables fetching reviews, review comments, and issue
	// comments. When disabled those rows arrive through webhooks only.
	Discussions bool
	// Concurrency bounds the tasks running at once within one fan-out level.
	// Zero or less means unbounded.
	Concurrency int
}

// InstallationGrant describes the access granted by an installation event.
// Repositories carry only the metadata present in installation payloads.
type InstallationGrant struct {
	InstallationID int64
	Installation   *gh.Installation
	Repositories   []*gh.Repository
}

// Backfill populates the mirror with historical data when an installation
// grants access. Every step is fault-contained: a failed fetch or upsert is
// recorded in the Report and its siblings carry on.
type Backfill struct {
	stores  Stores
	clients ClientSource
	opts    BackfillOptions
	metrics Metrics
}

// NewBackfill creates a Backfill. metrics may be nil.
func NewBackfill(stores Stores, clients ClientSource, opts BackfillOptions, metrics Metrics) *Backfill {
	return &Backfill{
		stores:  stores,
		clients: clients,
		opts:    opts,
		metrics: metricsOrNop(metrics),
	}
}

// Run performs a full installation backfill:
//  1. upsert the installing account from the payload
//  2. fetch and upsert each granted repository
//  3. per repository, concurrently fetch and upsert pull requests and issues
//  4. upsert organization members when the account is an organization
func (b *Backfill) Run(ctx context.Context, grant InstallationGrant) Report {
	s := newSettler(b.metrics)

	// 1. The installing account goes first so repositories rarely dangle.
	account, err := normalize.AccountFromInstallation(grant.Installation)
	if err == nil {
		err = b.upsertAccounts(ctx, account)
	}
	s.record(fmt.Sprintf("account installation %d", grant.InstallationID), err)

	client, err := b.clients.Get(grant.InstallationID)
	if err != nil {
		s.record(fmt.Sprintf("client installation %d", grant.InstallationID), err)
		return b.finish(grant, s)
	}

	// 2-3. Repositories, each followed by its own collections.
	tasks := b.repositoryTasks(client, grant.Repositories, s)

	// 4. Members only exist for organizations.
	if account.Kind == model.AccountKindOrganization {
		tasks = append(tasks, task{
			name: "members " + account.Login,
			run: func(ctx context.Context) error {
				return b.syncMembers(ctx, client, account.Login)
			},
		})
	}

	settle(ctx, b.opts.Concurrency, s, tasks)

	return b.finish(grant, s)
}

// RunRepositories backfills repositories added to an existing installation.
// It performs steps 2 and 3 of Run.
func (b *Backfill) RunRepositories(ctx context.Context, grant InstallationGrant) Report {
	s := newSettler(b.metrics)

	client, err := b.clients.Get(grant.InstallationID)
	if err != nil {
		s.record(fmt.Sprintf("client installation %d", grant.InstallationID), err)
		return b.finish(grant, s)
	}

	settle(ctx, b.opts.Concurrency, s, b.repositoryTasks(client, grant.Repositories, s))

	return b.finish(grant, s)
}

func (b *Backfill) finish(grant InstallationGrant, s *settler) Report {
	report := s.report()

	for _, o := range report.Failed() {
		slog.Error("backfill task failed",
			"installation_id", grant.InstallationID,
			"task", o.Task,
			"rate_limited", errors.Is(o.Err, driven.ErrRateLimited),
			"error", o.Err,
		)
	}

	slog.Info("backfill complete",
		"installation_id", grant.InstallationID,
		"repositories", len(grant.Repositories),
		"succeeded", report.Succeeded(),
		"failed", len(report.Failed()),
	)

	return report
}

// repositoryTasks fetches each repository and then syncs its collections.
// Collections run once the fetch succeeds, even when storing the repository
// row fails; that failure is reported against the repository task.
func (b *Backfill) repositoryTasks(client driven.GitHubClient, repos []*gh.Repository, s *settler) []task {
	tasks := make([]task, 0, len(repos))
	for _, meta := range repos {
		fullName := meta.GetFullName()
		tasks = append(tasks, task{
			name: "repository " + fullName,
			run: func(ctx context.Context) error {
				fetched, err := b.fetchRepository(ctx, client, fullName)
				if err != nil {
					return err
				}

				storeErr := b.storeRepository(ctx, fetched)
				settle(ctx, b.opts.Concurrency, s, b.collectionTasks(client, fetched.Item, s))
				return storeErr
			},
		})
	}
	return tasks
}

// fetchRepository fetches the full record, since installation payloads carry
// metadata only.
func (b *Backfill) fetchRepository(ctx context.Context, client driven.GitHubClient, fullName string) (driven.Fetched[*gh.Repository], error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return driven.Fetched[*gh.Repository]{}, err
	}

	fetched, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return driven.Fetched[*gh.Repository]{}, err
	}
	if fetched.Item == nil {
		return driven.Fetched[*gh.Repository]{}, fmt.Errorf("repository %s: %w: empty response", fullName, normalize.ErrMalformedPayload)
	}
	return fetched, nil
}

// storeRepository upserts a fetched repository after its owner.
func (b *Backfill) storeRepository(ctx context.Context, fetched driven.Fetched[*gh.Repository]) error {
	repo := fetched.Item

	row, err := normalize.RepositoryFromREST(repo)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(fetched.Raw, row.Content)

	if ownerAccount, err := normalize.Account(repo.GetOwner()); err == nil {
		if err := b.upsertAccounts(ctx, ownerAccount); err != nil {
			return err
		}
	}

	if err := b.stores.Repositories.Upsert(ctx, row); err != nil {
		return err
	}
	b.metrics.RowsUpserted(model.KindRepository, 1)

	return nil
}

func (b *Backfill) collectionTasks(client driven.GitHubClient, repo *gh.Repository, s *settler) []task {
	fullName := repo.GetFullName()
	return []task{
		{
			name: "pull requests " + fullName,
			run: func(ctx context.Context) error {
				return b.syncPullRequests(ctx, client, repo, s)
			},
		},
		{
			name: "issues " + fullName,
			run: func(ctx context.Context) error {
				return b.syncIssues(ctx, client, repo, s)
			},
		},
	}
}

// syncPullRequests upserts every pull request of repo together with the
// accounts they reference. Malformed items are skipped and reported.
func (b *Backfill) syncPullRequests(ctx context.Context, client driven.GitHubClient, repo *gh.Repository, s *settler) error {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()

	prs, err := collect(client.ListPullRequests(ctx, owner, name))
	if err != nil {
		return err
	}

	rows := make([]model.PullRequest, 0, len(prs))
	valid := make([]*gh.PullRequest, 0, len(prs))
	var malformed []error
	for _, pr := range prs {
		row, err := normalize.PullRequestFromREST(pr.Item)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		row.Content = normalize.Verbatim(pr.Raw, row.Content)
		rows = append(rows, row)
		valid = append(valid, pr.Item)
	}

	if err := b.upsertAccounts(ctx, normalize.AccountsFromPullRequests(valid)...); err != nil {
		return err
	}

	if err := b.stores.PullRequests.Upsert(ctx, rows...); err != nil {
		return err
	}
	b.metrics.RowsUpserted(model.KindPullRequest, len(rows))

	if b.opts.Discussions {
		tasks := make([]task, 0, 2*len(valid))
		for _, pr := range valid {
			tasks = append(tasks, b.reviewTasks(client, repo, pr)...)
		}
		settle(ctx, b.opts.Concurrency, s, tasks)
	}

	return errors.Join(malformed...)
}

// reviewTasks fetches the reviews and inline comments of one pull request.
func (b *Backfill) reviewTasks(client driven.GitHubClient, repo *gh.Repository, pr *gh.PullRequest) []task {
	owner, name, number := repo.GetOwner().GetLogin(), repo.GetName(), pr.GetNumber()
	repoID, prID := normalize.ID(repo.GetID()), normalize.ID(pr.GetID())
	label := fmt.Sprintf("%s#%d", repo.GetFullName(), number)

	return []task{
		{
			name: "reviews " + label,
			run: func(ctx context.Context) error {
				reviews, err := collect(client.ListReviews(ctx, owner, name, number))
				if err != nil {
					return err
				}

				accounts := normalize.NewAccountSet()
				rows := make([]model.Review, 0, len(reviews))
				for _, r := range reviews {
					row, err := normalize.Review(r.Item, repoID, prID)
					if err != nil {
						return err
					}
					row.Content = normalize.Verbatim(r.Raw, row.Content)
					accounts.Add(r.Item.GetUser())
					rows = append(rows, row)
				}

				if err := b.upsertAccounts(ctx, accounts.Accounts()...); err != nil {
					return err
				}
				if err := b.stores.Reviews.UpsertReviews(ctx, rows...); err != nil {
					return err
				}
				b.metrics.RowsUpserted(model.KindReview, len(rows))
				return nil
			},
		},
		{
			name: "review comments " + label,
			run: func(ctx context.Context) error {
				comments, err := collect(client.ListReviewComments(ctx, owner, name, number))
				if err != nil {
					return err
				}

				accounts := normalize.NewAccountSet()
				rows := make([]model.ReviewComment, 0, len(comments))
				for _, c := range comments {
					row, err := normalize.ReviewComment(c.Item, repoID, prID)
					if err != nil {
						return err
					}
					row.Content = normalize.Verbatim(c.Raw, row.Content)
					accounts.Add(c.Item.GetUser())
					rows = append(rows, row)
				}

				if err := b.upsertAccounts(ctx, accounts.Accounts()...); err != nil {
					return err
				}
				if err := b.stores.Reviews.UpsertReviewComments(ctx, rows...); err != nil {
					return err
				}
				b.metrics.RowsUpserted(model.KindReviewComment, len(rows))
				return nil
			},
		},
	}
}

// syncIssues upserts every issue of repo. The issues endpoint also lists pull
// requests; those items are not stored as issues, but their conversation
// comments are fetched through them when discussions are enabled.
func (b *Backfill) syncIssues(ctx context.Context, client driven.GitHubClient, repo *gh.Repository, s *settler) error {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()

	items, err := collect(client.ListIssues(ctx, owner, name))
	if err != nil {
		return err
	}

	accounts := normalize.NewAccountSet()
	var rows []model.Issue
	var malformed []error
	for _, item := range items {
		if item.Item.IsPullRequest() {
			continue
		}
		row, err := normalize.Issue(item.Item, repo)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		row.Content = normalize.Verbatim(item.Raw, row.Content)
		accounts.AddIssue(item.Item)
		rows = append(rows, row)
	}

	if err := b.upsertAccounts(ctx, accounts.Accounts()...); err != nil {
		return err
	}

	if err := b.stores.Issues.Upsert(ctx, rows...); err != nil {
		return err
	}
	b.metrics.RowsUpserted(model.KindIssue, len(rows))

	if b.opts.Discussions {
		tasks := make([]task, 0, len(items))
		for _, item := range items {
			if item.Item.GetNumber() == 0 {
				continue
			}
			tasks = append(tasks, b.issueCommentTask(client, repo, item.Item))
		}
		settle(ctx, b.opts.Concurrency, s, tasks)
	}

	return errors.Join(malformed...)
}

func (b *Backfill) issueCommentTask(client driven.GitHubClient, repo *gh.Repository, issue *gh.Issue) task {
	owner, name, number := repo.GetOwner().GetLogin(), repo.GetName(), issue.GetNumber()
	repoID := normalize.ID(repo.GetID())

	return task{
		name: fmt.Sprintf("issue comments %s#%d", repo.GetFullName(), number),
		run: func(ctx context.Context) error {
			comments, err := collect(client.ListIssueComments(ctx, owner, name, number))
			if err != nil {
				return err
			}

			accounts := normalize.NewAccountSet()
			rows := make([]model.IssueComment, 0, len(comments))
			for _, c := range comments {
				row, err := normalize.IssueComment(c.Item, repoID, issue)
				if err != nil {
					return err
				}
				row.Content = normalize.Verbatim(c.Raw, row.Content)
				accounts.Add(c.Item.GetUser())
				rows = append(rows, row)
			}

			if err := b.upsertAccounts(ctx, accounts.Accounts()...); err != nil {
				return err
			}
			if err := b.stores.Reviews.UpsertIssueComments(ctx, rows...); err != nil {
				return err
			}
			b.metrics.RowsUpserted(model.KindIssueComment, len(rows))
			return nil
		},
	}
}

// syncMembers upserts every member of an organization as an account.
func (b *Backfill) syncMembers(ctx context.Context, client driven.GitHubClient, org string) error {
	members, err := collect(client.ListOrgMembers(ctx, org))
	if err != nil {
		return err
	}

	accounts := normalize.NewAccountSet()
	accounts.Add(members...)

	return b.upsertAccounts(ctx, accounts.Accounts()...)
}

func (b *Backfill) upsertAccounts(ctx context.Context, accounts ...model.Account) error {
	if err := b.stores.Accounts.Upsert(ctx, accounts...); err != nil {
		return err
	}
	b.metrics.RowsUpserted(model.KindAccount, len(accounts))
	return nil
}

// splitFullName splits "owner/name".
func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return owner, name, nil
}

// collect drains a collection sequence, stopping at the first error.
func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
