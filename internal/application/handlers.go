package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
	"github.com/ericfisherdev/gitmirror/internal/normalize"
)

// Stores groups the persistence ports the ingestion pipeline writes to.
type Stores struct {
	Accounts     driven.AccountStore
	Repositories driven.RepositoryStore
	PullRequests driven.PullRequestStore
	Issues       driven.IssueStore
	Reviews      driven.ReviewStore
}

// EventHandlers holds the webhook handlers. Entity handlers ignore the action
// and always upsert the latest full state carried by the payload.
type EventHandlers struct {
	stores   Stores
	backfill *Backfill
	clients  *InstallationClients
	metrics  Metrics
}

// NewEventHandlers creates the handler set. metrics may be nil.
func NewEventHandlers(stores Stores, backfill *Backfill, clients *InstallationClients, metrics Metrics) *EventHandlers {
	return &EventHandlers{
		stores:   stores,
		backfill: backfill,
		clients:  clients,
		metrics:  metricsOrNop(metrics),
	}
}

// Register adds every handler to r.
func (h *EventHandlers) Register(r *Router) {
	r.Register("installation", "created", h.installationCreated)
	r.Register("installation", "deleted", h.installationRevoked)
	r.Register("installation", "suspend", h.installationRevoked)
	r.Register("installation_repositories", "added", h.repositoriesAdded)
	r.Register("repository", "", h.repository)
	r.Register("pull_request", "", h.pullRequest)
	r.Register("issues", "", h.issue)
	r.Register("pull_request_review", "", h.review)
	r.Register("pull_request_review_comment", "", h.reviewComment)
	r.Register("issue_comment", "", h.issueComment)
	r.Register("organization", "member_added", h.memberAdded)
}

// decodePayload unmarshals a webhook payload into its go-github event type.
func decodePayload[T any](env model.Envelope) (*T, error) {
	var ev T
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w: %w", env.EventType, normalize.ErrMalformedPayload, err)
	}
	return &ev, nil
}

// payloadField returns the raw JSON of a top-level payload field, or nil.
func payloadField(env model.Envelope, name string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Payload, &fields); err != nil {
		return nil
	}
	return fields[name]
}

func (h *EventHandlers) installationCreated(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.InstallationEvent](env)
	if err != nil {
		return err
	}
	if ev.GetInstallation().GetID() == 0 {
		return fmt.Errorf("installation: %w: missing installation id", normalize.ErrMalformedPayload)
	}

	h.backfill.Run(ctx, InstallationGrant{
		InstallationID: ev.GetInstallation().GetID(),
		Installation:   ev.GetInstallation(),
		Repositories:   ev.Repositories,
	})

	return nil
}

func (h *EventHandlers) repositoriesAdded(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.InstallationRepositoriesEvent](env)
	if err != nil {
		return err
	}
	if ev.GetInstallation().GetID() == 0 {
		return fmt.Errorf("installation_repositories: %w: missing installation id", normalize.ErrMalformedPayload)
	}

	h.backfill.RunRepositories(ctx, InstallationGrant{
		InstallationID: ev.GetInstallation().GetID(),
		Installation:   ev.GetInstallation(),
		Repositories:   ev.RepositoriesAdded,
	})

	return nil
}

// installationRevoked drops the cached client so a later reinstall starts
// with fresh credentials.
func (h *EventHandlers) installationRevoked(_ context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.InstallationEvent](env)
	if err != nil {
		return err
	}

	id := ev.GetInstallation().GetID()
	h.clients.Invalidate(id)
	slog.Info("installation client invalidated", "installation_id", id, "action", env.Action)

	return nil
}

func (h *EventHandlers) repository(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.RepositoryEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.RepositoryFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "repository"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.Add(ev.GetRepo().GetOwner())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.Repositories.Upsert(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindRepository, 1)

	return nil
}

func (h *EventHandlers) pullRequest(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.PullRequestEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.PullRequestFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "pull_request"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.AddPullRequest(ev.GetPullRequest())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.PullRequests.Upsert(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindPullRequest, 1)

	return nil
}

func (h *EventHandlers) issue(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.IssuesEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.IssueFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "issue"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.AddIssue(ev.GetIssue())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.Issues.Upsert(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindIssue, 1)

	return nil
}

func (h *EventHandlers) review(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.PullRequestReviewEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.ReviewFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "review"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.Add(ev.GetReview().GetUser())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.Reviews.UpsertReviews(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindReview, 1)

	return nil
}

func (h *EventHandlers) reviewComment(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.PullRequestReviewCommentEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.ReviewCommentFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "comment"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.Add(ev.GetComment().GetUser())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.Reviews.UpsertReviewComments(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindReviewComment, 1)

	return nil
}

func (h *EventHandlers) issueComment(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.IssueCommentEvent](env)
	if err != nil {
		return err
	}

	row, err := normalize.IssueCommentFromWebhook(ev)
	if err != nil {
		return err
	}
	row.Content = normalize.Verbatim(payloadField(env, "comment"), row.Content)

	accounts := normalize.NewAccountSet()
	accounts.Add(ev.GetComment().GetUser())
	if err := h.upsertAccounts(ctx, accounts); err != nil {
		return err
	}

	if err := h.stores.Reviews.UpsertIssueComments(ctx, row); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindIssueComment, 1)

	return nil
}

func (h *EventHandlers) memberAdded(ctx context.Context, env model.Envelope) error {
	ev, err := decodePayload[gh.OrganizationEvent](env)
	if err != nil {
		return err
	}

	member, err := normalize.Account(ev.GetMembership().GetUser())
	if err != nil {
		return err
	}

	rows := []model.Account{member}
	if org, err := normalize.AccountFromOrganization(ev.GetOrganization()); err == nil {
		rows = append([]model.Account{org}, rows...)
	}

	if err := h.stores.Accounts.Upsert(ctx, rows...); err != nil {
		return err
	}
	h.metrics.RowsUpserted(model.KindAccount, len(rows))

	return nil
}

func (h *EventHandlers) upsertAccounts(ctx context.Context, set *normalize.AccountSet) error {
	if set.Len() == 0 {
		return nil
	}
	if err := h.stores.Accounts.Upsert(ctx, set.Accounts()...); err != nil {
		return fmt.Errorf("upsert accounts: %w", err)
	}
	h.metrics.RowsUpserted(model.KindAccount, set.Len())
	return nil
}
