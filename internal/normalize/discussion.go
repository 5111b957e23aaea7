package normalize

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// Review maps a pull request review. REST listings report the state in upper
// case ("APPROVED") while webhooks use lower case; rows always store lower case.
func Review(review *gh.PullRequestReview, repoID, prID string) (model.Review, error) {
	if review == nil || review.GetID() == 0 {
		return model.Review{}, malformed("review", "missing id")
	}
	if repoID == "" || prID == "" {
		return model.Review{}, malformed("review", "review %d has no parent pull request", review.GetID())
	}

	content, err := snapshot("review", review)
	if err != nil {
		return model.Review{}, err
	}

	return model.Review{
		ID:            ID(review.GetID()),
		GitHubID:      review.GetID(),
		RepoID:        repoID,
		PullRequestID: prID,
		AuthorID:      userID(review.GetUser()),
		State:         lower(review.GetState()),
		Body:          review.Body,
		CommitID:      review.GetCommitID(),
		Content:       content,
		SubmittedAt:   optionalTimestamp(review.SubmittedAt),
	}, nil
}

// ReviewFromWebhook maps the review carried by a pull_request_review event.
func ReviewFromWebhook(ev *gh.PullRequestReviewEvent) (model.Review, error) {
	if ev == nil {
		return model.Review{}, malformed("review", "missing event")
	}
	return Review(ev.GetReview(), repoIDOf(ev.GetRepo(), ev.GetPullRequest()), idOrEmpty(ev.GetPullRequest().GetID()))
}

// ReviewComment maps an inline review comment.
func ReviewComment(comment *gh.PullRequestComment, repoID, prID string) (model.ReviewComment, error) {
	if comment == nil || comment.GetID() == 0 {
		return model.ReviewComment{}, malformed("review comment", "missing id")
	}
	if repoID == "" || prID == "" {
		return model.ReviewComment{}, malformed("review comment", "comment %d has no parent pull request", comment.GetID())
	}

	content, err := snapshot("review comment", comment)
	if err != nil {
		return model.ReviewComment{}, err
	}

	return model.ReviewComment{
		ID:            ID(comment.GetID()),
		GitHubID:      comment.GetID(),
		RepoID:        repoID,
		PullRequestID: prID,
		ReviewID:      idPtr(comment.GetPullRequestReviewID()),
		AuthorID:      userID(comment.GetUser()),
		Path:          comment.GetPath(),
		DiffHunk:      comment.GetDiffHunk(),
		Body:          comment.GetBody(),
		InReplyToID:   idPtr(comment.GetInReplyTo()),
		Content:       content,
		SubmittedAt:   timestamp(comment.CreatedAt),
		ModifiedAt:    timestamp(comment.UpdatedAt),
	}, nil
}

// ReviewCommentFromWebhook maps the comment carried by a
// pull_request_review_comment event.
func ReviewCommentFromWebhook(ev *gh.PullRequestReviewCommentEvent) (model.ReviewComment, error) {
	if ev == nil {
		return model.ReviewComment{}, malformed("review comment", "missing event")
	}
	return ReviewComment(ev.GetComment(), repoIDOf(ev.GetRepo(), ev.GetPullRequest()), idOrEmpty(ev.GetPullRequest().GetID()))
}

// IssueComment maps a conversation comment on issue, which may be a pull
// request seen through the issues API.
func IssueComment(comment *gh.IssueComment, repoID string, issue *gh.Issue) (model.IssueComment, error) {
	if comment == nil || comment.GetID() == 0 {
		return model.IssueComment{}, malformed("issue comment", "missing id")
	}
	if repoID == "" || issue.GetNumber() == 0 {
		return model.IssueComment{}, malformed("issue comment", "comment %d has no parent issue", comment.GetID())
	}

	content, err := snapshot("issue comment", comment)
	if err != nil {
		return model.IssueComment{}, err
	}

	return model.IssueComment{
		ID:            ID(comment.GetID()),
		GitHubID:      comment.GetID(),
		RepoID:        repoID,
		IssueID:       idOrEmpty(issue.GetID()),
		IssueNumber:   issue.GetNumber(),
		OnPullRequest: issue.IsPullRequest(),
		AuthorID:      userID(comment.GetUser()),
		Body:          comment.GetBody(),
		Content:       content,
		SubmittedAt:   timestamp(comment.CreatedAt),
		ModifiedAt:    timestamp(comment.UpdatedAt),
	}, nil
}

// IssueCommentFromWebhook maps the comment carried by an issue_comment event.
func IssueCommentFromWebhook(ev *gh.IssueCommentEvent) (model.IssueComment, error) {
	if ev == nil {
		return model.IssueComment{}, malformed("issue comment", "missing event")
	}
	return IssueComment(ev.GetComment(), idOrEmpty(ev.GetRepo().GetID()), ev.GetIssue())
}

// repoIDOf prefers the event repository and falls back to the pull request's base.
func repoIDOf(repo *gh.Repository, pr *gh.PullRequest) string {
	if repo.GetID() != 0 {
		return ID(repo.GetID())
	}
	return idOrEmpty(pr.GetBase().GetRepo().GetID())
}

func idOrEmpty(githubID int64) string {
	if githubID == 0 {
		return ""
	}
	return ID(githubID)
}
