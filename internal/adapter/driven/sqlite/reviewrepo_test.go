package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

func TestReviewRepo_Reviews(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	submitted := time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)
	approved := model.Review{
		ID: "7000", GitHubID: 7000, RepoID: "42", PullRequestID: "9001",
		AuthorID: ptr("102"), State: "approved", CommitID: "abc",
		Content: []byte(`{}`), SubmittedAt: &submitted,
	}
	pending := model.Review{
		ID: "6999", GitHubID: 6999, RepoID: "42", PullRequestID: "9001",
		State: "pending", Content: []byte(`{}`),
	}

	require.NoError(t, repo.UpsertReviews(ctx, pending, approved))

	got, err := repo.GetReviewsByPR(ctx, "9001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, approved, got[0])
	assert.Equal(t, "pending", got[1].State)
	assert.Nil(t, got[1].SubmittedAt)

	dismissed := approved
	dismissed.State = "dismissed"
	dismissed.SubmittedAt = nil
	dismissed.CommitID = "def"
	require.NoError(t, repo.UpsertReviews(ctx, dismissed))

	got, err = repo.GetReviewsByPR(ctx, "9001")
	require.NoError(t, err)
	assert.Equal(t, "dismissed", got[0].State)
	assert.Equal(t, "abc", got[0].CommitID)
	require.NotNil(t, got[0].SubmittedAt)
	assert.Equal(t, submitted, *got[0].SubmittedAt)
}

func TestReviewRepo_ReviewComments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	created := time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)
	root := model.ReviewComment{
		ID: "8000", GitHubID: 8000, RepoID: "42", PullRequestID: "9001",
		ReviewID: ptr("7000"), AuthorID: ptr("101"), Path: "main.go",
		DiffHunk: "@@ -1 +1 @@", Body: "nit", Content: []byte(`{}`),
		SubmittedAt: created, ModifiedAt: created,
	}
	reply := root
	reply.ID, reply.GitHubID = "8001", 8001
	reply.InReplyToID = ptr("8000")
	reply.Body = "fixed"
	reply.SubmittedAt = created.Add(time.Minute)
	reply.ModifiedAt = reply.SubmittedAt

	require.NoError(t, repo.UpsertReviewComments(ctx, reply, root))

	edited := root
	edited.Body = "nit: rename"
	edited.ModifiedAt = created.Add(time.Hour)
	require.NoError(t, repo.UpsertReviewComments(ctx, edited))

	got, err := repo.GetReviewCommentsByPR(ctx, "9001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, edited, got[0])
	require.NotNil(t, got[1].InReplyToID)
	assert.Equal(t, "8000", *got[1].InReplyToID)
}

func TestReviewRepo_ReviewCommentPathFollowsRename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	created := time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)
	comment := model.ReviewComment{
		ID: "8000", GitHubID: 8000, RepoID: "42", PullRequestID: "9001",
		AuthorID: ptr("101"), Path: "old/main.go", DiffHunk: "@@ -1 +1 @@",
		Body: "nit", Content: []byte(`{}`), SubmittedAt: created, ModifiedAt: created,
	}
	require.NoError(t, repo.UpsertReviewComments(ctx, comment))

	moved := comment
	moved.Path = "new/main.go"
	moved.DiffHunk = "@@ -2 +2 @@"
	moved.ModifiedAt = created.Add(time.Hour)
	require.NoError(t, repo.UpsertReviewComments(ctx, moved))

	got, err := repo.GetReviewCommentsByPR(ctx, "9001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new/main.go", got[0].Path)
	assert.Equal(t, moved, got[0])
}

func TestReviewRepo_IssueComments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	created := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	onPR := model.IssueComment{
		ID: "8100", GitHubID: 8100, RepoID: "42", IssueID: "600", IssueNumber: 12,
		OnPullRequest: true, AuthorID: ptr("100"), Body: "thanks",
		Content: []byte(`{}`), SubmittedAt: created, ModifiedAt: created,
	}
	onIssue := onPR
	onIssue.ID, onIssue.GitHubID = "8101", 8101
	onIssue.IssueNumber = 3
	onIssue.OnPullRequest = false

	require.NoError(t, repo.UpsertIssueComments(ctx, onPR, onIssue))

	got, err := repo.GetIssueComments(ctx, "42", 12)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, onPR, got[0])

	none, err := repo.GetIssueComments(ctx, "42", 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}
