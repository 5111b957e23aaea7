package normalize

import (
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/model"
)

// Account maps a GitHub user, bot, or organization reference. Bare references
// such as {"id": 7} leave Login, AvatarURL, and Kind empty, meaning unknown.
func Account(u *gh.User) (model.Account, error) {
	if u == nil || u.GetID() == 0 {
		return model.Account{}, malformed("account", "missing id")
	}

	return model.Account{
		ID:        ID(u.GetID()),
		GitHubID:  u.GetID(),
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
		Kind:      accountKind(u.GetType()),
	}, nil
}

// AccountFromInstallation maps the account that installed the GitHub App.
// Installation payloads carry the full account, so no follow-up fetch is needed.
func AccountFromInstallation(inst *gh.Installation) (model.Account, error) {
	if inst == nil {
		return model.Account{}, malformed("account", "missing installation")
	}
	return Account(inst.GetAccount())
}

// AccountFromOrganization maps the organization object carried by
// organization-scoped events.
func AccountFromOrganization(org *gh.Organization) (model.Account, error) {
	if org == nil || org.GetID() == 0 {
		return model.Account{}, malformed("account", "missing organization id")
	}

	return model.Account{
		ID:        ID(org.GetID()),
		GitHubID:  org.GetID(),
		Login:     org.GetLogin(),
		AvatarURL: org.GetAvatarURL(),
		Kind:      model.AccountKindOrganization,
	}, nil
}

// accountKind maps GitHub's "User", "Bot", and "Organization" type strings.
// A missing type is unknown; any other type is treated as a user.
func accountKind(t string) model.AccountKind {
	switch lower(t) {
	case "":
		return ""
	case "bot":
		return model.AccountKindBot
	case "organization":
		return model.AccountKindOrganization
	default:
		return model.AccountKindUser
	}
}

// AccountSet collects distinct accounts referenced across payloads, keeping
// first-seen order and the most recently added known data for each ID.
type AccountSet struct {
	order []string
	byID  map[string]model.Account
}

// NewAccountSet creates an empty AccountSet.
func NewAccountSet() *AccountSet {
	return &AccountSet{byID: make(map[string]model.Account)}
}

// Add records each non-nil user. References without an ID are skipped.
func (s *AccountSet) Add(users ...*gh.User) {
	for _, u := range users {
		account, err := Account(u)
		if err != nil {
			continue
		}
		prev, ok := s.byID[account.ID]
		if !ok {
			s.order = append(s.order, account.ID)
		}
		s.byID[account.ID] = mergeAccount(prev, account)
	}
}

// mergeAccount overlays the known fields of next onto prev.
func mergeAccount(prev, next model.Account) model.Account {
	if next.Login == "" {
		next.Login = prev.Login
	}
	if next.AvatarURL == "" {
		next.AvatarURL = prev.AvatarURL
	}
	if next.Kind == "" {
		next.Kind = prev.Kind
	}
	return next
}

// AddPullRequest records the author, assignees, and requested reviewers of pr.
func (s *AccountSet) AddPullRequest(pr *gh.PullRequest) {
	if pr == nil {
		return
	}
	s.Add(pr.GetUser(), pr.GetAssignee())
	s.Add(pr.Assignees...)
	s.Add(pr.RequestedReviewers...)
}

// AddIssue records the author and assignees of issue.
func (s *AccountSet) AddIssue(issue *gh.Issue) {
	if issue == nil {
		return
	}
	s.Add(issue.GetUser(), issue.GetAssignee())
	s.Add(issue.Assignees...)
}

// Len returns the number of distinct accounts collected.
func (s *AccountSet) Len() int {
	return len(s.order)
}

// Accounts returns the collected accounts in first-seen order.
func (s *AccountSet) Accounts() []model.Account {
	accounts := make([]model.Account, 0, len(s.order))
	for _, id := range s.order {
		accounts = append(accounts, s.byID[id])
	}
	return accounts
}

// AccountsFromPullRequests returns every distinct account referenced as
// author, assignee, or requested reviewer across prs.
func AccountsFromPullRequests(prs []*gh.PullRequest) []model.Account {
	set := NewAccountSet()
	for _, pr := range prs {
		set.AddPullRequest(pr)
	}
	return set.Accounts()
}
