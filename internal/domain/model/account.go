package model

// Account is a GitHub user, bot, or organization.
type Account struct {
	ID        string // Local identifier, derived from GitHubID.
	GitHubID  int64
	Login     string
	AvatarURL string
	Kind      AccountKind
}
