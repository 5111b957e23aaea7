package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClientFactory = (*Factory)(nil)

// ErrAppNotConfigured is returned when no GitHub App credentials were supplied.
var ErrAppNotConfigured = errors.New("github app credentials not configured")

// Factory builds installation-scoped clients for one GitHub App.
type Factory struct {
	appID      int64
	privateKey []byte
	baseURL    string // Empty for github.com; an enterprise API URL otherwise.
	apps       *gh.Client
}

// NewFactory validates the App credentials and returns a Factory. baseURL may
// be empty to target github.com.
func NewFactory(appID int64, privateKey []byte, baseURL string) (*Factory, error) {
	if appID == 0 || len(privateKey) == 0 {
		return nil, ErrAppNotConfigured
	}

	appsTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("create app transport: %w", err)
	}

	f := &Factory{
		appID:      appID,
		privateKey: privateKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}

	if f.baseURL != "" {
		appsTransport.BaseURL = f.baseURL
	}

	f.apps, err = f.newGitHubClient(&http.Client{Transport: appsTransport})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// ForInstallation creates a client authenticated as the given installation,
// with the following transport stack:
//  1. httpcache (ETag-based conditional request caching, one cache per installation)
//  2. ghinstallation (installation access token, refreshed before expiry)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github (GitHub REST API client)
func (f *Factory) ForInstallation(installationID int64) (driven.GitHubClient, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()

	itr, err := ghinstallation.New(cacheTransport, f.appID, installationID, f.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create installation %d transport: %w", installationID, err)
	}
	if f.baseURL != "" {
		itr.BaseURL = f.baseURL
	}

	client, err := f.newGitHubClient(github_ratelimit.NewClient(itr))
	if err != nil {
		return nil, err
	}

	return &Client{gh: client, installationID: installationID}, nil
}

// Installation fetches an installation using App-level authentication.
func (f *Factory) Installation(ctx context.Context, installationID int64) (*gh.Installation, error) {
	inst, resp, err := f.apps.Apps.GetInstallation(ctx, installationID)
	if err != nil {
		return nil, classify(fmt.Sprintf("fetching installation %d", installationID), err)
	}

	logRateLimit(resp, "app/installations", 0, 1)

	return inst, nil
}

func (f *Factory) newGitHubClient(httpClient *http.Client) (*gh.Client, error) {
	client := gh.NewClient(httpClient)
	if f.baseURL == "" {
		return client, nil
	}

	client, err := client.WithEnterpriseURLs(f.baseURL, f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("configure enterprise URL %q: %w", f.baseURL, err)
	}
	return client, nil
}
