package application

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// ErrNoClientFactory is returned when installation clients are requested but
// no GitHub App is configured.
var ErrNoClientFactory = errors.New("no github app configured")

// InstallationClients caches one GitHub client per installation. Entries live
// until the installation is deleted or suspended (Invalidate) or the whole
// cache is dropped (Reset).
type InstallationClients struct {
	mu      sync.RWMutex
	factory driven.GitHubClientFactory
	clients map[int64]driven.GitHubClient
}

// NewInstallationClients creates an empty cache. factory may be nil when no
// GitHub App credentials are available; Get then returns ErrNoClientFactory.
func NewInstallationClients(factory driven.GitHubClientFactory) *InstallationClients {
	return &InstallationClients{
		factory: factory,
		clients: make(map[int64]driven.GitHubClient),
	}
}

// Get returns the cached client for the installation, creating it on first use.
func (c *InstallationClients) Get(installationID int64) (driven.GitHubClient, error) {
	c.mu.RLock()
	client, ok := c.clients[installationID]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	if c.factory == nil {
		return nil, ErrNoClientFactory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[installationID]; ok {
		return client, nil
	}

	client, err := c.factory.ForInstallation(installationID)
	if err != nil {
		return nil, fmt.Errorf("create client for installation %d: %w", installationID, err)
	}
	c.clients[installationID] = client

	return client, nil
}

// Invalidate drops the cached client for an installation.
func (c *InstallationClients) Invalidate(installationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, installationID)
}

// Reset drops every cached client.
func (c *InstallationClients) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.clients)
}

// Len returns the number of cached clients.
func (c *InstallationClients) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}
