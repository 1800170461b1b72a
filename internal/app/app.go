// Package app assembles the discovery stack from configuration. The server
// and the CLI share it so both see the same adapters and credentials.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pluginhub/pluginhub/internal/config"
	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/discoverers/fileshare"
	"github.com/pluginhub/pluginhub/internal/discoverers/httpindex"
	"github.com/pluginhub/pluginhub/internal/discoverers/pgcatalog"
	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// Stack is the assembled discovery stack
type Stack struct {
	Manager   *discovery.Manager
	Validator *plugins.ManifestValidator
	Adapters  []discovery.DiscovererSource
}

// Providers builds credential providers in lookup order: static entries,
// then the vault, then token minters.
func Providers(cfg *config.CredentialsConfig) ([]credentials.Provider, error) {
	var providers []credentials.Provider

	if len(cfg.Static) > 0 {
		providers = append(providers, credentials.NewStaticProvider("static", cfg.StaticEntries()))
	}

	if cfg.Vault.Path != "" {
		vault, err := credentials.OpenVault("vault", cfg.Vault.Path, cfg.Vault.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential vault: %w", err)
		}
		providers = append(providers, vault)
	}

	for i, t := range cfg.Tokens {
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("token-%d", i)
		}
		p, err := credentials.NewTokenProvider(name, t.Secret, t.Subject, t.TTL(), t.Hosts)
		if err != nil {
			return nil, fmt.Errorf("token provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}

	return providers, nil
}

// Adapters returns the registered adapters in registration order
func Adapters(cfg *config.DiscoveryConfig, validator *plugins.ManifestValidator, logger *slog.Logger) []discovery.DiscovererSource {
	client := &http.Client{Timeout: cfg.HTTPTimeout()}
	if cfg.HTTPTimeoutMS <= 0 {
		client.Timeout = httpindex.DefaultTimeout
	}

	return []discovery.DiscovererSource{
		fileshare.New(validator, logger),
		httpindex.New(client, logger),
		pgcatalog.New(validator, logger),
	}
}

// Build assembles the stack and assigns the configured sources
func Build(cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	sources, err := cfg.Discovery.PluginSources()
	if err != nil {
		return nil, fmt.Errorf("invalid discovery sources: %w", err)
	}
	return BuildWithSources(cfg, sources, logger)
}

// BuildWithSources is Build with an explicit source set
func BuildWithSources(cfg *config.Config, sources []plugins.Source, logger *slog.Logger) (*Stack, error) {
	providers, err := Providers(&cfg.Credentials)
	if err != nil {
		return nil, err
	}

	validator := plugins.NewManifestValidator(logger)
	adapters := Adapters(&cfg.Discovery, validator, logger)

	manager := discovery.NewManager(adapters, providers,
		discovery.WithLogger(logger),
		discovery.WithConcurrency(cfg.Discovery.Concurrency),
	)
	if err := manager.SetPluginSources(sources); err != nil {
		manager.Close()
		return nil, fmt.Errorf("failed to assign plugin sources: %w", err)
	}

	return &Stack{
		Manager:   manager,
		Validator: validator,
		Adapters:  adapters,
	}, nil
}

// Close releases every discoverer of the stack
func (s *Stack) Close() error {
	return s.Manager.Close()
}
