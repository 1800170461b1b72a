package discovery

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// BaseSource carries the parts every adapter shares: its name, the source
// type it accepts and the credential providers handed to it. Embed a *BaseSource and
// implement IsSourceSupported and CreateDiscoverer.
type BaseSource struct {
	name       string
	sourceType plugins.SourceType

	mu        sync.Mutex
	providers []credentials.Provider
	bound     map[string]func() credentials.Provider
}

// NewBaseSource returns a BaseSource for adapters accepting sourceType.
func NewBaseSource(name string, sourceType plugins.SourceType) *BaseSource {
	return &BaseSource{name: name, sourceType: sourceType}
}

func (b *BaseSource) Name() string { return b.name }

func (b *BaseSource) SourceType() plugins.SourceType { return b.sourceType }

func (b *BaseSource) SetupCredentialService(providers []credentials.Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = slices.Clone(providers)
	b.bound = make(map[string]func() credentials.Provider)
}

// CredentialProvider returns the provider bound to src's authority. The
// provider is selected on first use and memoised per authority; nil means
// no provider serves the source.
func (b *BaseSource) CredentialProvider(src plugins.Source) credentials.Provider {
	host := src.Host()

	b.mu.Lock()
	if b.bound == nil {
		b.bound = make(map[string]func() credentials.Provider)
	}
	resolve, ok := b.bound[host]
	if !ok {
		providers := b.providers
		resolve = sync.OnceValue(func() credentials.Provider {
			return credentials.Select(providers, src)
		})
		b.bound[host] = resolve
	}
	b.mu.Unlock()

	return resolve()
}

// Credential resolves the credential for src through the bound provider.
// Sources without a provider get a nil credential and no error.
func (b *BaseSource) Credential(ctx context.Context, src plugins.Source) (*credentials.Credential, error) {
	provider := b.CredentialProvider(src)
	if provider == nil {
		return nil, nil
	}

	cred, err := provider.Credential(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("credential provider %s: %w", provider.Name(), err)
	}
	return cred, nil
}

// Unsupported is the error concrete adapters return from CreateDiscoverer
// when called with a source they do not support.
func Unsupported(adapter string, src plugins.Source) error {
	return fmt.Errorf("%w: %s cannot discover plugins at %s", ErrUnsupportedSource, adapter, src)
}
