package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/pluginhub/pluginhub/internal/plugins"
)

// StaticProvider serves fixed credentials keyed by source host
type StaticProvider struct {
	name    string
	entries map[string]Credential
}

// NewStaticProvider creates a provider from host -> credential entries
func NewStaticProvider(name string, entries map[string]Credential) *StaticProvider {
	normalized := make(map[string]Credential, len(entries))
	for host, cred := range entries {
		normalized[strings.ToLower(host)] = cred
	}
	return &StaticProvider{name: name, entries: normalized}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Supports(src plugins.Source) bool {
	_, ok := p.entries[src.Host()]
	return ok
}

func (p *StaticProvider) Credential(_ context.Context, src plugins.Source) (*Credential, error) {
	cred, ok := p.entries[src.Host()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, src)
	}
	return &cred, nil
}
