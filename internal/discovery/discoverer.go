// Package discovery aggregates plugin discovery across heterogeneous
// sources.
//
// A DiscovererSource is a registered adapter that knows one kind of plugin
// source. Whenever the active source set changes, the Manager asks every
// adapter which sources it supports and binds one Discoverer per supported
// source. Discovery queries then fan out over those discoverers.
package discovery

import (
	"context"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// Discoverer queries one bound plugin source.
type Discoverer interface {
	// Source is the source this discoverer was created for.
	Source() plugins.Source

	// DiscoverLatest returns the latest version of every plugin visible at
	// the source.
	DiscoverLatest(ctx context.Context) ([]plugins.AvailablePlugin, error)

	// DiscoverAllVersions returns every version of identity visible at the
	// source. An unknown plugin yields an empty result, not an error.
	DiscoverAllVersions(ctx context.Context, identity plugins.Identity) ([]plugins.AvailablePlugin, error)
}

// DiscovererSource tests sources for support and binds discoverers to them.
type DiscovererSource interface {
	// Name identifies the adapter in logs and errors.
	Name() string

	// SourceType is the only source type this adapter is offered.
	SourceType() plugins.SourceType

	// IsSourceSupported must be free of side effects.
	IsSourceSupported(src plugins.Source) bool

	// CreateDiscoverer binds a discoverer to src. Callers must only pass
	// sources for which IsSourceSupported returned true.
	CreateDiscoverer(src plugins.Source) (Discoverer, error)

	// SetupCredentialService hands the adapter every available credential
	// provider. It is called once, before any discoverer is created.
	SetupCredentialService(providers []credentials.Provider)
}
