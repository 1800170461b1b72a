package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/plugins"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many discoverers GetAvailablePluginsLatest
// queries at once.
const DefaultConcurrency = 8

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConcurrency bounds concurrent discoverer queries. 1 queries the
// discoverers one after another.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// assignment is the list of discoverers one adapter created for the
// current source set.
type assignment struct {
	adapter     DiscovererSource
	discoverers []Discoverer
}

// endpoint is a discoverer together with the adapter that created it
type endpoint struct {
	adapter    string
	discoverer Discoverer
}

// Manager owns the active plugin source set and the discoverers bound to it.
//
// A Manager is not safe for concurrent use: SetPluginSources must not run
// concurrently with any other method. Callers serialise access externally.
type Manager struct {
	sources     []plugins.Source
	assignments []assignment
	concurrency int
	logger      *slog.Logger
}

// NewManager registers adapters in the given order and hands each of them
// the credential providers.
func NewManager(adapters []DiscovererSource, providers []credentials.Provider, opts ...Option) *Manager {
	m := &Manager{
		assignments: make([]assignment, 0, len(adapters)),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "plugins_manager")

	for _, adapter := range adapters {
		adapter.SetupCredentialService(providers)
		m.assignments = append(m.assignments, assignment{adapter: adapter})
	}

	m.logger.Info("Plugins manager initialized",
		"adapters", len(m.assignments),
		"credential_providers", len(providers),
	)
	return m
}

// PluginSources returns a copy of the active source set
func (m *Manager) PluginSources() []plugins.Source {
	return slices.Clone(m.sources)
}

// SetPluginSources replaces the active source set and rebinds discoverers.
// Duplicate sources collapse. The swap is all or nothing: if any discoverer
// cannot be created, the previous sources and discoverers stay in place.
func (m *Manager) SetPluginSources(sources []plugins.Source) error {
	unique := make([]plugins.Source, 0, len(sources))
	seen := make(map[plugins.Source]struct{}, len(sources))
	for _, src := range sources {
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		unique = append(unique, src)
	}

	next, err := m.assign(unique)
	if err != nil {
		return err
	}

	previous := m.assignments
	m.sources = unique
	m.assignments = next
	m.closeAll(previous)

	m.logger.Info("Plugin sources assigned",
		"sources", len(unique),
		"discoverers", len(m.endpoints()),
	)
	return nil
}

// assign builds a fresh assignment for sources without touching the
// current one.
func (m *Manager) assign(sources []plugins.Source) ([]assignment, error) {
	next := make([]assignment, len(m.assignments))

	for i, current := range m.assignments {
		adapter := current.adapter
		next[i] = assignment{adapter: adapter, discoverers: []Discoverer{}}

		for _, src := range sources {
			if src.Type != adapter.SourceType() || !adapter.IsSourceSupported(src) {
				continue
			}

			d, err := adapter.CreateDiscoverer(src)
			if err != nil {
				m.closeAll(next)
				return nil, fmt.Errorf("failed to create %s discoverer for %s: %w", adapter.Name(), src, err)
			}
			next[i].discoverers = append(next[i].discoverers, d)

			m.logger.Debug("Discoverer bound",
				"adapter", adapter.Name(),
				"source", src.String(),
			)
		}
	}

	return next, nil
}

// closeAll releases discoverers holding resources
func (m *Manager) closeAll(assignments []assignment) {
	for _, a := range assignments {
		for _, d := range a.discoverers {
			closer, ok := d.(io.Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil {
				m.logger.Warn("Failed to close discoverer",
					"adapter", a.adapter.Name(),
					"source", d.Source().String(),
					"error", err,
				)
			}
		}
	}
}

// Close releases every discoverer. The manager has no sources afterwards.
func (m *Manager) Close() error {
	m.closeAll(m.assignments)
	for i := range m.assignments {
		m.assignments[i].discoverers = []Discoverer{}
	}
	m.sources = nil
	return nil
}

// Discoverers returns every bound discoverer in assignment order: adapter
// registration order, then creation order within an adapter.
func (m *Manager) Discoverers() []Discoverer {
	eps := m.endpoints()
	out := make([]Discoverer, len(eps))
	for i, ep := range eps {
		out[i] = ep.discoverer
	}
	return out
}

// DiscoverersFor returns the discoverers bound by adapter
func (m *Manager) DiscoverersFor(adapter DiscovererSource) []Discoverer {
	for _, a := range m.assignments {
		if a.adapter == adapter {
			return slices.Clone(a.discoverers)
		}
	}
	return nil
}

func (m *Manager) endpoints() []endpoint {
	var eps []endpoint
	for _, a := range m.assignments {
		for _, d := range a.discoverers {
			eps = append(eps, endpoint{adapter: a.adapter.Name(), discoverer: d})
		}
	}
	return eps
}

// GetAvailablePluginsLatest asks every discoverer for the latest version of
// every plugin it sees and concatenates the results. Results are neither
// deduplicated nor ordered across discoverers.
//
// A failing discoverer does not abort the call: the remaining results are
// returned together with a *PartialError. Cancelling ctx fails the whole call
// with an error wrapping ctx.Err() and discards anything collected so far.
func (m *Manager) GetAvailablePluginsLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery cancelled: %w", err)
	}

	eps := m.endpoints()
	results := make([][]plugins.AvailablePlugin, len(eps))
	failures := make([]*EndpointError, len(eps))

	done := make(chan struct{})
	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(m.concurrency)
		for i, ep := range eps {
			i, ep := i, ep
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				found, err := ep.discoverer.DiscoverLatest(ctx)
				if err != nil {
					failures[i] = &EndpointError{Adapter: ep.adapter, Source: ep.discoverer.Source(), Err: err}
					return nil
				}
				results[i] = found
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("discovery cancelled: %w", ctx.Err())
	case <-done:
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery cancelled: %w", err)
	}

	var all []plugins.AvailablePlugin
	var failed []*EndpointError
	for i := range eps {
		if failures[i] != nil {
			m.logger.WarnContext(ctx, "Discoverer failed",
				slog.String("adapter", failures[i].Adapter),
				slog.String("source", failures[i].Source.String()),
				slog.String("error", failures[i].Err.Error()),
			)
			failed = append(failed, failures[i])
			continue
		}
		all = append(all, results[i]...)
	}
	if all == nil {
		all = []plugins.AvailablePlugin{}
	}

	m.logger.DebugContext(ctx, "Latest plugins discovered",
		slog.Int("discoverers", len(eps)),
		slog.Int("plugins", len(all)),
		slog.Int("failed", len(failed)),
	)
	return all, partial(failed)
}

// GetAllVersionsOfPlugin asks discoverers one at a time, in assignment
// order, for every version of identity. The first non-empty answer wins and
// later discoverers are not queried. No answer at all is an empty result.
//
// Failing discoverers are skipped and reported through a *PartialError next
// to whatever result was found.
func (m *Manager) GetAllVersionsOfPlugin(ctx context.Context, identity *plugins.Identity) ([]plugins.AvailablePlugin, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: plugin identity is required", ErrInvalidArgument)
	}

	var failed []*EndpointError
	for _, ep := range m.endpoints() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discovery cancelled: %w", err)
		}

		found, err := await(ctx, func(ctx context.Context) ([]plugins.AvailablePlugin, error) {
			return ep.discoverer.DiscoverAllVersions(ctx, *identity)
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("discovery cancelled: %w", ctxErr)
		}
		if err != nil {
			m.logger.WarnContext(ctx, "Discoverer failed",
				slog.String("adapter", ep.adapter),
				slog.String("source", ep.discoverer.Source().String()),
				slog.String("plugin", identity.ID),
				slog.String("error", err.Error()),
			)
			failed = append(failed, &EndpointError{Adapter: ep.adapter, Source: ep.discoverer.Source(), Err: err})
			continue
		}

		if len(found) > 0 {
			m.logger.DebugContext(ctx, "Plugin versions found",
				slog.String("plugin", identity.ID),
				slog.String("source", ep.discoverer.Source().String()),
				slog.Int("versions", len(found)),
			)
			return found, partial(failed)
		}
	}

	return []plugins.AvailablePlugin{}, partial(failed)
}

// await runs query and stops waiting for it once ctx is done
func await(ctx context.Context, query func(context.Context) ([]plugins.AvailablePlugin, error)) ([]plugins.AvailablePlugin, error) {
	type result struct {
		found []plugins.AvailablePlugin
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		found, err := query(ctx)
		ch <- result{found, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.found, r.err
	}
}
