// Package pgcatalog discovers plugins published into a PostgreSQL catalog
// with "pluginhub catalog publish".
package pgcatalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/database"
	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

const Name = "pgcatalog"

// Adapter binds discoverers to postgres:// and postgresql:// sources
type Adapter struct {
	*discovery.BaseSource
	validator *plugins.ManifestValidator
	logger    *slog.Logger

	// connect opens the catalog behind src and returns its release func
	connect func(src plugins.Source) (database.Querier, func(), error)
}

func New(validator *plugins.ManifestValidator, logger *slog.Logger) *Adapter {
	a := &Adapter{
		BaseSource: discovery.NewBaseSource(Name, plugins.SourceTypeURI),
		validator:  validator,
		logger:     logger.With("component", "pgcatalog"),
	}
	a.connect = a.openPool
	return a
}

func (a *Adapter) IsSourceSupported(src plugins.Source) bool {
	u := src.URL()
	return u != nil && (u.Scheme == "postgres" || u.Scheme == "postgresql")
}

func (a *Adapter) CreateDiscoverer(src plugins.Source) (discovery.Discoverer, error) {
	if !a.IsSourceSupported(src) {
		return nil, discovery.Unsupported(Name, src)
	}

	q, release, err := a.connect(src)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With("source", redacted(src))
	return &Discoverer{
		src:     src,
		catalog: database.NewCatalog(q, a.validator, logger),
		release: release,
	}, nil
}

// openPool builds a lazily connecting pool. Credentials bound to the source
// host are applied on every new connection.
func (a *Adapter) openPool(src plugins.Source) (database.Querier, func(), error) {
	cfg, err := pgxpool.ParseConfig(src.Locator)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog locator: %w", err)
	}

	cfg.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		cred, err := a.Credential(ctx, src)
		if err != nil {
			return err
		}
		if cred != nil && cred.Scheme == credentials.SchemeBasic {
			cc.User = cred.Username
			cc.Password = cred.Password
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return database.New(pool), pool.Close, nil
}

// Discoverer reads one catalog database
type Discoverer struct {
	src     plugins.Source
	catalog *database.Catalog
	release func()
}

func (d *Discoverer) Source() plugins.Source { return d.src }

func (d *Discoverer) DiscoverLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	return d.catalog.ListLatest(ctx, d.src)
}

func (d *Discoverer) DiscoverAllVersions(ctx context.Context, identity plugins.Identity) ([]plugins.AvailablePlugin, error) {
	return d.catalog.ListVersions(ctx, d.src, identity)
}

// Close releases the connection pool
func (d *Discoverer) Close() error {
	if d.release != nil {
		d.release()
	}
	return nil
}

func redacted(src plugins.Source) string {
	if u := src.URL(); u != nil {
		return u.Redacted()
	}
	return src.String()
}
