package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

var (
	ErrInvalidManifest = errors.New("manifest failed validation")
	ErrNotFound        = errors.New("plugin version not found")
)

// Catalog publishes validated manifests into plugin_versions and reads them
// back as available plugins.
type Catalog struct {
	q         Querier
	validator *plugins.ManifestValidator
	logger    *slog.Logger
}

func NewCatalog(q Querier, validator *plugins.ManifestValidator, logger *slog.Logger) *Catalog {
	return &Catalog{
		q:         q,
		validator: validator,
		logger:    logger.With("component", "catalog"),
	}
}

// Publish validates m and stores it, replacing an existing row for the same
// plugin version.
func (c *Catalog) Publish(ctx context.Context, m *plugins.Manifest, packageURI, manifestURI string) error {
	if m == nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, plugins.ErrNilManifest)
	}
	if violations := c.validator.Check(m); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	err = c.q.UpsertPluginVersion(ctx, UpsertPluginVersionParams{
		PluginID:    m.Identity.ID,
		PluginName:  m.DisplayName,
		Version:     m.Identity.Version,
		DisplayName: m.DisplayName,
		Description: m.Description,
		PackageURI:  textOrNull(packageURI),
		ManifestURI: textOrNull(manifestURI),
		Manifest:    raw,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s@%s: %w", m.Identity.ID, m.Identity.Version, err)
	}

	c.logger.InfoContext(ctx, "Plugin version published",
		slog.String("plugin", m.Identity.ID),
		slog.String("version", m.Identity.Version),
	)
	return nil
}

// Unpublish removes one plugin version
func (c *Catalog) Unpublish(ctx context.Context, pluginID, version string) error {
	n, err := c.q.DeletePluginVersion(ctx, pluginID, version)
	if err != nil {
		return fmt.Errorf("failed to unpublish %s@%s: %w", pluginID, version, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s@%s", ErrNotFound, pluginID, version)
	}
	return nil
}

// ListLatest returns the highest version of every plugin in the catalog,
// attributed to src.
func (c *Catalog) ListLatest(ctx context.Context, src plugins.Source) ([]plugins.AvailablePlugin, error) {
	rows, err := c.q.ListPluginVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin versions: %w", err)
	}
	return plugins.Latest(toAvailable(rows, src)), nil
}

// ListVersions returns every version of identity, newest first
func (c *Catalog) ListVersions(ctx context.Context, src plugins.Source, identity plugins.Identity) ([]plugins.AvailablePlugin, error) {
	rows, err := c.q.ListPluginVersionsByID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", identity.ID, err)
	}
	return plugins.VersionsOf(toAvailable(rows, src), identity), nil
}

// Available converts the row into the AvailablePlugin it describes at src
func (v PluginVersion) Available(src plugins.Source) plugins.AvailablePlugin {
	p := plugins.AvailablePlugin{
		Identity:    plugins.NewIdentity(v.PluginID, v.PluginName),
		Version:     v.Version,
		DisplayName: v.DisplayName,
		Description: v.Description,
		Source:      src,
		PackageURI:  v.PackageURI.String,
		ManifestURI: v.ManifestURI.String,
	}
	if v.PublishedAt.Valid {
		p.PublishedAt = v.PublishedAt.Time
	}
	return p
}

func toAvailable(rows []PluginVersion, src plugins.Source) []plugins.AvailablePlugin {
	out := make([]plugins.AvailablePlugin, len(rows))
	for i, row := range rows {
		out[i] = row.Available(src)
	}
	return out
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
