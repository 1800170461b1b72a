package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PluginVersion is one row of plugin_versions
type PluginVersion struct {
	PluginID    string             `db:"plugin_id"`
	PluginName  string             `db:"plugin_name"`
	Version     string             `db:"version"`
	DisplayName string             `db:"display_name"`
	Description string             `db:"description"`
	PackageURI  pgtype.Text        `db:"package_uri"`
	ManifestURI pgtype.Text        `db:"manifest_uri"`
	Manifest    []byte             `db:"manifest"`
	PublishedAt pgtype.Timestamptz `db:"published_at"`
}

type UpsertPluginVersionParams struct {
	PluginID    string
	PluginName  string
	Version     string
	DisplayName string
	Description string
	PackageURI  pgtype.Text
	ManifestURI pgtype.Text
	Manifest    []byte
}

// Querier is the catalog's query surface
type Querier interface {
	UpsertPluginVersion(ctx context.Context, arg UpsertPluginVersionParams) error
	ListPluginVersions(ctx context.Context) ([]PluginVersion, error)
	ListPluginVersionsByID(ctx context.Context, pluginID string) ([]PluginVersion, error)
	DeletePluginVersion(ctx context.Context, pluginID, version string) (int64, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

var _ Querier = (*Queries)(nil)

const upsertPluginVersion = `
INSERT INTO plugin_versions (
    plugin_id, plugin_name, version, display_name, description, package_uri, manifest_uri, manifest
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (plugin_id, version) DO UPDATE SET
    plugin_name  = EXCLUDED.plugin_name,
    display_name = EXCLUDED.display_name,
    description  = EXCLUDED.description,
    package_uri  = EXCLUDED.package_uri,
    manifest_uri = EXCLUDED.manifest_uri,
    manifest     = EXCLUDED.manifest,
    published_at = now()`

func (q *Queries) UpsertPluginVersion(ctx context.Context, arg UpsertPluginVersionParams) error {
	_, err := q.db.Exec(ctx, upsertPluginVersion,
		arg.PluginID,
		arg.PluginName,
		arg.Version,
		arg.DisplayName,
		arg.Description,
		arg.PackageURI,
		arg.ManifestURI,
		arg.Manifest,
	)
	return err
}

const selectPluginVersions = `
SELECT plugin_id, plugin_name, version, display_name, description, package_uri, manifest_uri, manifest, published_at
FROM plugin_versions`

func (q *Queries) ListPluginVersions(ctx context.Context) ([]PluginVersion, error) {
	rows, err := q.db.Query(ctx, selectPluginVersions+" ORDER BY plugin_id, published_at")
	if err != nil {
		return nil, err
	}
	return collectPluginVersions(rows)
}

func (q *Queries) ListPluginVersionsByID(ctx context.Context, pluginID string) ([]PluginVersion, error) {
	rows, err := q.db.Query(ctx, selectPluginVersions+" WHERE lower(plugin_id) = lower($1) ORDER BY published_at", pluginID)
	if err != nil {
		return nil, err
	}
	return collectPluginVersions(rows)
}

const deletePluginVersion = `DELETE FROM plugin_versions WHERE plugin_id = $1 AND version = $2`

func (q *Queries) DeletePluginVersion(ctx context.Context, pluginID, version string) (int64, error) {
	tag, err := q.db.Exec(ctx, deletePluginVersion, pluginID, version)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectPluginVersions(rows pgx.Rows) ([]PluginVersion, error) {
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[PluginVersion])
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugin versions: %w", err)
	}
	return items, nil
}
