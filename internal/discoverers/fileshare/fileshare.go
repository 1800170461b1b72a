// Package fileshare discovers plugins laid out on a local or mounted
// filesystem as <root>/<plugin-id>/<version>/manifest.{json,yaml}.
package fileshare

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

const Name = "fileshare"

// Adapter binds discoverers to file:// sources
type Adapter struct {
	*discovery.BaseSource
	validator *plugins.ManifestValidator
	logger    *slog.Logger
}

func New(validator *plugins.ManifestValidator, logger *slog.Logger) *Adapter {
	return &Adapter{
		BaseSource: discovery.NewBaseSource(Name, plugins.SourceTypeURI),
		validator:  validator,
		logger:     logger.With("component", "fileshare"),
	}
}

func (a *Adapter) IsSourceSupported(src plugins.Source) bool {
	u := src.URL()
	return u != nil && u.Scheme == "file" && u.Path != ""
}

func (a *Adapter) CreateDiscoverer(src plugins.Source) (discovery.Discoverer, error) {
	if !a.IsSourceSupported(src) {
		return nil, discovery.Unsupported(Name, src)
	}
	return &Discoverer{
		src:       src,
		root:      filepath.FromSlash(src.URL().Path),
		validator: a.validator,
		logger:    a.logger.With("source", src.String()),
	}, nil
}

// Discoverer scans one plugin share directory on every query
type Discoverer struct {
	src       plugins.Source
	root      string
	validator *plugins.ManifestValidator
	logger    *slog.Logger
}

func (d *Discoverer) Source() plugins.Source { return d.src }

func (d *Discoverer) DiscoverLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	found, err := d.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	return plugins.Latest(found), nil
}

func (d *Discoverer) DiscoverAllVersions(ctx context.Context, identity plugins.Identity) ([]plugins.AvailablePlugin, error) {
	found, err := d.scan(ctx, identity.Key())
	if err != nil {
		return nil, err
	}
	return plugins.VersionsOf(found, identity), nil
}

// scan loads every valid manifest under the root. A non-empty only limits
// the scan to the plugin directory with that case-insensitive name.
func (d *Discoverer) scan(ctx context.Context, only string) ([]plugins.AvailablePlugin, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var found []plugins.AvailablePlugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if only != "" && strings.ToLower(entry.Name()) != only {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pluginDir := filepath.Join(d.root, entry.Name())
		versions, err := os.ReadDir(pluginDir)
		if err != nil {
			d.logger.Warn("Failed to read plugin versions", "plugin", entry.Name(), "error", err)
			continue
		}

		for _, version := range versions {
			if !version.IsDir() {
				continue
			}
			p, ok := d.load(entry.Name(), version.Name(), filepath.Join(pluginDir, version.Name()))
			if ok {
				found = append(found, p)
			}
		}
	}

	d.logger.Debug("Plugin share scanned", "plugins", len(found))
	return found, nil
}

// load reads and validates the manifest of one version directory
func (d *Discoverer) load(pluginName, versionName, dir string) (plugins.AvailablePlugin, bool) {
	manifestPath, info := findManifest(dir)
	if manifestPath == "" {
		d.logger.Warn("Manifest not found", "plugin", pluginName, "version", versionName)
		return plugins.AvailablePlugin{}, false
	}

	manifest, err := plugins.LoadManifest(manifestPath)
	if err != nil {
		d.logger.Warn("Failed to load manifest", "plugin", pluginName, "version", versionName, "error", err)
		return plugins.AvailablePlugin{}, false
	}

	if !d.validator.Validate(manifest) {
		d.logger.Warn("Skipping invalid manifest", "path", manifestPath)
		return plugins.AvailablePlugin{}, false
	}

	if !strings.EqualFold(manifest.Identity.ID, pluginName) || manifest.Identity.Version != versionName {
		d.logger.Warn("Manifest does not match its directory",
			"path", manifestPath,
			"id", manifest.Identity.ID,
			"version", manifest.Identity.Version,
		)
		return plugins.AvailablePlugin{}, false
	}

	p := manifest.AvailableAt(d.src, fileURI(manifestPath), fileURI(dir))
	p.PublishedAt = info.ModTime().UTC()
	return p, true
}

func findManifest(dir string) (string, os.FileInfo) {
	for _, name := range plugins.ManifestFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, info
		}
	}
	return "", nil
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
