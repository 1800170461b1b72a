// Package httpindex discovers plugins published by another pluginhub server
// over its HTTP API.
package httpindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

const (
	Name           = "httpindex"
	DefaultTimeout = 10 * time.Second

	latestPath   = "/api/v1/plugins/latest"
	versionsPath = "/api/v1/plugins/%s/versions"
)

// Adapter binds discoverers to http:// and https:// sources
type Adapter struct {
	*discovery.BaseSource
	client *http.Client
	logger *slog.Logger
}

// New returns an adapter issuing requests through client. A nil client
// gets a dedicated one with DefaultTimeout.
func New(client *http.Client, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Adapter{
		BaseSource: discovery.NewBaseSource(Name, plugins.SourceTypeURI),
		client:     client,
		logger:     logger.With("component", "httpindex"),
	}
}

func (a *Adapter) IsSourceSupported(src plugins.Source) bool {
	u := src.URL()
	return u != nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (a *Adapter) CreateDiscoverer(src plugins.Source) (discovery.Discoverer, error) {
	if !a.IsSourceSupported(src) {
		return nil, discovery.Unsupported(Name, src)
	}

	base := src.URL()
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	return &Discoverer{
		src:         src,
		base:        base.String(),
		client:      a.client,
		credentials: a.Credential,
		logger:      a.logger.With("source", src.String()),
	}, nil
}

// Discoverer queries one remote plugin index
type Discoverer struct {
	src         plugins.Source
	base        string
	client      *http.Client
	credentials func(ctx context.Context, src plugins.Source) (*credentials.Credential, error)
	logger      *slog.Logger
}

// pluginsResponse is the list envelope served by the plugin API
type pluginsResponse struct {
	Data []plugins.AvailablePlugin `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (d *Discoverer) Source() plugins.Source { return d.src }

func (d *Discoverer) DiscoverLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	found, err := d.list(ctx, latestPath)
	if err != nil {
		return nil, err
	}
	return plugins.Latest(found), nil
}

func (d *Discoverer) DiscoverAllVersions(ctx context.Context, identity plugins.Identity) ([]plugins.AvailablePlugin, error) {
	found, err := d.list(ctx, fmt.Sprintf(versionsPath, url.PathEscape(identity.ID)))
	if err != nil {
		return nil, err
	}
	return plugins.VersionsOf(found, identity), nil
}

// list fetches one plugin list. A 404 is an empty list.
func (d *Discoverer) list(ctx context.Context, path string) ([]plugins.AvailablePlugin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	cred, err := d.credentials(ctx, d.src)
	if err != nil {
		return nil, err
	}
	cred.Apply(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []plugins.AvailablePlugin{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(path, resp)
	}

	var body pluginsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	for i := range body.Data {
		body.Data[i].Source = d.src
	}

	d.logger.DebugContext(ctx, "Remote index queried",
		slog.String("path", path),
		slog.Int("plugins", len(body.Data)),
	)
	return body.Data, nil
}

func statusError(path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var envelope errorResponse
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s returned %d: %s (%s)", path, resp.StatusCode, envelope.Error.Message, envelope.Error.Code)
	}
	return fmt.Errorf("%s returned %d", path, resp.StatusCode)
}
