package api

import (
	"context"
	"sync"

	"github.com/pluginhub/pluginhub/internal/plugins"
)

// PluginService is the discovery surface the API serves. *discovery.Manager
// implements it.
type PluginService interface {
	PluginSources() []plugins.Source
	SetPluginSources(sources []plugins.Source) error
	GetAvailablePluginsLatest(ctx context.Context) ([]plugins.AvailablePlugin, error)
	GetAllVersionsOfPlugin(ctx context.Context, identity *plugins.Identity) ([]plugins.AvailablePlugin, error)
}

// lockedService lets queries run concurrently while a source update holds
// the service exclusively.
type lockedService struct {
	mu  sync.RWMutex
	svc PluginService
}

// Synchronized wraps svc for use by concurrent HTTP handlers
func Synchronized(svc PluginService) PluginService {
	return &lockedService{svc: svc}
}

func (l *lockedService) PluginSources() []plugins.Source {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.PluginSources()
}

func (l *lockedService) SetPluginSources(sources []plugins.Source) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.svc.SetPluginSources(sources)
}

func (l *lockedService) GetAvailablePluginsLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.GetAvailablePluginsLatest(ctx)
}

func (l *lockedService) GetAllVersionsOfPlugin(ctx context.Context, identity *plugins.Identity) ([]plugins.AvailablePlugin, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.GetAllVersionsOfPlugin(ctx, identity)
}
