package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// Warning reports one source that failed during a discovery query
type Warning struct {
	Adapter string `json:"adapter"`
	Source  string `json:"source"`
	Error   string `json:"error"`
}

// PluginListResponse is the envelope of every plugin list
type PluginListResponse struct {
	Data     []plugins.AvailablePlugin `json:"data"`
	Total    int                       `json:"total"`
	Warnings []Warning                 `json:"warnings,omitempty"`
}

// PluginsHandler serves discovery queries
type PluginsHandler struct {
	svc    PluginService
	logger *slog.Logger
}

func NewPluginsHandler(svc PluginService, logger *slog.Logger) *PluginsHandler {
	return &PluginsHandler{svc: svc, logger: logger}
}

// Latest handles GET /api/v1/plugins/latest
func (h *PluginsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetAvailablePluginsLatest(r.Context())
	warnings, ok := h.handleDiscoveryError(w, r, err)
	if !ok {
		return
	}

	sendJSON(w, http.StatusOK, PluginListResponse{
		Data:     found,
		Total:    len(found),
		Warnings: warnings,
	})
}

// Versions handles GET /api/v1/plugins/{id}/versions
func (h *PluginsHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || strings.TrimSpace(id) == "" {
		sendError(w, r, http.StatusBadRequest, "INVALID_ID", "Plugin id is required", nil)
		return
	}

	identity := plugins.NewIdentity(id, "")
	found, err := h.svc.GetAllVersionsOfPlugin(r.Context(), &identity)
	warnings, ok := h.handleDiscoveryError(w, r, err)
	if !ok {
		return
	}

	sendJSON(w, http.StatusOK, PluginListResponse{
		Data:     found,
		Total:    len(found),
		Warnings: warnings,
	})
}

// handleDiscoveryError turns partial failures into warnings and writes an
// error response for anything else. It reports whether to continue.
func (h *PluginsHandler) handleDiscoveryError(w http.ResponseWriter, r *http.Request, err error) ([]Warning, bool) {
	if err == nil {
		return nil, true
	}

	var partialErr *discovery.PartialError
	switch {
	case errors.As(err, &partialErr):
		warnings := make([]Warning, len(partialErr.Failures))
		for i, f := range partialErr.Failures {
			warnings[i] = Warning{Adapter: f.Adapter, Source: f.Source.String(), Error: f.Err.Error()}
		}
		h.logger.WarnContext(r.Context(), "Discovery completed with failures", "failed", len(warnings))
		return warnings, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sendError(w, r, http.StatusGatewayTimeout, "DISCOVERY_CANCELLED", "Discovery was cancelled", err.Error())
	case errors.Is(err, discovery.ErrInvalidArgument):
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "Discovery failed", "error", err)
		sendError(w, r, http.StatusInternalServerError, "DISCOVERY_ERROR", "Discovery failed", err.Error())
	}
	return nil, false
}
