package api

import (
	"log/slog"
	"net/http"

	"github.com/pluginhub/pluginhub/internal/middleware"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// SourcesHandler reads and replaces the active plugin source set
type SourcesHandler struct {
	svc    PluginService
	logger *slog.Logger
}

func NewSourcesHandler(svc PluginService, logger *slog.Logger) *SourcesHandler {
	return &SourcesHandler{svc: svc, logger: logger}
}

type replaceSourcesRequest struct {
	Sources []string `json:"sources"`
}

// List handles GET /api/v1/sources
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sources := h.svc.PluginSources()
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  sources,
		"total": len(sources),
	})
}

// Replace handles PUT /api/v1/sources
func (h *SourcesHandler) Replace(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeJSON[replaceSourcesRequest](w, r)
	if !ok {
		return
	}

	sources, err := plugins.ParseSources(input.Sources)
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_SOURCE", "Invalid plugin source", err.Error())
		return
	}

	if err := h.svc.SetPluginSources(sources); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to replace plugin sources", "error", err)
		sendError(w, r, http.StatusUnprocessableEntity, "SOURCE_ASSIGNMENT_FAILED", "Plugin sources were not changed", err.Error())
		return
	}

	active := h.svc.PluginSources()
	h.logger.InfoContext(r.Context(), "Plugin sources replaced",
		slog.String("user", middleware.Username(r.Context())),
		slog.Int("sources", len(active)),
	)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"data":  active,
		"total": len(active),
	})
}
