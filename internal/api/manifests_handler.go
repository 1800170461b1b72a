package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/pluginhub/pluginhub/internal/plugins"
)

const maxManifestBytes = maxBodyBytes

// ManifestsHandler validates submitted manifests
type ManifestsHandler struct {
	validator *plugins.ManifestValidator
}

func NewManifestsHandler(validator *plugins.ManifestValidator) *ManifestsHandler {
	return &ManifestsHandler{validator: validator}
}

// ValidationResponse lists every violated manifest constraint
type ValidationResponse struct {
	Valid      bool                `json:"valid"`
	Violations []plugins.Violation `json:"violations"`
}

// Validate handles POST /api/v1/manifests/validate. YAML bodies are
// accepted when the content type says so.
func (h *ManifestsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes+1))
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Failed to read body", err.Error())
		return
	}
	if len(data) > maxManifestBytes {
		sendError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Manifest exceeds 1 MiB", nil)
		return
	}

	var manifest *plugins.Manifest
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		manifest, err = plugins.DecodeManifestYAML(data)
	} else {
		manifest, err = plugins.DecodeManifestJSON(data)
	}
	if err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_MANIFEST", "Manifest could not be parsed", err.Error())
		return
	}

	violations := h.validator.Check(manifest)
	if violations == nil {
		violations = []plugins.Violation{}
	}

	sendJSON(w, http.StatusOK, ValidationResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}
