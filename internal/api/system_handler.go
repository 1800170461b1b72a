package api

import (
	"net/http"
	"time"

	"github.com/pluginhub/pluginhub/internal/auth"
)

// Authenticator is implemented by *auth.Service
type Authenticator interface {
	Login(username, password string) (*auth.LoginResponse, error)
}

// SystemHandler handles health and login endpoints
type SystemHandler struct {
	auth Authenticator
	svc  PluginService
}

func NewSystemHandler(authenticator Authenticator, svc PluginService) *SystemHandler {
	return &SystemHandler{auth: authenticator, svc: svc}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Sources   *int      `json:"sources,omitempty"`
}

// Health handles GET /health (liveness probe)
//
//goland:noinspection GoUnusedParameter
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready handles GET /ready and reports how many sources are active
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	n := len(h.svc.PluginSources())
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Sources:   &n,
	})
}

// Login handles POST /api/v1/login
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[auth.LoginRequest](w, r)
	if !ok {
		return
	}

	if req.Username == "" || req.Password == "" {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required", nil)
		return
	}

	response, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		sendError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}

	sendJSON(w, http.StatusOK, response)
}
