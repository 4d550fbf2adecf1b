package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoint
type HealthHandler struct {
	store   Pinger
	version string
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		logger:  logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Error     string    `json:"error,omitempty"`
}

// ServeHTTP handles health check requests. The store is pinged so a lost
// database connection takes the instance out of rotation.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}

	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		response.Status = "unhealthy"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, status, response, h.logger)
}
