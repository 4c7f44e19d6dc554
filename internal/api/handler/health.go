package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/api/response"
)

// Pinger checks connectivity to a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageChecker reports whether film storage is configured and reachable.
type StorageChecker interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	storage StorageChecker
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, storage StorageChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		storage: storage,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type storageStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
	Storage  storageStatus  `json:"storage"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{Status: "healthy", Version: h.version}

	if err := h.db.Ping(r.Context()); err != nil {
		slog.Warn("health: database ping failed", "error", err)
		data.Status = "degraded"
	} else {
		data.Database.Connected = true
	}

	if h.storage != nil && h.storage.Enabled() {
		data.Storage.Enabled = true
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Warn("health: storage ping failed", "error", err)
			data.Status = "degraded"
		} else {
			data.Storage.Connected = true
		}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
