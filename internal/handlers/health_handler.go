package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/repository"
	"github.com/picksy/desktop/internal/services"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	photoRepo repository.PhotoRepo
	hub       *services.WebSocketHub
	version   string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(photoRepo repository.PhotoRepo, hub *services.WebSocketHub, version string) *HealthHandler {
	return &HealthHandler{photoRepo: photoRepo, hub: hub, version: version}
}

// HealthCheck reports whether the library database answers, with the number
// of photos and connected windows
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Clients:     h.hub.ClientCount(),
		Subscribers: h.hub.SubscriberCount(contract.SetLibrary.Name()),
		Version:     h.version,
	}

	status := http.StatusOK
	count, err := h.photoRepo.Count(r.Context())
	if err != nil {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	response.Photos = count

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
