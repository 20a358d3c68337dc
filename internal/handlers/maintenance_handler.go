package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/picksy/desktop/internal/models"
	"github.com/picksy/desktop/internal/services"
)

// MaintenanceHandler exposes the missing-file sweep
type MaintenanceHandler struct {
	maintenance *services.MaintenanceService
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(maintenance *services.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// GetStatus returns the outcome of the last sweep
func (h *MaintenanceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.maintenance.Status())
}

// RunNow sweeps the library and answers once the sweep is done
func (h *MaintenanceHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	status, err := h.maintenance.RunOnce(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: err.Error()})
		return
	}
	json.NewEncoder(w).Encode(status)
}
