package controllers

import (
	"encoding/json"
	"net/http"

	"PMRender/internal/api/dto"
	"PMRender/internal/services"
)

type HealthController struct {
	renderService *services.RenderService
}

func StartHealthController(renderService *services.RenderService) (*HealthController, error) {
	return &HealthController{renderService: renderService}, nil
}

// HandleHealth reports liveness and current render load.
func (c *HealthController) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dto.HealthResponse{
		Status:        "ok",
		ActiveRenders: c.renderService.ActiveRenders(),
		MaxConcurrent: c.renderService.MaxConcurrent(),
	})
}
