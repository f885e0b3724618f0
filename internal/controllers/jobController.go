package controllers

import (
	"encoding/json"
	"net/http"

	"PMRender/internal/api/dto"
	"PMRender/internal/services"
)

type JobController struct {
	renderService *services.RenderService
	authToken     string
}

func StartJobController(renderService *services.RenderService, authToken string) (*JobController, error) {
	return &JobController{
		renderService: renderService,
		authToken:     authToken,
	}, nil
}

// HandleJob runs one serverless-style job record synchronously. Failures
// are reported inside the result record, so the HTTP status is 200 for
// every well-formed request.
func (c *JobController) HandleJob(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, c.authToken) {
		return
	}

	var req dto.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	defer r.Body.Close()

	result := c.renderService.Handle(r.Context(), req.Input)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}
