package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"PMRender/internal/api/dto"
	customErrors "PMRender/internal/models/errors"
	"PMRender/internal/services"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to disk.
const maxMultipartMemory = 64 << 20

// errorTailBytes bounds the stdout/stderr tails attached to error bodies.
const errorTailBytes = 2000

// headerTailBytes bounds the stream tails returned as response headers.
const headerTailBytes = 512

// formFields are the JobConfig keys accepted as plain form values.
var formFields = []string{
	"audio_url",
	"audio_filename",
	"timeline_ini",
	"timeline_url",
	"video_width",
	"video_height",
	"fps",
	"bitrate_kbps",
	"mesh",
	"encoder_speed",
	"preset_duration",
	"timeout_sec",
}

type RenderController struct {
	renderService *services.RenderService
	authToken     string
}

func StartRenderController(renderService *services.RenderService, authToken string) (*RenderController, error) {
	return &RenderController{
		renderService: renderService,
		authToken:     authToken,
	}, nil
}

// HandleRender accepts a multipart render request and answers with the
// rendered video bytes, or a structured JSON error.
func (c *RenderController) HandleRender(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, c.authToken) {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	input := map[string]any{}
	for _, key := range formFields {
		if value := r.FormValue(key); value != "" {
			input[key] = value
		}
	}

	job, err := c.renderService.ParseJob(input)
	if err != nil {
		writeRenderError(w, err)
		return
	}

	// Audio precedence: audio_url, then the uploaded file.
	if job.AudioURL == "" {
		if file, header, err := r.FormFile("audio_file"); err == nil {
			data, readErr := io.ReadAll(file)
			file.Close()
			if readErr != nil {
				writeJSONError(w, http.StatusBadRequest, "failed to read audio_file: "+readErr.Error())
				return
			}
			job.AudioData = data
			if header.Filename != "" {
				job.AudioFilename = header.Filename
			}
		}
	}

	// Timeline precedence: url, then uploaded file, then inline text.
	if job.TimelineURL == "" {
		if file, _, err := r.FormFile("timeline_file"); err == nil {
			data, readErr := io.ReadAll(file)
			file.Close()
			if readErr != nil {
				writeJSONError(w, http.StatusBadRequest, "failed to read timeline_file: "+readErr.Error())
				return
			}
			job.TimelineINI = string(data)
		}
	}

	if !job.HasAudio() {
		writeJSONError(w, http.StatusBadRequest, "must supply audio_file or audio_url")
		return
	}

	result, err := c.renderService.Execute(r.Context(), job)
	if err != nil {
		writeRenderError(w, err)
		return
	}
	defer result.Cleanup()

	w.Header().Set("X-Convert-Stdout", headerValue(result.Stdout, headerTailBytes))
	w.Header().Set("X-Convert-Stderr", headerValue(result.Stderr, headerTailBytes))
	w.Header().Set("Content-Disposition", `attachment; filename="output.mp4"`)
	http.ServeFile(w, r, result.VideoPath)
}

// writeRenderError maps the failure taxonomy onto HTTP statuses.
func writeRenderError(w http.ResponseWriter, err error) {
	re := customErrors.AsRender(err)

	status := http.StatusInternalServerError
	switch re.Kind {
	case customErrors.KindInput, customErrors.KindDownload:
		status = http.StatusBadRequest
	case customErrors.KindTimeout:
		status = http.StatusGatewayTimeout
	case customErrors.KindBusy:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:  re.Error(),
		Stdout: tail(re.Stdout, errorTailBytes),
		Stderr: tail(re.Stderr, errorTailBytes),
	})
}
