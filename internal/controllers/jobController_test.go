package controllers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PMRender/internal/api/dto"
)

func TestHandleJobSuccess(t *testing.T) {
	controller, err := StartJobController(newTestService(t, rendererScript, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{
		"input": map[string]any{
			"audio_b64": base64.StdEncoding.EncodeToString([]byte("fake audio")),
		},
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	controller.HandleJob(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var result dto.JobResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Error != "" {
		t.Fatalf("result error: %q", result.Error)
	}
	decoded, err := base64.StdEncoding.DecodeString(result.BaseVideoB64)
	if err != nil {
		t.Fatalf("base_video_b64 not decodable: %v", err)
	}
	if string(decoded) != "fake mp4 bytes" {
		t.Errorf("decoded video = %q", decoded)
	}
}

func TestHandleJobInvalidJSON(t *testing.T) {
	controller, err := StartJobController(newTestService(t, rendererScript, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	controller.HandleJob(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleJobFailureStaysHTTP200(t *testing.T) {
	controller, err := StartJobController(newTestService(t, rendererScript, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	// Well-formed record, no audio source: the failure belongs in the
	// result record, not the HTTP status.
	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(`{"input":{}}`))
	rec := httptest.NewRecorder()
	controller.HandleJob(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result dto.JobResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Error, "missing audio source") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestHandleJobRequiresToken(t *testing.T) {
	controller, err := StartJobController(newTestService(t, rendererScript, time.Minute), "topsecret")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(`{"input":{}}`))
	rec := httptest.NewRecorder()
	controller.HandleJob(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
