package controllers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PMRender/internal/api/dto"
	"PMRender/internal/models/configs"
	"PMRender/internal/services"
)

// fake renderer: scans "$@" for -o and writes a placeholder video there.
const rendererScript = `#!/bin/sh
echo conversion log line
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
printf 'fake mp4 bytes' > "$out"
`

func newTestService(t *testing.T, script string, timeout time.Duration) *services.RenderService {
	t.Helper()
	binary := filepath.Join(t.TempDir(), "convert.sh")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	fetchService, err := services.StartFetchService(configs.FetchServiceConfig{RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	uploadService, err := services.StartUploadService(configs.UploadServiceConfig{})
	if err != nil {
		t.Fatal(err)
	}

	svc, err := services.StartRenderService(configs.RenderServiceConfig{
		WorkDir:             t.TempDir(),
		ConvertBinary:       binary,
		PresetDir:           "/presets",
		TextureDir:          "/textures",
		OutputName:          "output.mp4",
		MaxConcurrent:       2,
		DefaultMesh:         "320x240",
		DefaultEncoderSpeed: "veryfast",
		DefaultTimeout:      timeout,
	}, fetchService, uploadService)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

// multipartBody builds a render request with the given form values plus an
// uploaded audio file.
func multipartBody(t *testing.T, fields map[string]string, audioName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	if audioName != "" {
		part, err := writer.CreateFormFile("audio_file", audioName)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("ID3 fake audio"))
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHandleRenderRequiresToken(t *testing.T) {
	controller, err := StartRenderController(newTestService(t, rendererScript, time.Minute), "topsecret")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, nil, "a.mp3")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Wrong token is also rejected.
	body, contentType = multipartBody(t, nil, "a.mp3")
	req = httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleRenderMissingAudio(t *testing.T) {
	controller, err := StartRenderController(newTestService(t, rendererScript, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, map[string]string{"fps": "30"}, "")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Error, "audio_file or audio_url") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHandleRenderSuccess(t *testing.T) {
	controller, err := StartRenderController(newTestService(t, rendererScript, time.Minute), "topsecret")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, map[string]string{"video_width": "1280", "video_height": "720"}, "clip.mp3")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != "fake mp4 bytes" {
		t.Errorf("body = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "output.mp4") {
		t.Errorf("content-disposition = %q", got)
	}
	if got := rec.Header().Get("X-Convert-Stdout"); !strings.Contains(got, "conversion log line") {
		t.Errorf("stdout header = %q", got)
	}
}

func TestHandleRenderURLBeatsUploadedFile(t *testing.T) {
	var urlHit bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlHit = true
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("remote audio bytes"))
	}))
	defer server.Close()

	controller, err := StartRenderController(newTestService(t, rendererScript, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, map[string]string{"audio_url": server.URL + "/a.mp3"}, "local.mp3")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !urlHit {
		t.Error("audio_url not fetched although both sources were supplied")
	}
}

func TestHandleRenderTimeout(t *testing.T) {
	script := "#!/bin/sh\necho stuck >&2\nexec sleep 30\n"
	controller, err := StartRenderController(newTestService(t, script, 300*time.Millisecond), "")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, nil, "a.mp3")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Error, "timed out") {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(resp.Stderr, "stuck") {
		t.Errorf("stderr tail = %q", resp.Stderr)
	}
}

func TestHandleRenderProcessFailure(t *testing.T) {
	script := "#!/bin/sh\necho 'no such preset' >&2\nexit 5\n"
	controller, err := StartRenderController(newTestService(t, script, time.Minute), "")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, nil, "a.mp3")
	req := httptest.NewRequest(http.MethodPost, "/render", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	controller.HandleRender(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp dto.ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.Contains(resp.Stderr, "no such preset") {
		t.Errorf("stderr tail = %q", resp.Stderr)
	}
}

func TestTailAndHeaderValue(t *testing.T) {
	if got := tail("abcdef", 4); got != "cdef" {
		t.Errorf("tail = %q", got)
	}
	if got := tail("abc", 10); got != "abc" {
		t.Errorf("tail = %q", got)
	}
	if got := headerValue("line1\nline2\r\nline3", 100); strings.ContainsAny(got, "\r\n") {
		t.Errorf("header value carries newlines: %q", got)
	}
}
