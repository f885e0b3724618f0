package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"PMRender/internal/models/configs"
)

// UploadService hands rendered output to the CDN upload collaborator. Its
// failures are always recoverable: callers fall back to inline encoding.
type UploadService struct {
	endpoint string
	token    string
	client   *http.Client
}

func StartUploadService(cfg configs.UploadServiceConfig) (*UploadService, error) {
	return &UploadService{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

// Enabled reports whether an upload endpoint is configured.
func (s *UploadService) Enabled() bool {
	return s.endpoint != ""
}

// Upload PUTs the local file to the configured endpoint and returns the
// public reference. The collaborator may answer with the reference in the
// response body; an empty body means the target URL itself is the reference.
func (s *UploadService) Upload(ctx context.Context, localPath string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("upload endpoint not configured")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	target := s.endpoint + "/" + filepath.Base(localPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	if contentType := mime.TypeByExtension(filepath.Ext(localPath)); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload returned status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	if reference := strings.TrimSpace(string(body)); reference != "" {
		return reference, nil
	}
	return target, nil
}
