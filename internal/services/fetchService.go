package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"PMRender/internal/models/configs"
	customErrors "PMRender/internal/models/errors"
	"PMRender/pkg/resolve"
)

// Realistic browser identity; some share hosts serve empty pages to
// obvious non-browser clients.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxProbeBytes bounds how much of a non-audio response body is read for
// redirect extraction.
const maxProbeBytes = 2 << 20

// FetchService materializes remote audio into local files, chasing HTML
// redirector pages through the resolve heuristics.
type FetchService struct {
	client    *http.Client
	maxHops   int
	chunkSize int
}

func StartFetchService(cfg configs.FetchServiceConfig) (*FetchService, error) {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 4
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}

	return &FetchService{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		maxHops:   cfg.MaxHops,
		chunkSize: cfg.ChunkSize,
	}, nil
}

// FetchAudio resolves rawURL into a locally-stored audio file at destPath.
// Share links are normalized first; responses that are not direct audio are
// scanned for an embedded download URL, up to the hop limit. On failure no
// file is left behind.
func (s *FetchService) FetchAudio(ctx context.Context, rawURL, destPath string) error {
	current := rawURL

	for hop := 0; hop < s.maxHops; hop++ {
		current = resolve.NormalizeURL(current)
		slog.Debug("fetching audio candidate", "url", current, "hop", hop)

		resp, err := s.get(ctx, current)
		if err != nil {
			return customErrors.Wrap(customErrors.KindDownload, err, "audio download request failed")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return customErrors.New(customErrors.KindDownload,
				"audio url returned status %s", resp.Status)
		}

		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		if strings.HasPrefix(contentType, "audio/") {
			err := s.streamToFile(resp.Body, destPath)
			resp.Body.Close()
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBytes))
		resp.Body.Close()
		if err != nil {
			return customErrors.Wrap(customErrors.KindDownload, err, "failed to read response body")
		}

		candidate, ok := resolve.ExtractRedirect(strings.ToValidUTF8(string(body), "�"))
		if !ok {
			return customErrors.New(customErrors.KindDownload,
				"page requires authentication or is not public")
		}

		slog.Debug("following extracted redirect", "candidate", candidate, "hop", hop)
		current = candidate
	}

	return customErrors.New(customErrors.KindDownload,
		"could not resolve remote audio after multiple attempts")
}

// FetchFile streams rawURL to destPath without content-type inspection or
// redirect heuristics. Used for timeline downloads.
func (s *FetchService) FetchFile(ctx context.Context, rawURL, destPath string) error {
	resp, err := s.get(ctx, resolve.NormalizeURL(rawURL))
	if err != nil {
		return customErrors.Wrap(customErrors.KindDownload, err, "file download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return customErrors.New(customErrors.KindDownload,
			"file url returned status %s", resp.Status)
	}

	return s.streamToFile(resp.Body, destPath)
}

func (s *FetchService) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	return s.client.Do(req)
}

// streamToFile copies the body to destPath in fixed-size chunks. A
// zero-byte result is a download failure and the empty file is removed.
func (s *FetchService) streamToFile(body io.Reader, destPath string) error {
	file, err := os.Create(destPath)
	if err != nil {
		return customErrors.Wrap(customErrors.KindDownload, err, "failed to create %s", destPath)
	}

	written, copyErr := io.CopyBuffer(file, body, make([]byte, s.chunkSize))
	closeErr := file.Close()

	if copyErr != nil {
		os.Remove(destPath)
		return customErrors.Wrap(customErrors.KindDownload, copyErr, "failed to stream download to disk")
	}
	if closeErr != nil {
		os.Remove(destPath)
		return customErrors.Wrap(customErrors.KindDownload, closeErr, "failed to flush download to disk")
	}
	if written == 0 {
		os.Remove(destPath)
		return customErrors.New(customErrors.KindDownload, "downloaded file is empty")
	}

	return nil
}
