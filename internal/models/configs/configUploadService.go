package configs

import "time"

// UploadServiceConfig points at the CDN upload collaborator. An empty
// Endpoint disables uploads and forces the inline-encoding fallback.
type UploadServiceConfig struct {
	Endpoint       string
	Token          string
	RequestTimeout time.Duration
}
