package configs

import "time"

// FetchServiceConfig bounds remote-audio resolution. RequestTimeout applies
// per HTTP request, not to the job as a whole.
type FetchServiceConfig struct {
	RequestTimeout time.Duration
	MaxHops        int
	ChunkSize      int
}
