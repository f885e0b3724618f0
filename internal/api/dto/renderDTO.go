package dto

// ErrorResponse is the structured error body for the HTTP boundary. Stream
// tails are included when the renderer produced any output before failing.
type ErrorResponse struct {
	Error  string `json:"error"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// HealthResponse reports service liveness and current render load.
type HealthResponse struct {
	Status        string `json:"status"`
	ActiveRenders int    `json:"active_renders"`
	MaxConcurrent int    `json:"max_concurrent"`
}
