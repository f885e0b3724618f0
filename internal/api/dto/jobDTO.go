package dto

// JobRequest is the serverless-style job record: a single loosely-typed
// input map carrying the JobConfig fields.
type JobRequest struct {
	Input map[string]any `json:"input"`
}

// JobResult is the result record returned across the job boundary. Exactly
// one of {VideoURL, BaseVideoB64} is set on success; Error is set instead on
// failure. Stdout/Stderr are preserved whenever they were captured, even on
// failure paths.
type JobResult struct {
	VideoURL     string  `json:"video_url,omitempty"`
	BaseVideoB64 string  `json:"base_video_b64,omitempty"`
	FileSizeMB   float64 `json:"file_size_mb,omitempty"`
	UploadError  string  `json:"upload_error,omitempty"`
	Stdout       string  `json:"stdout,omitempty"`
	Stderr       string  `json:"stderr,omitempty"`
	Error        string  `json:"error,omitempty"`
}
