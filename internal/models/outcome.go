package models

import (
	"os"
	"time"
)

// ProcessState classifies how the renderer process finished. Exactly one
// state applies to a completed invocation.
type ProcessState string

const (
	ProcessSucceeded ProcessState = "succeeded"
	ProcessFailed    ProcessState = "failed"
	ProcessTimedOut  ProcessState = "timed_out"
)

// ProcessOutcome captures the observable result of one renderer invocation.
type ProcessOutcome struct {
	State    ProcessState
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	Reason   string
}

// RenderResult is a successful render whose output file still lives inside
// the job's working directory. The caller owns the result and must invoke
// Cleanup once the file has been consumed.
type RenderResult struct {
	JobID     string
	VideoPath string
	SizeMB    float64
	Stdout    string
	Stderr    string
	Elapsed   time.Duration

	workDir string
}

// NewRenderResult binds a render output to its working directory.
func NewRenderResult(jobID, videoPath, workDir string) *RenderResult {
	return &RenderResult{JobID: jobID, VideoPath: videoPath, workDir: workDir}
}

// Cleanup removes the job's working directory and everything in it.
func (r *RenderResult) Cleanup() error {
	if r == nil || r.workDir == "" {
		return nil
	}
	err := os.RemoveAll(r.workDir)
	r.workDir = ""
	return err
}
