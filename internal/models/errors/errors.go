package errors

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a render job can produce.
type Kind string

const (
	KindInput    Kind = "input"
	KindDownload Kind = "download"
	KindTimeout  Kind = "timeout"
	KindProcess  Kind = "process"
	KindUpload   Kind = "upload"
	KindBusy     Kind = "busy"
)

// RenderError carries the failure kind plus any renderer output captured
// before the job failed. Stdout/Stderr may be partial (timeout path).
type RenderError struct {
	Kind    Kind
	Message string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// New builds a RenderError of the given kind.
func New(kind Kind, format string, args ...any) *RenderError {
	return &RenderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a RenderError that keeps the underlying cause for errors.Is.
func Wrap(kind Kind, err error, format string, args ...any) *RenderError {
	return &RenderError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithOutput attaches captured renderer streams and returns the same error.
func (e *RenderError) WithOutput(stdout, stderr string) *RenderError {
	e.Stdout = stdout
	e.Stderr = stderr
	return e
}

// AsRender extracts a RenderError from an error chain. Failures that were
// not classified by a service come back as KindProcess.
func AsRender(err error) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		return re
	}
	return &RenderError{Kind: KindProcess, Message: err.Error(), Err: err}
}

// IsKind reports whether err is a RenderError of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RenderError
	return errors.As(err, &re) && re.Kind == kind
}
