package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// State classifies how an invocation finished. Exactly one state holds for
// every completed run.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Outcome is the supervisor's report for one renderer run. Stdout and
// Stderr hold whatever was captured before the process ended, including the
// partial output of a killed process.
type Outcome struct {
	State    State
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	Reason   string
}

// Run executes the renderer described by spec under a hard wall-clock
// timeout. Both output streams are drained concurrently with the process so
// a chatty renderer can never deadlock on a full pipe buffer. On expiry the
// process is killed and its handle reaped before Run returns.
//
// A run counts as succeeded only when the exit code is zero AND the expected
// output file exists; exit status alone is not proof of success. Run returns
// a non-nil error only for invocation setup failures.
func Run(ctx context.Context, spec CommandSpec, timeout time.Duration) (Outcome, error) {
	cmd := exec.Command(spec.Binary, spec.BuildArgs()...)
	// Own process group, so a kill reaches the whole renderer tree. The
	// binary is typically a wrapper script whose real work runs in a child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start renderer: %w", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var drain sync.WaitGroup
	drain.Add(2)
	go func() {
		defer drain.Done()
		_, _ = io.Copy(&stdoutBuf, stdoutPipe)
	}()
	go func() {
		defer drain.Done()
		_, _ = io.Copy(&stderrBuf, stderrPipe)
	}()

	done := make(chan error, 1)
	go func() {
		drain.Wait()
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		killTree(cmd, stdoutPipe, stderrPipe)
		<-done // reap, never leave a zombie
	case <-ctx.Done():
		killTree(cmd, stdoutPipe, stderrPipe)
		<-done
		return Outcome{
			State:   StateFailed,
			Stdout:  stdoutBuf.String(),
			Stderr:  stderrBuf.String(),
			Elapsed: time.Since(start),
			Reason:  "invocation cancelled",
		}, ctx.Err()
	}

	outcome := Outcome{
		Stdout:  stdoutBuf.String(),
		Stderr:  stderrBuf.String(),
		Elapsed: time.Since(start),
	}

	if timedOut {
		outcome.State = StateTimedOut
		outcome.ExitCode = -1
		outcome.Reason = fmt.Sprintf("conversion timed out after %g seconds", timeout.Seconds())
		return outcome, nil
	}

	if waitErr != nil {
		outcome.State = StateFailed
		outcome.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		}
		outcome.Reason = fmt.Sprintf("conversion failed (exit code %d)", outcome.ExitCode)
		return outcome, nil
	}

	if _, err := os.Stat(spec.OutputPath); err != nil {
		outcome.State = StateFailed
		outcome.Reason = "conversion completed but output file is missing"
		return outcome, nil
	}

	outcome.State = StateSucceeded
	return outcome, nil
}

// killTree forcefully terminates the renderer's whole process group, then
// closes the pipe read ends so the drain goroutines cannot stay blocked on a
// write end still held by an orphaned descendant. Whatever was captured
// before the kill stays in the buffers.
func killTree(cmd *exec.Cmd, pipes ...io.Closer) {
	if cmd.Process != nil {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			_ = cmd.Process.Kill()
		}
	}
	for _, pipe := range pipes {
		_ = pipe.Close()
	}
}
