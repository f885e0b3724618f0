package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeRenderer drops an executable shell script standing in for the real
// renderer and returns its path.
func writeRenderer(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convert.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// touchOutput scans "$@" for the -o flag the way the renderer would and
// creates the file it names.
const touchOutput = `
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; fi
	shift
done
: > "$out"
`

func testSpec(t *testing.T, binary string) CommandSpec {
	t.Helper()
	spec := baseSpec()
	spec.Binary = binary
	spec.OutputPath = filepath.Join(t.TempDir(), "output.mp4")
	return spec
}

func TestRunSucceeds(t *testing.T) {
	binary := writeRenderer(t, "echo rendering frames\n"+touchOutput)
	spec := testSpec(t, binary)

	outcome, err := Run(context.Background(), spec, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateSucceeded {
		t.Fatalf("state = %s (%s), want succeeded", outcome.State, outcome.Reason)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Stdout, "rendering frames") {
		t.Errorf("stdout not captured: %q", outcome.Stdout)
	}
	if _, err := os.Stat(spec.OutputPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	binary := writeRenderer(t, "echo 'codec init failed' >&2\nexit 3\n")
	spec := testSpec(t, binary)

	outcome, err := Run(context.Background(), spec, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateFailed {
		t.Fatalf("state = %s, want failed", outcome.State)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Stderr, "codec init failed") {
		t.Errorf("stderr not captured: %q", outcome.Stderr)
	}
	if !strings.Contains(outcome.Reason, "exit code 3") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRunTimesOut(t *testing.T) {
	binary := writeRenderer(t, "echo partial progress\nexec sleep 30\n")
	spec := testSpec(t, binary)

	start := time.Now()
	outcome, err := Run(context.Background(), spec, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill did not reap promptly, took %s", elapsed)
	}
	if outcome.State != StateTimedOut {
		t.Fatalf("state = %s, want timed_out", outcome.State)
	}
	if outcome.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Stdout, "partial progress") {
		t.Errorf("partial stdout lost: %q", outcome.Stdout)
	}
	if !strings.Contains(outcome.Reason, "timed out after 0.3 seconds") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRunTimeoutKillsWrapperChildren(t *testing.T) {
	// No exec: sleep runs as a child of the wrapper shell and inherits the
	// pipe write ends, the shape of a real convert.sh. Killing only the
	// wrapper would leave the child holding the pipes open and Run stuck.
	binary := writeRenderer(t, "echo wrapper started\nsleep 60\necho never reached\n")
	spec := testSpec(t, binary)

	type runResult struct {
		outcome Outcome
		err     error
	}
	results := make(chan runResult, 1)
	go func() {
		outcome, err := Run(context.Background(), spec, 300*time.Millisecond)
		results <- runResult{outcome, err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			t.Fatalf("Run: %v", res.err)
		}
		if res.outcome.State != StateTimedOut {
			t.Fatalf("state = %s, want timed_out", res.outcome.State)
		}
		if !strings.Contains(res.outcome.Stdout, "wrapper started") {
			t.Errorf("partial stdout lost: %q", res.outcome.Stdout)
		}
		if strings.Contains(res.outcome.Stdout, "never reached") {
			t.Errorf("wrapper survived the kill: %q", res.outcome.Stdout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the timeout; wrapper children kept the pipes open")
	}
}

func TestRunExitZeroWithoutOutput(t *testing.T) {
	binary := writeRenderer(t, "echo done\nexit 0\n")
	spec := testSpec(t, binary)

	outcome, err := Run(context.Background(), spec, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateFailed {
		t.Fatalf("state = %s, want failed", outcome.State)
	}
	if outcome.Reason != "conversion completed but output file is missing" {
		t.Errorf("reason = %q", outcome.Reason)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", outcome.ExitCode)
	}
}

func TestRunDrainsChattyStderr(t *testing.T) {
	// Well past any OS pipe buffer; a supervisor that waits before draining
	// would deadlock here.
	binary := writeRenderer(t, "yes padding | head -c 1000000 >&2\n"+touchOutput)
	spec := testSpec(t, binary)

	outcome, err := Run(context.Background(), spec, 30*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != StateSucceeded {
		t.Fatalf("state = %s (%s), want succeeded", outcome.State, outcome.Reason)
	}
	if len(outcome.Stderr) < 1000000 {
		t.Errorf("stderr truncated: got %d bytes", len(outcome.Stderr))
	}
}

func TestRunCancelledContext(t *testing.T) {
	binary := writeRenderer(t, "exec sleep 30\n")
	spec := testSpec(t, binary)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	outcome, err := Run(ctx, spec, 30*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if outcome.State != StateFailed {
		t.Errorf("state = %s, want failed", outcome.State)
	}
}

func TestRunMissingBinary(t *testing.T) {
	spec := testSpec(t, filepath.Join(t.TempDir(), "no-such-renderer"))

	if _, err := Run(context.Background(), spec, time.Second); err == nil {
		t.Fatal("expected a setup error for a missing binary")
	}
}
