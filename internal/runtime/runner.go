package runtime

import (
	"context"
	"os/exec"
	"strings"
)

// Runner executes a command line and captures stdout/stderr. Abstracted so
// tests can substitute a fake without touching the real docker binary —
// mirrors the docker.API seam a real Docker client draws around the Engine API
// client, applied here to CLI invocation instead.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands via os/exec, the production Runner.
type ExecRunner struct{}

// Run executes name with args, with dir as the working directory (empty
// means the current process directory). It never returns an error for a
// non-zero exit code alone — callers inspect stderr/stdout themselves
// (docker CLI invocations routinely write diagnostic output to stderr on
// a zero exit, so the caller decides what counts as failure).
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// A non-zero exit reaches the caller only through the captured
			// stdout/stderr; only a genuine inability to run (binary
			// missing) is returned as an error.
			return stdout.String(), stderr.String(), nil
		}
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}
