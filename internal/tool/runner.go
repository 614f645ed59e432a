// Package tool runs the external geospatial command-line tools the pipeline
// delegates to: ogr2ogr for shapefile conversion, geo2topo and toposimplify for
// topology output.
package tool

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// Exec runs commands with os/exec. Combined output is returned in the error on
// failure and logged at debug level on success.
type Exec struct {
	Logger *slog.Logger
}

// Run executes name with args.
func (e Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("running tool", "tool", name, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return &Error{Tool: name, Output: strings.TrimSpace(out.String()), Err: err}
	}
	if out.Len() > 0 {
		logger.Debug("tool output", "tool", name, "output", strings.TrimSpace(out.String()))
	}
	return nil
}

// Error is a failed tool invocation.
type Error struct {
	Tool   string
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// Recorder is a Runner that records calls and runs a hook instead of a process.
// Tests use it to stand in for the real tools.
type Recorder struct {
	Calls []Call
	Hook  func(name string, args []string) error
}

// Run records the call and invokes Hook if set.
func (r *Recorder) Run(_ context.Context, name string, args ...string) error {
	r.Calls = append(r.Calls, Call{Name: name, Args: append([]string(nil), args...)})
	if r.Hook != nil {
		return r.Hook(name, args)
	}
	return nil
}
