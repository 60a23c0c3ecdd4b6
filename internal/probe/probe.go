package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// CommandSpec is an external command to run for one lookup.
// Filter, when set, is a substring every returned line must contain.
type CommandSpec struct {
	Name   string
	Args   []string
	Filter string
}

func (c CommandSpec) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if strings.ContainsAny(a, " \t'\"") {
			a = "'" + a + "'"
		}
		parts = append(parts, a)
	}
	s := strings.Join(parts, " ")
	if c.Filter != "" {
		s += " (filter " + c.Filter + ")"
	}
	return s
}

// Runner executes a CommandSpec and yields its output lines.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) ([]string, error)
}

// ExecutionFailed means the probe could not be run or its output could not be read.
// It is distinct from an empty result, which means nothing matched.
type ExecutionFailed struct {
	Command string
	Reason  string
	Err     error
}

func (e *ExecutionFailed) Error() string {
	return fmt.Sprintf("failed to run %s: %s", e.Command, e.Reason)
}

func (e *ExecutionFailed) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run starts the command and waits for it. A non-zero exit status is not an
// error on its own: lsof and findstr exit 1 when nothing matched.
func (r ExecRunner) Run(ctx context.Context, spec CommandSpec) ([]string, error) {
	if spec.Name == "" {
		return nil, &ExecutionFailed{Command: "<empty>", Reason: "no command"}
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &ExecutionFailed{Command: spec.String(), Reason: ctxErr.Error(), Err: ctxErr}
	}
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return nil, &ExecutionFailed{Command: spec.String(), Reason: err.Error(), Err: err}
		}
		msg := strings.TrimSpace(stderr.String())
		if stdout.Len() == 0 && msg != "" {
			return nil, &ExecutionFailed{Command: spec.String(), Reason: msg, Err: err}
		}
		r.logger().Debug("probe exited non-zero", "command", spec.String(), "code", ee.ExitCode())
	}

	if !utf8.Valid(stdout.Bytes()) {
		return nil, &ExecutionFailed{Command: spec.String(), Reason: "output is not valid UTF-8"}
	}
	lines := SplitLines(stdout.String(), spec.Filter)
	r.logger().Debug("probe finished", "command", spec.String(), "lines", len(lines))
	return lines, nil
}

// SplitLines splits raw output into non-blank lines, trimming CR, keeping only
// lines that contain filter when it is non-empty.
func SplitLines(out string, filter string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if filter != "" && !strings.Contains(line, filter) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
