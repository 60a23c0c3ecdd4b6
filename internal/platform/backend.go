package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/probe"
)

// ErrUnsupportedPlatform is returned when no backend is registered for the OS.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Backend is the OS-specific half of a port lookup: which command to run,
// how to read one line of its output, and how to enrich a pid afterwards.
// ParseLine must be total; Enrich must never fail the lookup.
type Backend interface {
	Name() string
	BuildCommand(port uint16) probe.CommandSpec
	ParseLine(line string) (model.ProcessRecord, bool)
	Enrich(ctx context.Context, pid int32) model.Extra
}

// Elevator is implemented by backends that can tell when the probe output
// shows a listener whose owner was hidden from an unprivileged user.
type Elevator interface {
	NeedsElevation(lines []string, port uint16) bool
}

// Options carries the collaborators backends need. Zero values are replaced
// with live defaults.
type Options struct {
	Runner     probe.Runner
	Logger     *slog.Logger
	Now        func() time.Time
	ProcRoot   string
	PasswdPath string
	Getenv     func(string) string

	sys *sysLookups
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Runner == nil {
		o.Runner = probe.ExecRunner{Logger: o.Logger}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.PasswdPath == "" {
		o.PasswdPath = "/etc/passwd"
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.sys == nil {
		o.sys = &liveLookups
	}
	return o
}

var registry = map[string]func(Options) Backend{
	"linux":     newLinux,
	"darwin":    newBSD,
	"freebsd":   newBSD,
	"openbsd":   newBSD,
	"netbsd":    newBSD,
	"dragonfly": newBSD,
	"windows":   newWindows,
}

// Detect returns the backend registered for goos (normally runtime.GOOS).
func Detect(goos string, opts Options) (Backend, error) {
	ctor, ok := registry[goos]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	return ctor(opts.withDefaults()), nil
}

// Supported lists the operating systems with a registered backend.
func Supported() []string {
	out := make([]string, 0, len(registry))
	for goos := range registry {
		out = append(out, goos)
	}
	sort.Strings(out)
	return out
}
