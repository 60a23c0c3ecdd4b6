// Package portcheck reports which process, if any, is listening on a TCP port.
package portcheck

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/loykin/portcheck/internal/metrics"
	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/output"
	"github.com/loykin/portcheck/internal/platform"
	"github.com/loykin/portcheck/internal/probe"
	"github.com/loykin/portcheck/internal/resolver"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.

type Record = model.ProcessRecord

type Extra = model.Extra

type Result = resolver.Result

type CommandSpec = probe.CommandSpec

type Runner = probe.Runner

type ExecutionFailed = probe.ExecutionFailed

type Format = output.Format

var (
	ErrUnsupportedPlatform = platform.ErrUnsupportedPlatform
	ErrInvalidPort         = resolver.ErrInvalidPort
)

// Options configures a Checker. The zero value checks the running OS with
// real commands.
type Options struct {
	Logger  *slog.Logger
	Elevate bool
	Timeout time.Duration
	// GOOS overrides runtime.GOOS, mainly for tests.
	GOOS string
	// Runner overrides command execution.
	Runner Runner
}

// Checker is a thin facade over internal/resolver.
type Checker struct{ inner *resolver.Resolver }

func New(opts Options) (*Checker, error) {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	b, err := platform.Detect(goos, platform.Options{Runner: opts.Runner, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return &Checker{inner: resolver.New(b, opts.Runner, resolver.Options{
		Logger:  opts.Logger,
		Elevate: opts.Elevate,
		Timeout: opts.Timeout,
	})}, nil
}

// Platform names the backend in use: linux, bsd or windows.
func (c *Checker) Platform() string { return c.inner.Backend().Name() }

func (c *Checker) Check(ctx context.Context, port uint16) ([]Record, error) {
	return c.inner.Resolve(ctx, port)
}

func (c *Checker) CheckAll(ctx context.Context, ports []uint16) []Result {
	return c.inner.ResolveAll(ctx, ports)
}

// Write renders one port's records in format f, as the pc command does.
func Write(w io.Writer, f Format, port uint16, recs []Record, extra bool) error {
	r, err := output.New(f, output.Options{Extra: extra})
	if err != nil {
		return err
	}
	return r.Render(w, port, recs)
}

// ParseFormat accepts human, json, yaml, toml, xml and toon.
func ParseFormat(s string) (Format, error) { return output.ParseFormat(s) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

func WriteMetricsTextfile(path string, g prometheus.Gatherer) error {
	return metrics.WriteTextfile(path, g)
}
