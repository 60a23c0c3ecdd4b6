// Package resolver answers "which process listens on TCP port N?" by running
// a platform backend's probe, parsing its output and enriching every match.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/portcheck/internal/metrics"
	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/platform"
	"github.com/loykin/portcheck/internal/probe"
)

// ErrInvalidPort is returned for port 0.
var ErrInvalidPort = errors.New("invalid port")

// Options tunes a Resolver. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Elevate re-runs the probe through sudo -n when the backend reports
	// listeners whose owner is hidden from the current user.
	Elevate bool
	// Timeout bounds each lookup when positive.
	Timeout time.Duration
}

type Resolver struct {
	backend platform.Backend
	runner  probe.Runner
	log     *slog.Logger
	elevate bool
	timeout time.Duration
}

func New(b platform.Backend, r probe.Runner, opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if r == nil {
		r = probe.ExecRunner{Logger: log}
	}
	return &Resolver{
		backend: b,
		runner:  r,
		log:     log.With("backend", b.Name()),
		elevate: opts.Elevate,
		timeout: opts.Timeout,
	}
}

// Backend returns the platform backend in use.
func (r *Resolver) Backend() platform.Backend { return r.backend }

// Resolve returns the processes listening on port, in the order the probe
// printed them. An empty, non-nil slice means the port is free.
func (r *Resolver) Resolve(ctx context.Context, port uint16) ([]model.ProcessRecord, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	recs, err := r.resolve(ctx, port)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		metrics.ObserveLookup(r.backend.Name(), metrics.ResultError, elapsed)
		r.log.Debug("lookup failed", "port", port, "elapsed", elapsed, "error", err)
		return nil, err
	case len(recs) == 0:
		metrics.ObserveLookup(r.backend.Name(), metrics.ResultFree, elapsed)
	default:
		metrics.ObserveLookup(r.backend.Name(), metrics.ResultInUse, elapsed)
		metrics.AddRecords(len(recs))
	}
	r.log.Debug("lookup done", "port", port, "records", len(recs), "elapsed", elapsed)
	return recs, nil
}

func (r *Resolver) resolve(ctx context.Context, port uint16) ([]model.ProcessRecord, error) {
	spec := r.backend.BuildCommand(port)
	r.log.Debug("running probe", "port", port, "command", spec.String())
	lines, err := r.runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	lines = r.maybeElevate(ctx, spec, lines, port)

	recs := make([]model.ProcessRecord, 0, len(lines))
	for _, line := range lines {
		rec, ok := r.backend.ParseLine(line)
		if !ok {
			r.log.Debug("skipping line", "line", line)
			continue
		}
		// the probe may match by prefix (":80" also hits ":8080")
		if rec.Port != port {
			continue
		}
		recs = append(recs, rec)
	}
	for i := range recs {
		e := r.backend.Enrich(ctx, recs[i].PID)
		recordEnrichment(e)
		recs[i] = recs[i].WithExtra(e)
	}
	return recs, nil
}

// maybeElevate re-runs spec with elevated privileges when the backend saw a
// listener it could not attribute. A failed re-run keeps the original lines.
func (r *Resolver) maybeElevate(ctx context.Context, spec probe.CommandSpec, lines []string, port uint16) []string {
	el, ok := r.backend.(platform.Elevator)
	if !ok || !el.NeedsElevation(lines, port) {
		return lines
	}
	if !r.elevate {
		r.log.Warn("port has a listener owned by another user; re-run with --sudo to identify it", "port", port)
		return lines
	}
	elevated, ok := probe.Elevate(spec)
	if !ok {
		return lines
	}
	metrics.IncElevation()
	r.log.Debug("re-running probe elevated", "port", port, "command", elevated.String())
	out, err := r.runner.Run(ctx, elevated)
	if err != nil {
		r.log.Warn("elevated probe failed", "port", port, "error", err)
		return lines
	}
	return out
}

func recordEnrichment(e model.Extra) {
	metrics.RecordEnrichField("user", e.User != "")
	metrics.RecordEnrichField("command", e.Command != "")
	metrics.RecordEnrichField("tty", e.TTY != "")
	metrics.RecordEnrichField("start_time", e.HasStartTime())
}

// Result is the outcome of one port in ResolveAll.
type Result struct {
	Port    uint16
	Records []model.ProcessRecord
	Err     error
}

// ResolveAll resolves ports one after another and keeps going after errors.
// It stops early only when ctx is done; remaining ports carry ctx.Err().
func (r *Resolver) ResolveAll(ctx context.Context, ports []uint16) []Result {
	out := make([]Result, 0, len(ports))
	for _, p := range ports {
		if err := ctx.Err(); err != nil {
			out = append(out, Result{Port: p, Err: err})
			continue
		}
		recs, err := r.Resolve(ctx, p)
		out = append(out, Result{Port: p, Records: recs, Err: err})
	}
	return out
}
