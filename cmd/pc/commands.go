package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/portcheck/internal/config"
	"github.com/loykin/portcheck/internal/logger"
	"github.com/loykin/portcheck/internal/metrics"
	"github.com/loykin/portcheck/internal/output"
	"github.com/loykin/portcheck/internal/platform"
	"github.com/loykin/portcheck/internal/probe"
	"github.com/loykin/portcheck/internal/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

// errReported means the error was already printed for the user; main only
// has to set the exit status.
var errReported = errors.New("error already reported")

type command struct {
	stdout     io.Writer
	stderr     io.Writer
	goos       string
	runner     probe.Runner
	procRoot   string
	isTerminal func(io.Writer) bool
}

// Check resolves every port in args and renders the results. Human output
// stops at the first failed lookup; structured output reports it as a
// document and moves on to the next port.
func (c command) Check(ctx context.Context, f CheckFlags, fs *pflag.FlagSet, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ports, err := parsePorts(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.ConfigPath, fs)
	if err != nil {
		return err
	}
	if f.Verbose {
		cfg.Log.Level = logger.LevelDebug
	}
	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	log, closer := cfg.Log.Logger(colorEnabled(c.stderr, cfg.NoColor, c.isTerminal)).Open(c.stderr)
	defer func() { _ = closer.Close() }()

	if cfg.Metrics.Textfile != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		defer func() {
			if werr := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); werr != nil {
				log.Warn("metrics textfile not written", "path", cfg.Metrics.Textfile, "error", werr)
			}
		}()
	}

	runner := c.runner
	if runner == nil {
		runner = probe.ExecRunner{Logger: log}
	}
	backend, err := platform.Detect(c.goos, platform.Options{
		Runner:   runner,
		Logger:   log,
		ProcRoot: c.procRoot,
	})
	if err != nil {
		return err
	}
	res := resolver.New(backend, runner, resolver.Options{
		Logger:  log,
		Elevate: cfg.Elevate,
		Timeout: cfg.Timeout,
	})
	renderer, err := output.New(format, output.Options{
		Extra: cfg.Extra,
		Color: colorEnabled(c.stdout, cfg.NoColor, c.isTerminal),
		Ports: len(ports),
	})
	if err != nil {
		return err
	}
	// Human errors go to stderr; their color follows that stream.
	errRenderer := renderer
	if !format.Structured() {
		if errRenderer, err = output.New(format, output.Options{
			Color: colorEnabled(c.stderr, cfg.NoColor, c.isTerminal),
		}); err != nil {
			return err
		}
	}
	log.Debug("checking ports", "ports", ports, "backend", backend.Name(), "format", format)

	return c.render(ctx, res, renderer, errRenderer, format, ports, log)
}

func (c command) render(ctx context.Context, res *resolver.Resolver, r, errR output.Renderer, format output.Format, ports []uint16, log *slog.Logger) error {
	for _, port := range ports {
		recs, err := res.Resolve(ctx, port)
		if err == nil {
			if rerr := r.Render(c.stdout, port, recs); rerr != nil {
				return rerr
			}
			continue
		}
		if !format.Structured() {
			if rerr := errR.RenderError(c.stderr, port, err); rerr != nil {
				return rerr
			}
			return errReported
		}
		log.Debug("reporting lookup error as document", "port", port, "error", err)
		if rerr := r.RenderError(c.stdout, port, err); rerr != nil {
			return rerr
		}
	}
	return r.Finish(c.stdout)
}
