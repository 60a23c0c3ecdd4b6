package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/portcheck/internal/model"
)

// lookup resolves one attribute for a pid. ok=false means "try the next one".
type lookup[T any] func(ctx context.Context, pid int32) (T, bool)

// firstOf walks chain in order and returns the first successful value.
func firstOf[T any](ctx context.Context, pid int32, chain ...lookup[T]) (T, bool) {
	for _, fn := range chain {
		if fn == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if v, ok := fn(ctx, pid); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// chains holds the ordered strategies for every enrichment field.
type chains struct {
	name    []lookup[string]
	user    []lookup[string]
	command []lookup[string]
	tty     []lookup[string]
	start   []lookup[time.Time]
}

func (c chains) resolve(ctx context.Context, pid int32, now time.Time, log *slog.Logger) model.Extra {
	var e model.Extra
	e.Name, _ = firstOf(ctx, pid, c.name...)
	e.User, _ = firstOf(ctx, pid, c.user...)
	e.Command, _ = firstOf(ctx, pid, c.command...)
	e.TTY, _ = firstOf(ctx, pid, c.tty...)
	if st, ok := firstOf(ctx, pid, c.start...); ok {
		e.StartTime = st
		if up := now.Sub(st); up > 0 {
			e.Uptime = up.Truncate(time.Second)
		}
	}
	log.Debug("enriched process",
		"pid", pid,
		"user", e.User != "",
		"command", e.Command != "",
		"tty", e.TTY != "",
		"start_time", e.HasStartTime())
	return e
}
