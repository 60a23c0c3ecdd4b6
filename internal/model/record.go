package model

import (
	"strings"
	"time"
)

// Extra holds the best-effort attributes resolved for a pid after parsing.
// Empty strings and zero times mean the value could not be resolved.
type Extra struct {
	// Name is a display name recovered by enrichment. It fills
	// ProcessRecord.ProcessName when the parser could not provide one, or
	// replaces a parsed name that is a truncated prefix of it.
	Name      string
	User      string
	Command   string
	TTY       string
	StartTime time.Time
	Uptime    time.Duration
}

// HasStartTime reports whether StartTime (and therefore Uptime) was resolved.
func (e Extra) HasStartTime() bool { return !e.StartTime.IsZero() }

// ProcessRecord describes one process bound to the queried port.
type ProcessRecord struct {
	Port        uint16
	PID         int32
	ProcessName string
	Extra
}

// WithExtra returns a copy of r with the resolved attributes merged in.
// Values already set on r (for instance a user column printed by lsof) win.
func (r ProcessRecord) WithExtra(e Extra) ProcessRecord {
	out := r
	if out.ProcessName == "" || truncates(out.ProcessName, e.Name) {
		out.ProcessName = e.Name
	}
	if out.Name == "" {
		out.Name = e.Name
	}
	if out.User == "" {
		out.User = e.User
	}
	if out.Command == "" {
		out.Command = e.Command
	}
	if out.TTY == "" {
		out.TTY = e.TTY
	}
	if out.StartTime.IsZero() {
		out.StartTime = e.StartTime
		out.Uptime = e.Uptime
	}
	return out
}

// truncates reports whether parsed is a shortened form of full, as printed by
// tools that cut the command column (lsof stops at 9 bytes by default).
func truncates(parsed, full string) bool {
	return len(full) > len(parsed) && strings.HasPrefix(full, parsed)
}

// Valid reports whether the required fields are populated.
func (r ProcessRecord) Valid() bool { return r.Port > 0 && r.PID > 0 }
