package platform

import (
	"context"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// sysLookups are the strategies that query the live system directly rather
// than parsing a tool or file. Tests swap them out for an empty set.
type sysLookups struct {
	name        lookup[string]
	user        lookup[string]
	command     lookup[string]
	tty         lookup[string]
	start       lookup[time.Time]
	nativeStart lookup[time.Time]
}

// liveLookups are gopsutil-backed. They sit at the end of every chain because
// they work everywhere but hide which underlying source failed.
var liveLookups = sysLookups{
	name:        gopsName,
	user:        gopsUser,
	command:     gopsCmdline,
	tty:         gopsTerminal,
	start:       gopsStartTime,
	nativeStart: nativeStartTime,
}

func gopsProcess(ctx context.Context, pid int32) (*gopsproc.Process, bool) {
	p, err := gopsproc.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, false
	}
	return p, true
}

func gopsName(ctx context.Context, pid int32) (string, bool) {
	p, ok := gopsProcess(ctx, pid)
	if !ok {
		return "", false
	}
	n, err := p.NameWithContext(ctx)
	return nonEmpty(n, err)
}

func gopsUser(ctx context.Context, pid int32) (string, bool) {
	p, ok := gopsProcess(ctx, pid)
	if !ok {
		return "", false
	}
	u, err := p.UsernameWithContext(ctx)
	return nonEmpty(u, err)
}

func gopsCmdline(ctx context.Context, pid int32) (string, bool) {
	p, ok := gopsProcess(ctx, pid)
	if !ok {
		return "", false
	}
	c, err := p.CmdlineWithContext(ctx)
	return nonEmpty(c, err)
}

func gopsTerminal(ctx context.Context, pid int32) (string, bool) {
	p, ok := gopsProcess(ctx, pid)
	if !ok {
		return "", false
	}
	t, err := p.TerminalWithContext(ctx)
	if err != nil {
		return "", false
	}
	t = strings.TrimPrefix(strings.TrimSpace(t), "/dev/")
	if t == "?" || t == "??" {
		return "", false
	}
	return nonEmpty(t, nil)
}

func gopsStartTime(ctx context.Context, pid int32) (time.Time, bool) {
	p, ok := gopsProcess(ctx, pid)
	if !ok {
		return time.Time{}, false
	}
	ms, err := p.CreateTimeWithContext(ctx)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func nonEmpty(s string, err error) (string, bool) {
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
