package platform

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/probe"
)

const ssUsersMarker = "users:("

type linuxBackend struct {
	log    *slog.Logger
	now    func() time.Time
	proc   procfs
	chains chains
}

func newLinux(o Options) Backend {
	b := &linuxBackend{
		log:  o.Logger,
		now:  o.Now,
		proc: procfs{root: o.ProcRoot, passwd: o.PasswdPath, clkTck: clockTicks},
	}
	b.chains = chains{
		name:    []lookup[string]{b.proc.comm, o.sys.name},
		user:    []lookup[string]{b.proc.user, o.sys.user},
		command: []lookup[string]{b.proc.cmdline, o.sys.command},
		tty:     []lookup[string]{b.proc.tty, o.sys.tty},
		start:   []lookup[time.Time]{b.proc.startTime, o.sys.start},
	}
	return b
}

func (b *linuxBackend) Name() string { return "linux" }

func (b *linuxBackend) BuildCommand(port uint16) probe.CommandSpec {
	return probe.CommandSpec{
		Name: "ss",
		Args: []string{"-ltnp", "sport = :" + strconv.Itoa(int(port))},
	}
}

// ParseLine reads one line of `ss -ltnp` output, e.g.
//
//	LISTEN 0 128 127.0.0.1:8080 0.0.0.0:* users:(("nginx",pid=1234,fd=6))
//
// When several processes share the socket only the first one is returned.
func (b *linuxBackend) ParseLine(line string) (model.ProcessRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || isSSHeader(fields[0]) {
		return model.ProcessRecord{}, false
	}
	idx := strings.Index(line, ssUsersMarker)
	if idx < 0 {
		return model.ProcessRecord{}, false
	}
	port, ok := ssLocalPort(fields)
	if !ok {
		return model.ProcessRecord{}, false
	}
	users := line[idx+len(ssUsersMarker):]
	pid, ok := ssPID(users)
	if !ok {
		return model.ProcessRecord{}, false
	}
	return model.ProcessRecord{Port: port, PID: pid, ProcessName: ssName(users)}, true
}

// NeedsElevation reports a LISTEN line for port that carries no users:
// section, which is what ss prints for sockets of other users.
func (b *linuxBackend) NeedsElevation(lines []string, port uint16) bool {
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "LISTEN" || strings.Contains(line, ssUsersMarker) {
			continue
		}
		if p, ok := ssLocalPort(fields); ok && p == port {
			return true
		}
	}
	return false
}

func (b *linuxBackend) Enrich(ctx context.Context, pid int32) model.Extra {
	return b.chains.resolve(ctx, pid, b.now(), b.log)
}

func isSSHeader(first string) bool {
	switch first {
	case "State", "Netid", "Recv-Q":
		return true
	}
	return false
}

// ssLocalPort picks the first address-looking column. Column positions shift
// between ss versions (Netid is optional), so no fixed index is used.
func ssLocalPort(fields []string) (uint16, bool) {
	for _, f := range fields {
		if strings.HasPrefix(f, "users:") {
			break
		}
		if !strings.Contains(f, ":") {
			continue
		}
		if p, ok := portAfterLastColon(f); ok {
			return p, true
		}
	}
	return 0, false
}

func ssPID(users string) (int32, bool) {
	i := strings.Index(users, "pid=")
	if i < 0 {
		return 0, false
	}
	rest := users[i+len("pid="):]
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0, false
	}
	if end > 0 {
		rest = rest[:end]
	}
	return parsePID(rest)
}

func ssName(users string) string {
	start := strings.IndexByte(users, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(users[start+1:], '"')
	if end < 0 {
		return ""
	}
	return users[start+1 : start+1+end]
}
