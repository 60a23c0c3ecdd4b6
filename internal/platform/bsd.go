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

const lsofListen = "(LISTEN)"

// bsdBackend covers macOS and the BSDs, which all ship lsof.
type bsdBackend struct {
	log    *slog.Logger
	now    func() time.Time
	chains chains
}

func newBSD(o Options) Backend {
	return &bsdBackend{
		log: o.Logger,
		now: o.Now,
		chains: chains{
			name:    []lookup[string]{o.sys.name},
			user:    []lookup[string]{o.sys.user},
			command: []lookup[string]{o.sys.command},
			tty:     []lookup[string]{o.sys.tty},
			start:   []lookup[time.Time]{o.sys.start},
		},
	}
}

func (b *bsdBackend) Name() string { return "bsd" }

// BuildCommand asks lsof for the full COMMAND width (+c 0); the default cuts
// names at 9 bytes.
func (b *bsdBackend) BuildCommand(port uint16) probe.CommandSpec {
	return probe.CommandSpec{
		Name: "lsof",
		Args: []string{"+c", "0", "-nP", "-iTCP:" + strconv.Itoa(int(port)), "-sTCP:LISTEN"},
	}
}

// ParseLine reads one row of lsof output:
//
//	COMMAND  PID USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
//	nginx   1234 www    6u  IPv4 0x3c9a0b0d8e1f2a3b      0t0  TCP *:8080 (LISTEN)
//
// COMMAND, PID and USER are read from the left; NAME from the right, since
// DEVICE and SIZE/OFF are occasionally blank.
func (b *bsdBackend) ParseLine(line string) (model.ProcessRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] == "COMMAND" {
		return model.ProcessRecord{}, false
	}
	if fields[len(fields)-1] != lsofListen {
		return model.ProcessRecord{}, false
	}
	pid, ok := parsePID(fields[1])
	if !ok {
		return model.ProcessRecord{}, false
	}
	port, ok := portAfterLastColon(fields[len(fields)-2])
	if !ok {
		return model.ProcessRecord{}, false
	}
	return model.ProcessRecord{
		Port:        port,
		PID:         pid,
		ProcessName: unescapeLsof(fields[0]),
		Extra:       model.Extra{User: fields[2]},
	}, true
}

func (b *bsdBackend) Enrich(ctx context.Context, pid int32) model.Extra {
	return b.chains.resolve(ctx, pid, b.now(), b.log)
}

// unescapeLsof undoes the \xNN escaping lsof applies to non-printable and
// blank characters in COMMAND.
func unescapeLsof(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				sb.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
