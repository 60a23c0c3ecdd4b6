package platform

import (
	"context"
	"encoding/csv"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/probe"
)

type windowsBackend struct {
	log    *slog.Logger
	now    func() time.Time
	runner probe.Runner
	getenv func(string) string
	sys    *sysLookups
}

func newWindows(o Options) Backend {
	return &windowsBackend{log: o.Logger, now: o.Now, runner: o.Runner, getenv: o.Getenv, sys: o.sys}
}

func (b *windowsBackend) Name() string { return "windows" }

// BuildCommand lists every socket, IPv4 and IPv6 alike; `-p TCP` would hide
// listeners bound only to [::]. The filter keeps rows mentioning the port, the
// same job `findstr :<port>` does in a console. UDP rows are dropped by ParseLine.
func (b *windowsBackend) BuildCommand(port uint16) probe.CommandSpec {
	return probe.CommandSpec{
		Name:   "netstat",
		Args:   []string{"-ano"},
		Filter: ":" + strconv.Itoa(int(port)),
	}
}

// ParseLine reads one netstat -ano row:
//
//	TCP    0.0.0.0:443    0.0.0.0:0    LISTENING    5678
func (b *windowsBackend) ParseLine(line string) (model.ProcessRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "TCP" || fields[3] != "LISTENING" {
		return model.ProcessRecord{}, false
	}
	port, ok := portAfterLastColon(fields[1])
	if !ok {
		return model.ProcessRecord{}, false
	}
	pid, ok := parsePID(fields[len(fields)-1])
	if !ok {
		return model.ProcessRecord{}, false
	}
	return model.ProcessRecord{Port: port, PID: pid}, true
}

// Enrich asks tasklist for the owner and PowerShell for name and command line.
// Both are independent; either may fail without affecting the other.
func (b *windowsBackend) Enrich(ctx context.Context, pid int32) model.Extra {
	cim := b.cimProcess(ctx, pid)
	c := chains{
		name:    []lookup[string]{cim.nameLookup, b.sys.name},
		user:    []lookup[string]{b.tasklistUser, b.sys.user, b.sessionUser},
		command: []lookup[string]{cim.commandLookup, b.sys.command},
		start:   []lookup[time.Time]{b.sys.nativeStart, b.sys.start},
	}
	return c.resolve(ctx, pid, b.now(), b.log)
}

// tasklistUser reads the "User Name" column of `tasklist /V /FO CSV`.
func (b *windowsBackend) tasklistUser(ctx context.Context, pid int32) (string, bool) {
	spec := probe.CommandSpec{
		Name: "tasklist",
		Args: []string{"/FI", "PID eq " + strconv.Itoa(int(pid)), "/V", "/NH", "/FO", "CSV"},
	}
	lines, err := b.runner.Run(ctx, spec)
	if err != nil {
		b.log.Debug("tasklist failed", "pid", pid, "error", err)
		return "", false
	}
	return parseTasklistUser(lines, pid)
}

// Column order of tasklist /V: Image Name, PID, Session Name, Session#,
// Mem Usage, Status, User Name, CPU Time, Window Title.
const tasklistUserColumn = 6

func parseTasklistUser(lines []string, pid int32) (string, bool) {
	want := strconv.Itoa(int(pid))
	for _, line := range lines {
		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		row, err := r.Read()
		if err != nil || len(row) <= tasklistUserColumn || strings.TrimSpace(row[1]) != want {
			continue
		}
		u := strings.TrimSpace(row[tasklistUserColumn])
		if isUnresolvedAccount(u) {
			return "", false
		}
		return u, true
	}
	return "", false
}

// isUnresolvedAccount reports placeholders tasklist prints when it cannot or
// will not name the owner.
func isUnresolvedAccount(u string) bool {
	if u == "" || strings.EqualFold(u, "N/A") {
		return true
	}
	upper := strings.ToUpper(u)
	return strings.Contains(upper, "SERVICES") ||
		strings.HasSuffix(upper, `\LOCAL SERVICE`) ||
		strings.HasSuffix(upper, `\NETWORK SERVICE`)
}

// sessionUser is the last resort: the account running this console.
func (b *windowsBackend) sessionUser(context.Context, int32) (string, bool) {
	u := strings.TrimSpace(b.getenv("USERNAME"))
	return u, u != ""
}

// cimResult holds what one Win32_Process query returned.
type cimResult struct {
	name    string
	command string
}

func (c cimResult) nameLookup(context.Context, int32) (string, bool) {
	return c.name, c.name != ""
}

func (c cimResult) commandLookup(context.Context, int32) (string, bool) {
	return c.command, c.command != ""
}

// cimProcess runs a single PowerShell query printing Name and CommandLine on
// two lines. Output encoding is forced to UTF-8 because the console code page
// mangles non-ASCII names.
func (b *windowsBackend) cimProcess(ctx context.Context, pid int32) cimResult {
	lines, err := b.runner.Run(ctx, powershellSpec(pid))
	if err != nil {
		b.log.Debug("powershell query failed", "pid", pid, "error", err)
		return cimResult{}
	}
	return parseCIMOutput(lines)
}

func powershellSpec(pid int32) probe.CommandSpec {
	script := "[Console]::OutputEncoding=[Text.UTF8Encoding]::new(); " +
		"$p = Get-CimInstance Win32_Process -Filter 'ProcessId=" + strconv.Itoa(int(pid)) + "'; " +
		"if ($p) { $p.Name; $p.CommandLine }"
	return probe.CommandSpec{
		Name: "powershell",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", script},
	}
}

func parseCIMOutput(lines []string) cimResult {
	var res cimResult
	if len(lines) > 0 {
		res.name = strings.TrimSpace(strings.TrimPrefix(lines[0], "\ufeff"))
	}
	if len(lines) > 1 {
		res.command = strings.TrimSpace(strings.Join(lines[1:], " "))
	}
	return res
}
