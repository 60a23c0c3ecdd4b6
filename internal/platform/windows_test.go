package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loykin/portcheck/internal/model"
	"github.com/loykin/portcheck/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers by command name.
type fakeRunner struct {
	out   map[string][]string
	err   map[string]error
	calls []probe.CommandSpec
}

func (f *fakeRunner) Run(_ context.Context, spec probe.CommandSpec) ([]string, error) {
	f.calls = append(f.calls, spec)
	if err := f.err[spec.Name]; err != nil {
		return nil, err
	}
	return f.out[spec.Name], nil
}

func newTestWindows(t *testing.T, r *fakeRunner, env map[string]string, sys *sysLookups) *windowsBackend {
	t.Helper()
	if sys == nil {
		sys = &sysLookups{}
	}
	b, err := Detect("windows", Options{
		Runner: r,
		Getenv: func(k string) string { return env[k] },
		Now:    func() time.Time { return time.Unix(2000, 0) },
		sys:    sys,
	})
	require.NoError(t, err)
	return b.(*windowsBackend)
}

func TestWindowsBuildCommand(t *testing.T) {
	b := newTestWindows(t, &fakeRunner{}, nil, nil)
	spec := b.BuildCommand(443)
	assert.Equal(t, "netstat", spec.Name)
	assert.Equal(t, []string{"-ano"}, spec.Args)
	assert.Equal(t, ":443", spec.Filter)
}

func TestWindowsParseLine(t *testing.T) {
	b := newTestWindows(t, &fakeRunner{}, nil, nil)
	cases := []struct {
		name string
		line string
		want model.ProcessRecord
		ok   bool
	}{
		{"listening", "  TCP    0.0.0.0:443            0.0.0.0:0              LISTENING       5678", model.ProcessRecord{Port: 443, PID: 5678}, true},
		{"ipv6", "  TCP    [::]:8080              [::]:0                 LISTENING       4", model.ProcessRecord{Port: 8080, PID: 4}, true},
		{"established", "  TCP    10.0.0.5:443           10.0.0.9:50122         ESTABLISHED     5678", model.ProcessRecord{}, false},
		{"lowercase state", "  TCP    0.0.0.0:443            0.0.0.0:0              listening       5678", model.ProcessRecord{}, false},
		{"udp", "  UDP    0.0.0.0:443            *:*                                    5678", model.ProcessRecord{}, false},
		{"header", "  Proto  Local Address          Foreign Address        State           PID", model.ProcessRecord{}, false},
		{"pid not numeric", "  TCP    0.0.0.0:443            0.0.0.0:0              LISTENING       abc", model.ProcessRecord{}, false},
		{"pid negative", "  TCP    0.0.0.0:443            0.0.0.0:0              LISTENING       -5", model.ProcessRecord{}, false},
		{"pid zero", "  TCP    0.0.0.0:443            0.0.0.0:0              LISTENING       0", model.ProcessRecord{}, false},
		{"short", "TCP 0.0.0.0:443 LISTENING", model.ProcessRecord{}, false},
		{"empty", "", model.ProcessRecord{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := b.ParseLine(tc.line)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWindowsEnrich(t *testing.T) {
	r := &fakeRunner{out: map[string][]string{
		"tasklist":   {`"nginx.exe","5678","Console","1","12,345 K","Running","DESKTOP-1\alice","0:00:01","N/A"`},
		"powershell": {"\ufeffnginx.exe", `C:\nginx\nginx.exe -p C:\nginx`},
	}}
	start := time.Unix(1000, 0)
	sys := &sysLookups{nativeStart: func(context.Context, int32) (time.Time, bool) { return start, true }}
	b := newTestWindows(t, r, map[string]string{"USERNAME": "fallback"}, sys)

	e := b.Enrich(context.Background(), 5678)
	assert.Equal(t, "nginx.exe", e.Name)
	assert.Equal(t, `DESKTOP-1\alice`, e.User)
	assert.Equal(t, `C:\nginx\nginx.exe -p C:\nginx`, e.Command)
	assert.Empty(t, e.TTY)
	assert.True(t, start.Equal(e.StartTime))
	assert.Equal(t, 1000*time.Second, e.Uptime)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "powershell", r.calls[0].Name)
	script := r.calls[0].Args[len(r.calls[0].Args)-1]
	assert.True(t, strings.HasPrefix(script, "[Console]::OutputEncoding=[Text.UTF8Encoding]::new();"))
	assert.Contains(t, script, "ProcessId=5678")
	assert.Equal(t, "tasklist", r.calls[1].Name)
	assert.Contains(t, r.calls[1].Args, "PID eq 5678")
}

func TestWindowsEnrichFallsBackToSessionUser(t *testing.T) {
	r := &fakeRunner{
		out: map[string][]string{
			"tasklist": {`"svchost.exe","900","Services","0","8,000 K","Unknown","N/A","0:00:00","N/A"`},
		},
		err: map[string]error{"powershell": &probe.ExecutionFailed{Command: "powershell", Reason: "not found"}},
	}
	b := newTestWindows(t, r, map[string]string{"USERNAME": "alice"}, nil)
	e := b.Enrich(context.Background(), 900)
	assert.Equal(t, "alice", e.User)
	assert.Empty(t, e.Name)
	assert.Empty(t, e.Command)
	assert.False(t, e.HasStartTime())
}

func TestWindowsEnrichAllFailuresAreAbsent(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeRunner{err: map[string]error{"tasklist": boom, "powershell": boom}}
	b := newTestWindows(t, r, nil, nil)
	assert.Equal(t, model.Extra{}, b.Enrich(context.Background(), 1))
}

func TestParseTasklistUser(t *testing.T) {
	cases := []struct {
		name  string
		lines []string
		want  string
		ok    bool
	}{
		{"user", []string{`"a.exe","10","Console","1","1 K","Running","HOST\bob","0:00:00","x"`}, `HOST\bob`, true},
		{"system", []string{`"a.exe","10","Services","0","1 K","Unknown","NT AUTHORITY\SYSTEM","0:00:00","N/A"`}, `NT AUTHORITY\SYSTEM`, true},
		{"na", []string{`"a.exe","10","Services","0","1 K","Unknown","N/A","0:00:00","N/A"`}, "", false},
		{"local service", []string{`"a.exe","10","Services","0","1 K","Unknown","NT AUTHORITY\LOCAL SERVICE","0:00:00","N/A"`}, "", false},
		{"network service", []string{`"a.exe","10","Services","0","1 K","Unknown","NT AUTHORITY\NETWORK SERVICE","0:00:00","N/A"`}, "", false},
		{"other pid", []string{`"a.exe","11","Console","1","1 K","Running","HOST\bob","0:00:00","x"`}, "", false},
		{"no tasks", []string{"INFO: No tasks are running which match the specified criteria."}, "", false},
		{"broken csv", []string{`"a.exe,"10`}, "", false},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseTasklistUser(tc.lines, 10)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCIMOutput(t *testing.T) {
	assert.Equal(t, cimResult{}, parseCIMOutput(nil))
	assert.Equal(t, cimResult{name: "System"}, parseCIMOutput([]string{"System"}))
	assert.Equal(t, cimResult{name: "ñandú.exe", command: `"C:\ñandú.exe" --serve`},
		parseCIMOutput([]string{"ñandú.exe", `"C:\ñandú.exe" --serve`}))
}
