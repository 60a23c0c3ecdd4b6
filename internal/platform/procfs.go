package platform

import (
	"bufio"
	"context"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// procfs reads process metadata from a Linux /proc tree. root and passwd are
// configurable so tests can point them at fixtures.
type procfs struct {
	root   string
	passwd string
	clkTck func() int64
}

func (p procfs) path(pid int32, name string) string {
	return filepath.Join(p.root, strconv.Itoa(int(pid)), name)
}

func (p procfs) comm(_ context.Context, pid int32) (string, bool) {
	b, err := os.ReadFile(p.path(pid, "comm"))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(b))
	return name, name != ""
}

// uid returns the real uid from the Uid: line of /proc/<pid>/status.
func (p procfs) uid(pid int32) (string, bool) {
	f, err := os.Open(p.path(pid, "status"))
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Uid:"))
		if len(fields) == 0 {
			return "", false
		}
		if _, err := strconv.ParseUint(fields[0], 10, 32); err != nil {
			return "", false
		}
		return fields[0], true
	}
	return "", false
}

// user maps the owner uid to a login name, falling back to the numeric id.
func (p procfs) user(_ context.Context, pid int32) (string, bool) {
	uid, ok := p.uid(pid)
	if !ok {
		return "", false
	}
	if name, ok := lookupPasswd(p.passwd, uid); ok {
		return name, true
	}
	if u, err := user.LookupId(uid); err == nil && u.Username != "" {
		return u.Username, true
	}
	return uid, true
}

func lookupPasswd(path, uid string) (string, bool) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(b), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) > 2 && fields[2] == uid && fields[0] != "" {
			return fields[0], true
		}
	}
	return "", false
}

// cmdline joins the NUL-separated argv with single spaces, dropping empty
// segments. Kernel threads have an empty cmdline and yield nothing.
func (p procfs) cmdline(_ context.Context, pid int32) (string, bool) {
	b, err := os.ReadFile(p.path(pid, "cmdline"))
	if err != nil {
		return "", false
	}
	var args []string
	for _, a := range strings.Split(string(b), "\x00") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	if len(args) == 0 {
		return "", false
	}
	return strings.Join(args, " "), true
}

// statFields returns the fields of /proc/<pid>/stat after the "(comm)" entry,
// so index 0 is field 3 (state) of proc(5).
func (p procfs) statFields(pid int32) ([]string, bool) {
	b, err := os.ReadFile(p.path(pid, "stat"))
	if err != nil {
		return nil, false
	}
	line := string(b)
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return nil, false
	}
	return strings.Fields(line[end+2:]), true
}

func (p procfs) tty(_ context.Context, pid int32) (string, bool) {
	fields, ok := p.statFields(pid)
	if !ok || len(fields) < 5 {
		return "", false
	}
	nr, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return "", false
	}
	return ttyName(nr)
}

// ttyName decodes a tty_nr device number into the name ps(1) would print.
func ttyName(nr int64) (string, bool) {
	if nr <= 0 {
		return "", false
	}
	major := (nr >> 8) & 0xfff
	minor := (nr & 0xff) | ((nr >> 12) & 0xfff00)
	switch {
	case major >= 136 && major <= 143:
		return "pts/" + strconv.FormatInt((major-136)*256+minor, 10), true
	case major == 4 && minor < 64:
		return "tty" + strconv.FormatInt(minor, 10), true
	case major == 4:
		return "ttyS" + strconv.FormatInt(minor-64, 10), true
	case major == 5 && minor == 1:
		return "console", true
	}
	return "", false
}

// startTime combines starttime (field 22, clock ticks since boot) with btime
// from /proc/stat.
func (p procfs) startTime(_ context.Context, pid int32) (time.Time, bool) {
	fields, ok := p.statFields(pid)
	if !ok || len(fields) < 20 {
		return time.Time{}, false
	}
	startTicks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || startTicks <= 0 {
		return time.Time{}, false
	}
	btime, ok := p.bootTime()
	if !ok {
		return time.Time{}, false
	}
	clk := p.clkTck()
	if clk <= 0 {
		clk = 100
	}
	offset := time.Duration(startTicks) * time.Second / time.Duration(clk)
	return time.Unix(btime, 0).Add(offset), true
}

func (p procfs) bootTime() (int64, bool) {
	f, err := os.Open(filepath.Join(p.root, "stat"))
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		text := s.Text()
		if strings.HasPrefix(text, "btime ") {
			v := strings.TrimSpace(strings.TrimPrefix(text, "btime "))
			if bt, err := strconv.ParseInt(v, 10, 64); err == nil && bt > 0 {
				return bt, true
			}
		}
	}
	return 0, false
}
