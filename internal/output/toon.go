package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TOON (Token-Oriented Object Notation) writer for the documents of this
// package. Objects print as "key: value" lines; lists of objects sharing the
// same keys print as one tabular block:
//
//	[2]{port,status,process,pid}:
//	  80,in_use,nginx,901
//	  80,in_use,nginx,902

type toonField struct {
	key string
	val string
}

func (s PortStatus) toonFields() []toonField {
	fs := []toonField{
		{"port", strconv.Itoa(int(s.Port))},
		{"status", toonString(string(s.Status))},
	}
	add := func(key, v string) {
		if v != "" {
			fs = append(fs, toonField{key, toonString(v)})
		}
	}
	addInt := func(key string, v int64) {
		if v != 0 {
			fs = append(fs, toonField{key, strconv.FormatInt(v, 10)})
		}
	}
	add("process", s.Process)
	addInt("pid", int64(s.PID))
	add("user", s.User)
	add("command", s.Command)
	add("tty", s.TTY)
	addInt("start_time", s.StartTime)
	addInt("uptime_seconds", s.UptimeSeconds)
	return fs
}

func (s ErrorStatus) toonFields() []toonField {
	return []toonField{
		{"port", strconv.Itoa(int(s.Port))},
		{"status", toonString(string(s.Status))},
		{"message", toonString(s.Message)},
	}
}

func encodeTOON(w io.Writer, doc any) error {
	var sb strings.Builder
	switch d := doc.(type) {
	case PortStatus:
		writeTOONObject(&sb, d.toonFields(), "")
	case ErrorStatus:
		writeTOONObject(&sb, d.toonFields(), "")
	case []PortStatus:
		rows := make([][]toonField, len(d))
		for i, s := range d {
			rows[i] = s.toonFields()
		}
		writeTOONList(&sb, rows)
	default:
		return fmt.Errorf("toon: unsupported document %T", doc)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTOONObject(sb *strings.Builder, fs []toonField, indent string) {
	for _, f := range fs {
		sb.WriteString(indent + f.key + ": " + f.val + "\n")
	}
}

func writeTOONList(sb *strings.Builder, rows [][]toonField) {
	if keys, ok := uniformKeys(rows); ok {
		fmt.Fprintf(sb, "[%d]{%s}:\n", len(rows), strings.Join(keys, ","))
		for _, row := range rows {
			vals := make([]string, len(row))
			for i, f := range row {
				vals[i] = f.val
			}
			sb.WriteString("  " + strings.Join(vals, ",") + "\n")
		}
		return
	}
	fmt.Fprintf(sb, "[%d]:\n", len(rows))
	for _, row := range rows {
		for i, f := range row {
			prefix := "    "
			if i == 0 {
				prefix = "  - "
			}
			sb.WriteString(prefix + f.key + ": " + f.val + "\n")
		}
	}
}

// uniformKeys reports the shared key order when every row has the same keys.
func uniformKeys(rows [][]toonField) ([]string, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	keys := make([]string, len(rows[0]))
	for i, f := range rows[0] {
		keys[i] = f.key
	}
	for _, row := range rows[1:] {
		if len(row) != len(keys) {
			return nil, false
		}
		for i, f := range row {
			if f.key != keys[i] {
				return nil, false
			}
		}
	}
	return keys, true
}

// toonString quotes s when it would otherwise read as another type or
// collide with TOON syntax.
func toonString(s string) string {
	if !toonNeedsQuotes(s) {
		return s
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func toonNeedsQuotes(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if strings.HasPrefix(s, "-") {
		return true
	}
	return strings.ContainsAny(s, ",:\"\\[]{}\n\r\t")
}
