package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/loykin/portcheck/internal/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

var (
	fixtureStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	nginx = model.ProcessRecord{
		Port:        8080,
		PID:         1234,
		ProcessName: "nginx",
		Extra: model.Extra{
			User:      "www-data",
			Command:   "nginx -g daemon off;",
			TTY:       "pts/0",
			StartTime: fixtureStart,
			Uptime:    time.Hour + 2*time.Minute + 3*time.Second,
		},
	}
	worker = model.ProcessRecord{Port: 8080, PID: 1235, ProcessName: "nginx", Extra: model.Extra{User: "www-data", Command: "nginx: worker"}}
)

func render(t *testing.T, f Format, opts Options, port uint16, recs []model.ProcessRecord) string {
	t.Helper()
	r, err := New(f, opts)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, port, recs))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"human", "json", "yaml", "toml", "xml", "toon", " JSON "} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.Contains(t, err.Error(), "human, json, yaml, toml, xml, toon")

	assert.False(t, FormatHuman.Structured())
	assert.True(t, FormatTOON.Structured())
}

func TestDocumentShapes(t *testing.T) {
	free, ok := Document(9999, nil, false).(PortStatus)
	require.True(t, ok)
	assert.Equal(t, PortStatus{Port: 9999, Status: StatusFree}, free)

	one, ok := Document(8080, []model.ProcessRecord{nginx}, false).(PortStatus)
	require.True(t, ok)
	assert.Equal(t, StatusInUse, one.Status)
	assert.Empty(t, one.TTY, "extra fields need --extra")
	assert.Zero(t, one.StartTime)

	many, ok := Document(8080, []model.ProcessRecord{nginx, worker}, true).([]PortStatus)
	require.True(t, ok)
	require.Len(t, many, 2)
	assert.Equal(t, "pts/0", many[0].TTY)
	assert.Equal(t, fixtureStart.Unix(), many[0].StartTime)
	assert.Equal(t, int64(3723), many[0].UptimeSeconds)
	assert.Zero(t, many[1].StartTime)
}

func TestJSONFree(t *testing.T) {
	out := render(t, FormatJSON, Options{}, 9999, nil)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, map[string]any{"port": float64(9999), "status": "free"}, m)
	assert.True(t, strings.HasPrefix(out, "{\n  \"port\": 9999"))
}

func TestJSONList(t *testing.T) {
	out := render(t, FormatJSON, Options{Extra: true}, 8080, []model.ProcessRecord{nginx, worker})
	var docs []PortStatus
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, int32(1234), docs[0].PID)
	assert.Equal(t, "nginx: worker", docs[1].Command)
}

func TestYAMLSingleAndSeparator(t *testing.T) {
	r, err := New(FormatYAML, Options{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, 8080, []model.ProcessRecord{nginx}))
	require.NoError(t, r.Render(&buf, 9999, nil))

	dec := yaml.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "in_use", first["status"])
	assert.Equal(t, 1234, first["pid"])
	assert.Equal(t, "free", second["status"])
	_, hasPID := second["pid"]
	assert.False(t, hasPID)
}

func TestTOMLListUsesProcessesTables(t *testing.T) {
	out := render(t, FormatTOML, Options{}, 8080, []model.ProcessRecord{nginx, worker})
	assert.Contains(t, out, "[[processes]]")
	var got tomlProcesses
	require.NoError(t, toml.Unmarshal([]byte(out), &got))
	require.Len(t, got.Processes, 2)
	assert.Equal(t, int32(1235), got.Processes[1].PID)
	assert.Equal(t, StatusInUse, got.Processes[1].Status)
}

func TestTOMLSingle(t *testing.T) {
	out := render(t, FormatTOML, Options{Extra: true}, 8080, []model.ProcessRecord{nginx})
	var got PortStatus
	require.NoError(t, toml.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint16(8080), got.Port)
	assert.Equal(t, "pts/0", got.TTY)
	assert.Equal(t, int64(3723), got.UptimeSeconds)
}

func TestXMLListRoot(t *testing.T) {
	out := render(t, FormatXML, Options{}, 8080, []model.ProcessRecord{nginx, worker})
	assert.True(t, strings.HasPrefix(out, xml.Header))
	var got portStatusList
	require.NoError(t, xml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "port_statuses", got.XMLName.Local)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "nginx: worker", got.Items[1].Command)
}

// renderRun renders a three-port run: free, two listeners, failed.
func renderRun(t *testing.T, f Format) string {
	t.Helper()
	r, err := New(f, Options{Ports: 3})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, 80, nil))
	require.NoError(t, r.Render(&buf, 8080, []model.ProcessRecord{nginx, worker}))
	require.NoError(t, r.RenderError(&buf, 22, errors.New("failed to run ss: boom")))
	require.NoError(t, r.Finish(&buf))
	return buf.String()
}

func TestXMLMultiPortRunHasSingleRoot(t *testing.T) {
	out := renderRun(t, FormatXML)
	assert.Equal(t, 1, strings.Count(out, "<?xml"))

	dec := xml.NewDecoder(strings.NewReader(out))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	assert.Equal(t, 1, roots)

	type member struct {
		Port    uint16 `xml:"port"`
		Status  string `xml:"status"`
		PID     int32  `xml:"pid"`
		Message string `xml:"message"`
	}
	var got struct {
		XMLName  xml.Name `xml:"port_check"`
		Statuses []member `xml:"port_status"`
		Lists    []struct {
			Items []member `xml:"port_status"`
		} `xml:"port_statuses"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &got))
	require.Len(t, got.Statuses, 2)
	assert.Equal(t, member{Port: 80, Status: "free"}, got.Statuses[0])
	assert.Equal(t, member{Port: 22, Status: "error", Message: "failed to run ss: boom"}, got.Statuses[1])
	require.Len(t, got.Lists, 1)
	require.Len(t, got.Lists[0].Items, 2)
	assert.Equal(t, int32(1235), got.Lists[0].Items[1].PID)
}

func TestTOMLMultiPortRunIsOneDocument(t *testing.T) {
	out := renderRun(t, FormatTOML)
	var got struct {
		Ports []struct {
			Port      uint16 `toml:"port"`
			Status    string `toml:"status"`
			Message   string `toml:"message"`
			Processes []struct {
				PID     int32  `toml:"pid"`
				Process string `toml:"process"`
			} `toml:"processes"`
		} `toml:"ports"`
	}
	require.NoError(t, toml.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Ports, 3)

	assert.Equal(t, uint16(80), got.Ports[0].Port)
	assert.Equal(t, "free", got.Ports[0].Status)
	assert.Empty(t, got.Ports[0].Processes)

	assert.Equal(t, "in_use", got.Ports[1].Status)
	require.Len(t, got.Ports[1].Processes, 2)
	assert.Equal(t, int32(1234), got.Ports[1].Processes[0].PID)
	assert.Equal(t, int32(1235), got.Ports[1].Processes[1].PID)

	assert.Equal(t, uint16(22), got.Ports[2].Port)
	assert.Equal(t, "error", got.Ports[2].Status)
	assert.Equal(t, "failed to run ss: boom", got.Ports[2].Message)
}

func TestSinglePortRunKeepsBareDocument(t *testing.T) {
	r, err := New(FormatXML, Options{Ports: 1})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, 9999, nil))
	require.NoError(t, r.Finish(&buf))
	assert.NotContains(t, buf.String(), "port_check")
	assert.True(t, strings.HasSuffix(buf.String(), "</port_status>\n"))
}

func TestXMLFreeOmitsProcessFields(t *testing.T) {
	out := render(t, FormatXML, Options{}, 9999, nil)
	assert.Contains(t, out, "<port_status>")
	assert.Contains(t, out, "<status>free</status>")
	assert.NotContains(t, out, "<pid>")
}

func TestTOONObject(t *testing.T) {
	out := render(t, FormatTOON, Options{}, 8080, []model.ProcessRecord{nginx})
	want := "port: 8080\n" +
		"status: in_use\n" +
		"process: nginx\n" +
		"pid: 1234\n" +
		"user: www-data\n" +
		"command: nginx -g daemon off;\n"
	assert.Equal(t, want, out)
}

func TestTOONTabular(t *testing.T) {
	a := model.ProcessRecord{Port: 80, PID: 901, ProcessName: "nginx"}
	b := model.ProcessRecord{Port: 80, PID: 902, ProcessName: "nginx"}
	out := render(t, FormatTOON, Options{}, 80, []model.ProcessRecord{a, b})
	want := "[2]{port,status,process,pid}:\n" +
		"  80,in_use,nginx,901\n" +
		"  80,in_use,nginx,902\n"
	assert.Equal(t, want, out)
}

func TestTOONMixedListFallsBackToItems(t *testing.T) {
	out := render(t, FormatTOON, Options{}, 8080, []model.ProcessRecord{worker, {Port: 8080, PID: 7}})
	want := "[2]:\n" +
		"  - port: 8080\n" +
		"    status: in_use\n" +
		"    process: nginx\n" +
		"    pid: 1235\n" +
		"    user: www-data\n" +
		"    command: \"nginx: worker\"\n" +
		"  - port: 8080\n" +
		"    status: in_use\n" +
		"    pid: 7\n"
	assert.Equal(t, want, out)
}

func TestTOONQuoting(t *testing.T) {
	cases := map[string]string{
		"nginx":        "nginx",
		"":             `""`,
		"true":         `"true"`,
		"42":           `"42"`,
		"-x":           `"-x"`,
		" padded":      `" padded"`,
		"a,b":          `"a,b"`,
		`C:\bin\x.exe`: `"C:\\bin\\x.exe"`,
		"say \"hi\"":   `"say \"hi\""`,
		"tab\there":    `"tab\there"`,
		"ñandú":        "ñandú",
	}
	for in, want := range cases {
		assert.Equal(t, want, toonString(in), in)
	}
}

func TestStructuredErrorDocuments(t *testing.T) {
	boom := errors.New(`failed to run ss: permission "denied"`)
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOML, FormatXML, FormatTOON} {
		r, err := New(f, Options{})
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, r.RenderError(&buf, 22, boom), f)
		out := buf.String()
		assert.Contains(t, out, "error", f)
		assert.Contains(t, out, "22", f)
	}

	r, _ := New(FormatJSON, Options{})
	var buf bytes.Buffer
	require.NoError(t, r.RenderError(&buf, 22, boom))
	var doc ErrorStatus
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, ErrorStatus{Port: 22, Status: StatusError, Message: boom.Error()}, doc)
}

func TestHumanFree(t *testing.T) {
	out := render(t, FormatHuman, Options{}, 9999, nil)
	assert.Equal(t, "✓ Port 9999 is free\n", out)
}

func TestHumanInUse(t *testing.T) {
	out := render(t, FormatHuman, Options{}, 8080, []model.ProcessRecord{nginx})
	want := "● Port 8080 is in use\n\n" +
		"  Process:  nginx\n" +
		"  PID:      1234\n" +
		"  User:     www-data\n" +
		"\n" +
		"  Command:  nginx -g daemon off;\n" +
		"\n"
	assert.Equal(t, want, out)
}

func TestHumanExtra(t *testing.T) {
	out := render(t, FormatHuman, Options{Extra: true, Location: time.UTC}, 8080, []model.ProcessRecord{nginx})
	assert.Contains(t, out, "  TTY:      pts/0\n")
	assert.Contains(t, out, "  Since:    2024-03-01 12:00:00\n")
	assert.Contains(t, out, "  Uptime:   1:02:03\n")
}

func TestHumanMissingFieldsUseDash(t *testing.T) {
	out := render(t, FormatHuman, Options{Extra: true}, 443, []model.ProcessRecord{{Port: 443, PID: 5678}})
	assert.Contains(t, out, "  Process:  -\n")
	assert.Contains(t, out, "  User:     -\n")
	assert.Contains(t, out, "  Command:  -\n")
	assert.NotContains(t, out, "TTY:")
	assert.NotContains(t, out, "Uptime:")
}

func TestHumanColor(t *testing.T) {
	out := render(t, FormatHuman, Options{Color: true}, 9999, nil)
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "9999")
}

func TestHumanError(t *testing.T) {
	r, err := New(FormatHuman, Options{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.RenderError(&buf, 80, errors.New("failed to run ss: not found")))
	assert.Equal(t, "Error: failed to run ss: not found\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                            "00:00",
		59 * time.Second:             "00:59",
		61 * time.Second:             "01:01",
		time.Hour:                    "1:00:00",
		26*time.Hour + 5*time.Second: "26:00:05",
		-time.Second:                 "00:00",
	}
	for d, want := range cases {
		assert.Equal(t, want, FormatDuration(d), d.String())
	}
}
