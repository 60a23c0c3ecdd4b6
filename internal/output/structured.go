package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/loykin/portcheck/internal/model"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

// portStatusList wraps several records so XML has a single root.
type portStatusList struct {
	XMLName xml.Name     `xml:"port_statuses"`
	Items   []PortStatus `xml:"port_status"`
}

// tomlProcesses wraps several records as a [[processes]] array of tables.
type tomlProcesses struct {
	Processes []PortStatus `toml:"processes"`
}

// xmlRunRoot encloses every document of a multi-port XML run.
const xmlRunRoot = "port_check"

// tomlPort is one [[ports]] entry of a multi-port TOML run. Each port is
// encoded on its own; appended [[ports]] tables still form one valid file.
type tomlPort struct {
	Port      uint16       `toml:"port"`
	Status    Status       `toml:"status"`
	Message   string       `toml:"message,omitempty"`
	Processes []PortStatus `toml:"processes,omitempty"`
}

type tomlRun struct {
	Ports []tomlPort `toml:"ports"`
}

func tomlEntry(doc any) tomlPort {
	switch d := doc.(type) {
	case PortStatus:
		if d.Status == StatusFree {
			return tomlPort{Port: d.Port, Status: d.Status}
		}
		return tomlPort{Port: d.Port, Status: d.Status, Processes: []PortStatus{d}}
	case []PortStatus:
		var port uint16
		if len(d) > 0 {
			port = d[0].Port
		}
		return tomlPort{Port: port, Status: StatusInUse, Processes: d}
	case ErrorStatus:
		return tomlPort{Port: d.Port, Status: d.Status, Message: d.Message}
	}
	return tomlPort{}
}

type structured struct {
	format Format
	extra  bool
	multi  bool
	docs   *int
}

func newStructured(f Format, extra, multi bool) structured {
	return structured{format: f, extra: extra, multi: multi, docs: new(int)}
}

func (s structured) Render(w io.Writer, port uint16, recs []model.ProcessRecord) error {
	return s.write(w, Document(port, recs, s.extra))
}

func (s structured) RenderError(w io.Writer, port uint16, err error) error {
	return s.write(w, errorDocument(port, err))
}

func (s structured) Finish(w io.Writer) error {
	if s.multi && s.format == FormatXML && *s.docs > 0 {
		_, err := io.WriteString(w, "</"+xmlRunRoot+">\n")
		return err
	}
	return nil
}

func (s structured) write(w io.Writer, doc any) error {
	first := *s.docs == 0
	*s.docs++
	var err error
	switch {
	case s.multi && s.format == FormatXML:
		err = writeXMLMember(w, doc, first)
	case s.multi && s.format == FormatTOML:
		err = toml.NewEncoder(w).Encode(tomlRun{Ports: []tomlPort{tomlEntry(doc)}})
	default:
		err = Encode(w, s.format, doc, first)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.format, err)
	}
	return nil
}

// writeXMLMember writes doc indented inside the run root, opening the root
// before the first document.
func writeXMLMember(w io.Writer, doc any, first bool) error {
	if list, ok := doc.([]PortStatus); ok {
		doc = portStatusList{Items: list}
	}
	b, err := xml.MarshalIndent(doc, "  ", "  ")
	if err != nil {
		return err
	}
	if first {
		if _, err := io.WriteString(w, xml.Header+"<"+xmlRunRoot+">\n"); err != nil {
			return err
		}
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Encode writes doc in format f on its own. first is false for the second
// and later documents of one run, which YAML separates with "---".
func Encode(w io.Writer, f Format, doc any, first bool) error {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case FormatYAML:
		if !first {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		if list, ok := doc.([]PortStatus); ok {
			doc = tomlProcesses{Processes: list}
		}
		return toml.NewEncoder(w).Encode(doc)
	case FormatXML:
		if list, ok := doc.([]PortStatus); ok {
			doc = portStatusList{Items: list}
		}
		b, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if first {
			if _, err := io.WriteString(w, xml.Header); err != nil {
				return err
			}
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case FormatTOON:
		return encodeTOON(w, doc)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, string(f))
}
