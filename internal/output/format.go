// Package output renders lookup results for people and for programs.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/loykin/portcheck/internal/model"
)

type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatXML   Format = "xml"
	FormatTOON  Format = "toon"
)

// ErrUnknownFormat is returned by ParseFormat for names it does not know.
var ErrUnknownFormat = errors.New("unknown output format")

var formats = []Format{FormatHuman, FormatJSON, FormatYAML, FormatTOML, FormatXML, FormatTOON}

// Formats lists the accepted format names in display order.
func Formats() []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

func ParseFormat(s string) (Format, error) {
	want := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range formats {
		if f == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
}

// Structured reports whether f is meant for programs rather than people.
func (f Format) Structured() bool { return f != FormatHuman }

// Options tunes rendering.
type Options struct {
	// Extra adds tty, start time and uptime.
	Extra bool
	// Color enables ANSI styling in human output.
	Color bool
	// Location is used for human timestamps; nil means time.Local.
	Location *time.Location
	// Ports is how many ports the run will render. Above one, XML and TOML
	// collect every port under a single root.
	Ports int
}

// Renderer writes one port's result.
type Renderer interface {
	// Render writes the records found for port; none means the port is free.
	Render(w io.Writer, port uint16, recs []model.ProcessRecord) error
	// RenderError writes a failed lookup for port.
	RenderError(w io.Writer, port uint16, err error) error
	// Finish closes whatever the run opened, such as an XML root element.
	Finish(w io.Writer) error
}

func New(f Format, opts Options) (Renderer, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	switch f {
	case FormatHuman:
		return newHuman(opts), nil
	case FormatJSON, FormatYAML, FormatTOML, FormatXML, FormatTOON:
		return newStructured(f, opts.Extra, opts.Ports > 1), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, string(f))
}
