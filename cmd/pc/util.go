package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/loykin/portcheck/internal/resolver"
	"github.com/mattn/go-isatty"
)

// parsePorts validates every argument before any lookup runs.
func parsePorts(args []string) ([]uint16, error) {
	ports := make([]uint16, 0, len(args))
	for _, a := range args {
		p, err := strconv.ParseUint(a, 10, 16)
		if err != nil || p == 0 {
			return nil, fmt.Errorf("%w %q: port must be a number between 1-65535", resolver.ErrInvalidPort, a)
		}
		ports = append(ports, uint16(p))
	}
	return ports, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// colorEnabled follows --no-color/no_color and the NO_COLOR convention.
func colorEnabled(w io.Writer, noColor bool, term func(io.Writer) bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" || term == nil {
		return false
	}
	return term(w)
}
