package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/loykin/portcheck/internal/model"
	"github.com/muesli/termenv"
)

const labelWidth = 9

type human struct {
	opts Options

	free, busy, port, label, name, command, errLabel lipgloss.Style
}

func newHuman(opts Options) *human {
	r := lipgloss.NewRenderer(io.Discard)
	if opts.Color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &human{
		opts:     opts,
		free:     r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		busy:     r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		port:     r.NewStyle().Foreground(lipgloss.Color("6")),
		label:    r.NewStyle().Bold(true),
		name:     r.NewStyle().Foreground(lipgloss.Color("3")),
		command:  r.NewStyle().Faint(true),
		errLabel: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (h *human) Render(w io.Writer, port uint16, recs []model.ProcessRecord) error {
	var sb strings.Builder
	if len(recs) == 0 {
		fmt.Fprintf(&sb, "%s Port %s is %s\n",
			h.free.Render("✓"), h.port.Render(strconv.Itoa(int(port))), h.free.UnsetBold().Render("free"))
	}
	for _, r := range recs {
		h.block(&sb, r)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (h *human) block(sb *strings.Builder, r model.ProcessRecord) {
	fmt.Fprintf(sb, "%s Port %s is %s\n\n",
		h.busy.Render("●"), h.port.Render(strconv.Itoa(int(r.Port))), h.busy.UnsetBold().Render("in use"))

	h.row(sb, "Process:", h.name.Render(orDash(r.ProcessName)))
	h.row(sb, "PID:", strconv.Itoa(int(r.PID)))
	h.row(sb, "User:", orDash(r.User))
	if h.opts.Extra {
		if r.TTY != "" {
			h.row(sb, "TTY:", r.TTY)
		}
		if r.HasStartTime() {
			h.row(sb, "Since:", r.StartTime.In(h.opts.Location).Format(time.DateTime))
			h.row(sb, "Uptime:", FormatDuration(r.Uptime))
		}
	}
	sb.WriteString("\n")
	h.row(sb, "Command:", h.command.Render(orDash(r.Command)))
	sb.WriteString("\n")
}

func (h *human) row(sb *strings.Builder, label, value string) {
	pad := strings.Repeat(" ", max(labelWidth-len(label), 0)+1)
	sb.WriteString("  " + h.label.Render(label) + pad + value + "\n")
}

// RenderError prints "Error: <message>"; the caller picks the stream.
func (h *human) RenderError(w io.Writer, _ uint16, err error) error {
	_, werr := fmt.Fprintf(w, "%s %s\n", h.errLabel.Render("Error:"), err)
	return werr
}

func (h *human) Finish(io.Writer) error { return nil }

// FormatDuration prints h:mm:ss, or mm:ss under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	hrs, mins, s := secs/3600, (secs%3600)/60, secs%60
	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
