package main

import (
	"strings"
	"time"

	"github.com/loykin/portcheck/internal/output"
	"github.com/spf13/cobra"
)

// CheckFlags decouples cobra from the check logic for testing.
// Values set here are only authoritative when the flag was given; otherwise
// config file and PC_* environment values apply.
type CheckFlags struct {
	ConfigPath  string
	Format      string
	Extra       bool
	NoColor     bool
	Sudo        bool
	Verbose     bool
	Timeout     time.Duration
	MetricsFile string
}

func (f *CheckFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.Format, "format", "f", "human", "output format: "+strings.Join(output.Formats(), ", "))
	fs.BoolVarP(&f.Extra, "extra", "x", false, "show extra process information (TTY, start time, uptime)")
	fs.BoolVar(&f.NoColor, "no-color", false, "disable colored output")
	fs.BoolVar(&f.Sudo, "sudo", false, "re-run the probe with sudo -n when a listener's owner is hidden")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "log lookup details to stderr")
	fs.DurationVar(&f.Timeout, "timeout", 0, "per-port lookup timeout (0 = none)")
	fs.StringVar(&f.ConfigPath, "config", "", "path to TOML config file (optional)")
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "write Prometheus lookup metrics to this textfile on exit")
}
