//go:build !windows

package platform

import "github.com/tklauser/go-sysconf"

// clockTicks returns USER_HZ, the unit of the time fields in /proc/<pid>/stat.
func clockTicks() int64 {
	clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clk <= 0 {
		return 100
	}
	return clk
}
