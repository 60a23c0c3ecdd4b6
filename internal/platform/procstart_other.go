//go:build !windows

package platform

import (
	"context"
	"time"
)

// nativeStartTime has no syscall-level implementation outside Windows; the
// procfs and gopsutil strategies cover the other platforms.
func nativeStartTime(context.Context, int32) (time.Time, bool) {
	return time.Time{}, false
}
