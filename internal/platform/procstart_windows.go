//go:build windows

package platform

import (
	"context"
	"time"

	"golang.org/x/sys/windows"
)

// nativeStartTime asks the kernel for the creation time of pid. The limited
// query right is enough for processes owned by other accounts.
func nativeStartTime(_ context.Context, pid int32) (time.Time, bool) {
	if pid <= 0 {
		return time.Time{}, false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return time.Time{}, false
	}
	defer func() { _ = windows.CloseHandle(h) }()

	var created, exited, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &created, &exited, &kernel, &user); err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, created.Nanoseconds()), true
}
