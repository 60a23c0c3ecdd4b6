//go:build windows

package platform

func clockTicks() int64 { return 100 }
