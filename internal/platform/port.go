package platform

import (
	"strconv"
	"strings"
)

// portAfterLastColon extracts the port of an address like 127.0.0.1:8080,
// [::]:8080 or *:8080.
func portAfterLastColon(addr string) (uint16, bool) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 || i == len(addr)-1 {
		return 0, false
	}
	p, err := strconv.ParseUint(addr[i+1:], 10, 16)
	if err != nil || p == 0 {
		return 0, false
	}
	return uint16(p), true
}

func parsePID(s string) (int32, bool) {
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil || v == 0 {
		return 0, false
	}
	return int32(v), true
}
