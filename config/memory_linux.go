//go:build linux

package config

import "syscall"

// physicalRAMBytes reports total physical RAM via the kernel's sysinfo(2),
// falling back to a fixed default if the call fails.
func physicalRAMBytes() int64 {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return defaultPhysicalRAMBytes
	}
	return int64(info.Totalram) * int64(info.Unit)
}
