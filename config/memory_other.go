//go:build !linux

package config

// physicalRAMBytes has no portable standard-library way to query total
// physical RAM outside Linux's sysinfo(2); a fixed conservative default
// stands in on other platforms.
func physicalRAMBytes() int64 {
	return defaultPhysicalRAMBytes
}
