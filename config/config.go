// Package config is the ambient configuration layer for the Frame Cache's
// size budget, viper-backed the way papapumpkin-quasar's command layer
// wires viper for its own settings: a compile-time default, overridable by
// an optional tcal.toml and then by an environment variable, in that
// increasing order of priority.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultCacheSizeMB is the compile-time default for FRAME_CACHE_SIZE_MB.
	DefaultCacheSizeMB = 512

	minCacheBytes             = 4 * 1024 * 1024
	defaultPhysicalRAMBytes   = 8 * 1024 * 1024 * 1024
)

// Config holds the Frame Cache's size configuration.
type Config struct {
	CacheSizeMB int
}

// Default returns the compile-time default configuration.
func Default() Config { return Config{CacheSizeMB: DefaultCacheSizeMB} }

// Load reads cache size configuration with priority
// default < tcal.toml < TCAL_CACHE_MB environment variable. A missing
// config file is not an error.
func Load() Config {
	v := viper.New()
	v.SetDefault("cache_size_mb", DefaultCacheSizeMB)
	v.SetConfigName("tcal")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	_ = v.BindEnv("cache_size_mb", "TCAL_CACHE_MB")
	_ = v.ReadInConfig()

	return Config{CacheSizeMB: v.GetInt("cache_size_mb")}
}

// CacheSizeBytes returns the configured cache size in bytes.
func (c Config) CacheSizeBytes() int64 { return int64(c.CacheSizeMB) * 1024 * 1024 }

// ClampCacheBytes enforces the Frame Cache's runtime bound on a requested
// byte budget: at least 4 MiB, at most a quarter of physical RAM.
//
// No library in the example corpus this module was grounded on detects
// physical memory (no gopsutil, no golang.org/x/sys Sysinfo usage
// anywhere in it), so this falls back to the standard library's
// syscall.Sysinfo on the one platform it's available, with a fixed
// conservative default elsewhere — see memory_linux.go/memory_other.go.
func ClampCacheBytes(requested int64) int64 {
	if requested < minCacheBytes {
		requested = minCacheBytes
	}
	if max := physicalRAMBytes() / 4; max > 0 && requested > max {
		requested = max
	}
	return requested
}
