// Package registry implements the Format Registry: a small, linearly
// scanned table of extension -> backend entries, mirroring the shape of
// the teacher's compile-time lookup tables (files.go's symbolMass,
// three2OneLetter) but for molecule/trajectory constructors instead of
// element data. Format backends self-register from their own init(),
// so this package never imports them and there is no import cycle.
package registry

import (
	"strings"
	"sync"

	tcal "github.com/mdtcal/tcal"
)

// PreflightFunc inspects a file before a backend is constructed from it.
// It may produce a backend-specific argument blob (owned by alloc), ask
// the caller to disambiguate (requiresDialogue), and report a
// human-readable note describing what it detected.
type PreflightFunc func(path string, alloc tcal.Allocator) (blob []byte, requiresDialogue bool, note string, err error)

// Entry is one Format Registry row.
type Entry struct {
	Name              string
	Extensions        []string
	MoleculeFactory   tcal.MoleculeBackendFactory
	TrajectoryFactory tcal.TrajectoryBackendFactory
	Preflight         PreflightFunc
}

var (
	mu      sync.Mutex
	entries []*Entry
)

// Register adds e to the registry, replacing any existing entry of the
// same name.
func Register(e *Entry) {
	mu.Lock()
	defer mu.Unlock()
	for i, existing := range entries {
		if existing.Name == e.Name {
			entries[i] = e
			return
		}
	}
	entries = append(entries, e)
}

// LoaderCount returns how many entries are registered.
func LoaderCount() int {
	mu.Lock()
	defer mu.Unlock()
	return len(entries)
}

// LoaderNames returns the registered entry names.
func LoaderNames() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// LoaderExtensions returns the union of extensions known to the registry.
func LoaderExtensions() []string {
	mu.Lock()
	defer mu.Unlock()
	seen := map[string]bool{}
	var exts []string
	for _, e := range entries {
		for _, ext := range e.Extensions {
			if !seen[ext] {
				seen[ext] = true
				exts = append(exts, ext)
			}
		}
	}
	return exts
}

func matches(e *Entry, ext string) bool {
	for _, x := range e.Extensions {
		if strings.EqualFold(x, ext) {
			return true
		}
	}
	return false
}

// MolLoaderFromExt returns the first entry offering a molecule backend for
// ext (case-insensitive), or nil.
func MolLoaderFromExt(ext string) *Entry {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range entries {
		if e.MoleculeFactory != nil && matches(e, ext) {
			return e
		}
	}
	return nil
}

// TrajLoaderFromExt returns the first entry offering a trajectory backend
// for ext (case-insensitive), or nil.
func TrajLoaderFromExt(ext string) *Entry {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range entries {
		if e.TrajectoryFactory != nil && matches(e, ext) {
			return e
		}
	}
	return nil
}
