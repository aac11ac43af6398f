// Package loader implements the Loader-State builder (§4.2): given a path,
// it consults the Format Registry for matching backends, runs any
// preflight check one of them declares, and returns a State a caller uses
// to actually construct molecule/trajectory backends.
package loader

import (
	"path/filepath"
	"strings"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/registry"
)

// State is the result of Init: the backend factories found for path, plus
// whatever a preflight check produced.
type State struct {
	Path              string
	MoleculeFactory   tcal.MoleculeBackendFactory
	TrajectoryFactory tcal.TrajectoryBackendFactory
	Blob              []byte
	RequiresDialogue  bool
	// AtomStyle surfaces what a format-specific preflight (currently only
	// the LAMMPS data backend) detected, rather than silently folding it
	// into the opaque Blob.
	AtomStyle string

	alloc tcal.Allocator
}

func extOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Init builds a loader State for path. It fails if the Format Registry
// has no backend at all for path's extension, and also if a matching
// entry's preflight check returns an error (for example, when the file
// cannot be opened).
func Init(path string, alloc tcal.Allocator) (*State, error) {
	ext := extOf(path)
	if ext == "" {
		return nil, tcal.NewError(tcal.ErrUnsupportedExtension, false, path, "no file extension")
	}
	molEntry := registry.MolLoaderFromExt(ext)
	trajEntry := registry.TrajLoaderFromExt(ext)
	if molEntry == nil && trajEntry == nil {
		return nil, tcal.NewError(tcal.ErrUnsupportedExtension, false, path, "extension %q not supported", ext)
	}

	st := &State{Path: path, alloc: alloc}
	if molEntry != nil {
		st.MoleculeFactory = molEntry.MoleculeFactory
		if err := st.runPreflight(molEntry); err != nil {
			return nil, err
		}
	}
	if trajEntry != nil {
		st.TrajectoryFactory = trajEntry.TrajectoryFactory
		if trajEntry != molEntry {
			if err := st.runPreflight(trajEntry); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

func (st *State) runPreflight(e *registry.Entry) error {
	if e.Preflight == nil {
		return nil
	}
	blob, dlg, note, err := e.Preflight(st.Path, st.alloc)
	if err != nil {
		return err
	}
	if st.Blob == nil {
		st.Blob = blob
	}
	st.RequiresDialogue = st.RequiresDialogue || dlg
	if note != "" && st.AtomStyle == "" {
		st.AtomStyle = note
	}
	return nil
}

// Free releases the loader state's argument blob back to its allocator.
func Free(st *State) {
	if st == nil || st.Blob == nil {
		return
	}
	if st.alloc != nil {
		st.alloc.Free(st.Blob)
	}
	st.Blob = nil
}
