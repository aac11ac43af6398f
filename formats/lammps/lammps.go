// Package lammps is TCAL's LAMMPS data-file molecule backend, grounded on
// the teacher's top package's fixed-table parsing style. It exercises the
// Format Registry's preflight hook: the atom_style a data file was written
// with isn't declared anywhere in the file, so a preflight sniff of the
// first Atoms-section line's field count guesses it, surfacing the result
// via loader.State.AtomStyle rather than swallowing it.
package lammps

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/registry"
)

func init() {
	registry.Register(&registry.Entry{
		Name:            "lammps-data",
		Extensions:      []string{"data"},
		MoleculeFactory: openMolecule,
		Preflight:       sniffAtomStyle,
	})
}

func styleFromFieldCount(n int) string {
	switch n {
	case 5:
		return "atomic"
	case 6:
		return "charge"
	case 7:
		return "full"
	default:
		return ""
	}
}

// sniffAtomStyle reads only as far as the first Atoms-section data line.
// An unrecognized field count asks the caller to disambiguate rather than
// guessing wrong.
func sniffAtomStyle(path string, alloc tcal.Allocator) ([]byte, bool, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, "", tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	inAtoms := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "Atoms") {
			inAtoms = true
			continue
		}
		if !inAtoms {
			continue
		}
		style := styleFromFieldCount(len(strings.Fields(line)))
		if style == "" {
			return nil, true, "", nil
		}
		var b []byte
		if alloc != nil {
			b = alloc.Alloc(len(style))
		} else {
			b = make([]byte, len(style))
		}
		copy(b, style)
		return b, false, style, nil
	}
	return nil, true, "", nil
}

// Molecule is TCAL's LAMMPS data-file molecule backend.
type Molecule struct{ *tcal.Topology }

func (m *Molecule) Close() error { return nil }

func openMolecule(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var declaredAtoms int
	inAtoms := false
	atomStyle := ""
	atoms := make([]*tcal.Atom, 0)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !inAtoms {
			if strings.HasSuffix(line, "atoms") {
				if fields := strings.Fields(line); len(fields) >= 1 {
					declaredAtoms, _ = strconv.Atoi(fields[0])
				}
				continue
			}
			if strings.HasPrefix(line, "Atoms") {
				inAtoms = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if atomStyle == "" {
			atomStyle = styleFromFieldCount(len(fields))
		}
		atoms = append(atoms, &tcal.Atom{Name: "X", Symbol: "X", Mass: 1.0})
		if declaredAtoms > 0 && len(atoms) == declaredAtoms {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	if len(atoms) == 0 {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "no atoms parsed from LAMMPS data file")
	}
	top, err := tcal.MakeTopology(atoms, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Molecule{Topology: top}, nil
}
