// Package gro is TCAL's GRO molecule backend, grounded on the teacher's
// grotop/groio.go and top/groio.go. It is the one molecule backend that
// reads an explicit box line into a UnitCell.
package gro

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
		Name:            "gro",
		Extensions:      []string{"gro"},
		MoleculeFactory: openMolecule,
	})
}

var symbolMass = map[string]float64{
	"H": 1.008, "C": 12.011, "N": 14.007, "O": 15.999, "P": 30.974,
	"S": 32.06, "NA": 22.99, "CL": 35.45,
}

func guessSymbol(atomName string) string {
	a := strings.TrimSpace(atomName)
	for len(a) > 0 && a[0] >= '0' && a[0] <= '9' {
		a = a[1:]
	}
	if a == "" {
		return ""
	}
	if len(a) >= 2 {
		two := strings.ToUpper(a[:2])
		if _, ok := symbolMass[two]; ok {
			return two
		}
	}
	return strings.ToUpper(a[:1])
}

// Molecule is TCAL's GRO molecule backend. Cell carries the box vectors
// read from the file's final line, if present.
type Molecule struct {
	*tcal.Topology
	Cell tcal.UnitCell
}

func (m *Molecule) Close() error { return nil }

func openMolecule(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "empty GRO file")
	}
	if !sc.Scan() {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "truncated GRO file")
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "bad atom count: %v", err)
	}

	atoms := make([]*tcal.Atom, 0, natoms)
	for i := 0; i < natoms; i++ {
		if !sc.Scan() {
			return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "truncated GRO file at atom %d", i)
		}
		line := sc.Text()
		if len(line) < 44 {
			return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "malformed GRO atom line: %q", line)
		}
		resname := strings.TrimSpace(line[5:10])
		atomname := strings.TrimSpace(line[10:15])
		sym := guessSymbol(atomname)
		atoms = append(atoms, &tcal.Atom{Name: atomname, Symbol: sym, Molname: resname, Mass: symbolMass[sym]})
	}

	var cell tcal.UnitCell
	if sc.Scan() {
		// Only the orthorhombic (3-value) box line is read precisely;
		// a 9-value triclinic line contributes only its diagonal, which
		// is a known approximation — TCAL only ever needs Extent().
		fields := strings.Fields(sc.Text())
		if len(fields) >= 3 {
			bx, _ := strconv.ParseFloat(fields[0], 64)
			by, _ := strconv.ParseFloat(fields[1], 64)
			bz, _ := strconv.ParseFloat(fields[2], 64)
			var basis [9]float64
			basis[0], basis[4], basis[8] = bx*10, by*10, bz*10 // nm -> Angstrom
			cell = tcal.UnitCell{Basis: basis, Present: true}
		}
	}

	top, err := tcal.MakeTopology(atoms, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Molecule{Topology: top, Cell: cell}, nil
}
