// Package pdb is TCAL's PDB molecule and trajectory backend, grounded on
// the teacher's files.go (read_full_pdb_line, symbolFromName,
// three2OneLetter) and pdbx.go. Multi-MODEL files are read as multi-frame
// trajectories.
package pdb

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/formats/internal/wire"
	"github.com/mdtcal/tcal/registry"
)

func init() {
	registry.Register(&registry.Entry{
		Name:              "pdb",
		Extensions:        []string{"pdb"},
		MoleculeFactory:   openMolecule,
		TrajectoryFactory: openTrajectory,
	})
}

// symbolMass mirrors the teacher's files.go symbolMass table, trimmed to
// the handful of elements this module's fixtures and tests exercise.
var symbolMass = map[string]float64{
	"H": 1.008, "C": 12.011, "N": 14.007, "O": 15.999, "P": 30.974,
	"S": 32.06, "CL": 35.45, "NA": 22.99, "K": 39.098, "MG": 24.305,
	"CA": 40.078, "ZN": 65.38, "FE": 55.845,
}

func guessSymbol(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if len(name) >= 2 {
		two := strings.ToUpper(name[:2])
		if _, ok := symbolMass[two]; ok {
			return two
		}
	}
	return strings.ToUpper(name[:1])
}

type atomLine struct {
	name, molname string
	molid         int
	chain         byte
	het           bool
	x, y, z       float64
}

// parseAtomLine reads the fixed-column fields of a PDB ATOM/HETATM record,
// the same column ranges as the teacher's read_full_pdb_line.
func parseAtomLine(line string) (atomLine, error) {
	var a atomLine
	if len(line) < 54 {
		return a, tcal.NewError(tcal.ErrBackendCreateFailed, true, "", "PDB line too short: %q", line)
	}
	a.het = strings.HasPrefix(line, "HETATM")
	a.name = strings.TrimSpace(line[12:16])
	a.molname = strings.TrimSpace(line[17:20])
	if len(line) > 21 {
		a.chain = line[21]
	}
	if id, err := strconv.Atoi(strings.TrimSpace(line[22:26])); err == nil {
		a.molid = id
	}
	var err error
	if a.x, err = strconv.ParseFloat(strings.TrimSpace(line[30:38]), 64); err != nil {
		return a, tcal.NewError(tcal.ErrBackendCreateFailed, true, "", "bad x coordinate: %v", err)
	}
	if a.y, err = strconv.ParseFloat(strings.TrimSpace(line[38:46]), 64); err != nil {
		return a, tcal.NewError(tcal.ErrBackendCreateFailed, true, "", "bad y coordinate: %v", err)
	}
	if a.z, err = strconv.ParseFloat(strings.TrimSpace(line[46:54]), 64); err != nil {
		return a, tcal.NewError(tcal.ErrBackendCreateFailed, true, "", "bad z coordinate: %v", err)
	}
	return a, nil
}

type parsed struct {
	atoms  []*tcal.Atom
	frames [][3][]float64
}

func parseFile(path string) (*parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()

	p := &parsed{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	firstModel := true
	var curX, curY, curZ []float64
	flush := func() {
		if curX != nil {
			p.frames = append(p.frames, [3][]float64{curX, curY, curZ})
		}
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MODEL"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if n, err := strconv.Atoi(fields[1]); err == nil && n > 1 {
					flush()
					firstModel = false
					curX, curY, curZ = nil, nil, nil
				}
			}
		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			al, err := parseAtomLine(line)
			if err != nil {
				return nil, err
			}
			curX = append(curX, al.x)
			curY = append(curY, al.y)
			curZ = append(curZ, al.z)
			if firstModel {
				sym := guessSymbol(al.name)
				p.atoms = append(p.atoms, &tcal.Atom{
					Name: al.name, Symbol: sym, Molname: al.molname,
					Molid: al.molid, Chain: al.chain, Het: al.het, Mass: symbolMass[sym],
				})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	flush()
	if len(p.atoms) == 0 {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "no ATOM/HETATM records found")
	}
	return p, nil
}

// Molecule is TCAL's PDB molecule backend.
type Molecule struct{ *tcal.Topology }

func (m *Molecule) Close() error { return nil }

func openMolecule(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
	p, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	top, err := tcal.MakeTopology(p.atoms, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Molecule{Topology: top}, nil
}

// Trajectory is TCAL's PDB trajectory backend: one frame per MODEL record
// (or the whole file, for a single-model PDB).
type Trajectory struct {
	filename string
	natoms   int
	frames   [][3][]float64
}

func openTrajectory(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
	p, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return &Trajectory{filename: path, natoms: len(p.atoms), frames: p.frames}, nil
}

func (t *Trajectory) Close() error   { return nil }
func (t *Trajectory) NumAtoms() int  { return t.natoms }
func (t *Trajectory) NumFrames() int { return len(t.frames) }

func (t *Trajectory) checkIdx(idx int) error {
	if idx < 0 || idx >= len(t.frames) {
		return tcal.NewError(tcal.ErrDecodeFailed, true, t.filename, "frame index %d out of range", idx)
	}
	return nil
}

func (t *Trajectory) GetHeader(idx int) (tcal.FrameHeader, error) {
	if err := t.checkIdx(idx); err != nil {
		return tcal.FrameHeader{}, err
	}
	return tcal.FrameHeader{AtomCount: t.natoms}, nil
}

func (t *Trajectory) FetchFrameData(idx int, out []byte) (int, error) {
	if err := t.checkIdx(idx); err != nil {
		return 0, err
	}
	fr := t.frames[idx]
	size := len(fr[0]) * 24
	if out == nil {
		return size, nil
	}
	copy(out, wire.EncodeXYZ(fr[0], fr[1], fr[2]))
	return size, nil
}

func (t *Trajectory) DecodeFrameData(blob []byte, header *tcal.FrameHeader, x, y, z []float64) error {
	if err := wire.DecodeXYZ(blob, x, y, z); err != nil {
		return tcal.NewError(tcal.ErrDecodeFailed, true, t.filename, "%v", err)
	}
	if header != nil {
		*header = tcal.FrameHeader{AtomCount: t.natoms}
	}
	return nil
}
