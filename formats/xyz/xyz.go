// Package xyz is TCAL's XYZ/XMOL/ARC molecule and trajectory backend,
// grounded on the teacher's files.go (XyzRead/XyzWrite). Concatenated
// per-frame blocks in one file are read as a multi-frame trajectory.
package xyz

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
		Name:              "xyz",
		Extensions:        []string{"xyz", "xmol", "arc"},
		MoleculeFactory:   openMolecule,
		TrajectoryFactory: openTrajectory,
	})
}

var symbolMass = map[string]float64{
	"H": 1.008, "C": 12.011, "N": 14.007, "O": 15.999, "P": 30.974, "S": 32.06,
}

type xyzFrame struct{ x, y, z []float64 }

type parsed struct {
	symbols []string
	frames  []xyzFrame
}

func parseFile(path string) (*parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &parsed{}
	for sc.Scan() {
		natomsLine := strings.TrimSpace(sc.Text())
		if natomsLine == "" {
			continue
		}
		natoms, err := strconv.Atoi(natomsLine)
		if err != nil {
			return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "malformed atom count %q", natomsLine)
		}
		if !sc.Scan() {
			return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "truncated XYZ comment line")
		}
		fr := xyzFrame{x: make([]float64, natoms), y: make([]float64, natoms), z: make([]float64, natoms)}
		symbols := make([]string, natoms)
		for i := 0; i < natoms; i++ {
			if !sc.Scan() {
				return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "truncated XYZ frame at atom %d", i)
			}
			fields := strings.Fields(sc.Text())
			if len(fields) < 4 {
				return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "malformed XYZ line: %q", sc.Text())
			}
			symbols[i] = fields[0]
			if fr.x[i], err = strconv.ParseFloat(fields[1], 64); err != nil {
				return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
			}
			if fr.y[i], err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
			}
			if fr.z[i], err = strconv.ParseFloat(fields[3], 64); err != nil {
				return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
			}
		}
		if p.symbols == nil {
			p.symbols = symbols
		}
		p.frames = append(p.frames, fr)
	}
	if err := sc.Err(); err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	if len(p.frames) == 0 {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "empty XYZ file")
	}
	return p, nil
}

// Molecule is TCAL's XYZ molecule backend.
type Molecule struct{ *tcal.Topology }

func (m *Molecule) Close() error { return nil }

func openMolecule(path string, alloc tcal.Allocator) (tcal.MoleculeBackend, error) {
	p, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	atoms := make([]*tcal.Atom, len(p.symbols))
	for i, s := range p.symbols {
		atoms[i] = &tcal.Atom{Name: s, Symbol: s, Mass: symbolMass[strings.ToUpper(s)]}
	}
	top, err := tcal.MakeTopology(atoms, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Molecule{Topology: top}, nil
}

// Trajectory is TCAL's XYZ trajectory backend.
type Trajectory struct {
	filename string
	natoms   int
	frames   []xyzFrame
}

func openTrajectory(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
	p, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return &Trajectory{filename: path, natoms: len(p.symbols), frames: p.frames}, nil
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
	size := len(fr.x) * 24
	if out == nil {
		return size, nil
	}
	copy(out, wire.EncodeXYZ(fr.x, fr.y, fr.z))
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
