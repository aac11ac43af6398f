package transform

import (
	"math"
	"testing"

	tcal "github.com/mdtcal/tcal"
)

func makeMol(masses []float64, bonds [][2]int) *tcal.Topology {
	atoms := make([]*tcal.Atom, len(masses))
	for i, m := range masses {
		atoms[i] = &tcal.Atom{Mass: m}
	}
	top, _ := tcal.MakeTopology(atoms, 0, 0)
	for _, b := range bonds {
		top.AddBond(b[0], b[1])
	}
	return top
}

func TestRecenterSingleAtomNoCell(t *testing.T) {
	mol := makeMol([]float64{1, 1}, nil)
	header := &tcal.FrameHeader{AtomCount: 2}
	x := []float64{3, 10}
	y := []float64{4, 10}
	z := []float64{5, 10}
	if err := Apply(Options{RecenterMask: []int{0}}, mol, header, x, y, z); err != nil {
		t.Fatal(err)
	}
	if math.Abs(x[0]) > 1e-9 || math.Abs(y[0]) > 1e-9 || math.Abs(z[0]) > 1e-9 {
		t.Fatalf("expected atom 0 at origin, got (%g,%g,%g)", x[0], y[0], z[0])
	}
}

func TestRecenterSingleAtomWithCell(t *testing.T) {
	mol := makeMol([]float64{1, 1}, nil)
	cell := tcal.UnitCell{Basis: [9]float64{10, 0, 0, 0, 10, 0, 0, 0, 10}, Present: true}
	header := &tcal.FrameHeader{AtomCount: 2, Cell: cell}
	x := []float64{3, 1}
	y := []float64{4, 1}
	z := []float64{5, 1}
	if err := Apply(Options{RecenterMask: []int{0}}, mol, header, x, y, z); err != nil {
		t.Fatal(err)
	}
	want := 5.0
	if math.Abs(x[0]-want) > 1e-9 || math.Abs(y[0]-want) > 1e-9 || math.Abs(z[0]-want) > 1e-9 {
		t.Fatalf("expected atom 0 at box center (%g,%g,%g), got (%g,%g,%g)", want, want, want, x[0], y[0], z[0])
	}
}

func TestDeperiodizeTwoAtomChain(t *testing.T) {
	mol := makeMol([]float64{1, 1}, [][2]int{{0, 1}})
	cell := tcal.UnitCell{Basis: [9]float64{10, 0, 0, 0, 10, 0, 0, 0, 10}, Present: true}
	header := &tcal.FrameHeader{AtomCount: 2, Cell: cell}
	x := []float64{0.1, 9.9}
	y := []float64{5, 5}
	z := []float64{5, 5}
	if err := Apply(Options{Deperiodize: true}, mol, header, x, y, z); err != nil {
		t.Fatal(err)
	}
	sep := math.Abs(x[0] - x[1])
	if sep > 0.3 {
		t.Fatalf("expected bonded atoms to separate by ~0.2 after deperiodize, got %g", sep)
	}
}

func TestEmptyOptionsIsNoOp(t *testing.T) {
	mol := makeMol([]float64{1, 1}, [][2]int{{0, 1}})
	header := &tcal.FrameHeader{AtomCount: 2}
	x := []float64{1, 2}
	y := []float64{3, 4}
	z := []float64{5, 6}
	origX, origY, origZ := append([]float64{}, x...), append([]float64{}, y...), append([]float64{}, z...)
	if err := Apply(Options{}, mol, header, x, y, z); err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if x[i] != origX[i] || y[i] != origY[i] || z[i] != origZ[i] {
			t.Fatalf("expected no-op transform, got mutated coordinates at %d", i)
		}
	}
}

func TestRecenterRejectsOutOfRangeMask(t *testing.T) {
	mol := makeMol([]float64{1}, nil)
	header := &tcal.FrameHeader{AtomCount: 1}
	x, y, z := []float64{0}, []float64{0}, []float64{0}
	if err := Apply(Options{RecenterMask: []int{5}}, mol, header, x, y, z); err == nil {
		t.Fatal("expected an error for an out-of-range recenter mask index")
	}
}
