package traj

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"

	tcal "github.com/mdtcal/tcal"
)

type fakeMolecule struct {
	n     int
	mass  []float64
	offs  []int
	idxs  []int
}

func (m *fakeMolecule) Len() int { return m.n }
func (m *fakeMolecule) Atom(i int) *tcal.Atom { return &tcal.Atom{Mass: m.mass[i]} }
func (m *fakeMolecule) Masses() ([]float64, error) { return m.mass, nil }
func (m *fakeMolecule) Structures() ([]int, []int) { return m.offs, m.idxs }

func newFakeMolecule(n int) *fakeMolecule {
	mass := make([]float64, n)
	for i := range mass {
		mass[i] = 1.0
	}
	return &fakeMolecule{n: n, mass: mass, offs: []int{0, n}, idxs: seq(n)}
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

type fakeBackend struct {
	mu          sync.Mutex
	natoms      int
	frames      [][3][]float64
	decodeCalls atomic.Int32
	delay       func()
	closed      bool
}

func newFakeBackend(natoms int, nframes int) *fakeBackend {
	frames := make([][3][]float64, nframes)
	for i := range frames {
		x := make([]float64, natoms)
		y := make([]float64, natoms)
		z := make([]float64, natoms)
		for a := 0; a < natoms; a++ {
			x[a] = float64(i*100 + a)
			y[a] = float64(i*100 + a + 1)
			z[a] = float64(i*100 + a + 2)
		}
		frames[i] = [3][]float64{x, y, z}
	}
	return &fakeBackend{natoms: natoms, frames: frames}
}

func (b *fakeBackend) Close() error   { b.closed = true; return nil }
func (b *fakeBackend) NumAtoms() int  { return b.natoms }
func (b *fakeBackend) NumFrames() int { return len(b.frames) }

func (b *fakeBackend) GetHeader(idx int) (tcal.FrameHeader, error) {
	if idx < 0 || idx >= len(b.frames) {
		return tcal.FrameHeader{}, tcal.NewError(tcal.ErrDecodeFailed, true, "", "out of range")
	}
	return tcal.FrameHeader{AtomCount: b.natoms, Step: idx}, nil
}

func (b *fakeBackend) FetchFrameData(idx int, out []byte) (int, error) {
	if idx < 0 || idx >= len(b.frames) {
		return 0, tcal.NewError(tcal.ErrDecodeFailed, true, "", "out of range")
	}
	size := 8
	if out == nil {
		return size, nil
	}
	binary.LittleEndian.PutUint64(out, uint64(idx))
	return size, nil
}

func (b *fakeBackend) DecodeFrameData(blob []byte, header *tcal.FrameHeader, x, y, z []float64) error {
	if b.delay != nil {
		b.delay()
	}
	b.decodeCalls.Add(1)
	idx := int(binary.LittleEndian.Uint64(blob))
	fr := b.frames[idx]
	copy(x, fr[0])
	copy(y, fr[1])
	copy(z, fr[2])
	if header != nil {
		*header = tcal.FrameHeader{AtomCount: b.natoms, Step: idx}
	}
	return nil
}

func openFake(t *testing.T, c *Context, natoms, nframes int) (Handle, *fakeBackend) {
	t.Helper()
	var be *fakeBackend
	factory := func(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
		be = newFakeBackend(natoms, nframes)
		return be, nil
	}
	h, err := c.OpenFile("fake.traj", factory, newFakeMolecule(natoms), nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	t.Cleanup(func() { c.Close(h) })
	return h, be
}

func TestLoadFrameMissThenHit(t *testing.T) {
	c := NewContext()
	h, be := openFake(t, c, 3, 5)
	x, y, z := make([]float64, 3), make([]float64, 3), make([]float64, 3)
	var hdr tcal.FrameHeader

	if err := c.LoadFrame(h, 2, &hdr, x, y, z); err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}
	if x[0] != 200 {
		t.Fatalf("x[0] = %v, want 200", x[0])
	}
	if be.decodeCalls.Load() != 1 {
		t.Fatalf("decodeCalls = %d, want 1", be.decodeCalls.Load())
	}

	if err := c.LoadFrame(h, 2, &hdr, x, y, z); err != nil {
		t.Fatalf("LoadFrame second: %v", err)
	}
	if be.decodeCalls.Load() != 1 {
		t.Fatalf("decodeCalls after hit = %d, want 1", be.decodeCalls.Load())
	}
}

func TestConcurrentSameFrameDecodesOnce(t *testing.T) {
	c := NewContext()
	h, be := openFake(t, c, 2, 3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x, y, z := make([]float64, 2), make([]float64, 2), make([]float64, 2)
			var hdr tcal.FrameHeader
			if err := c.LoadFrame(h, 1, &hdr, x, y, z); err != nil {
				t.Errorf("LoadFrame: %v", err)
			}
		}()
	}
	wg.Wait()
	if be.decodeCalls.Load() != 1 {
		t.Fatalf("decodeCalls = %d, want 1", be.decodeCalls.Load())
	}
}

func TestTopologyMismatchOnOpen(t *testing.T) {
	c := NewContext()
	factory := func(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
		return newFakeBackend(5, 2), nil
	}
	_, err := c.OpenFile("mismatch.traj", factory, newFakeMolecule(3), nil)
	if err == nil {
		t.Fatal("expected topology mismatch error")
	}
}

func TestCapacityExceededAtNinthOpen(t *testing.T) {
	c := NewContext()
	var handles []Handle
	for i := 0; i < maxOpenTrajectories; i++ {
		h, _ := openFakeNoCleanup(t, c, 1, 1)
		handles = append(handles, h)
	}
	defer func() {
		for _, h := range handles {
			c.Close(h)
		}
	}()

	factory := func(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
		return newFakeBackend(1, 1), nil
	}
	if _, err := c.OpenFile("ninth.traj", factory, newFakeMolecule(1), nil); err == nil {
		t.Fatal("expected capacity exceeded error on 9th open")
	}
}

func openFakeNoCleanup(t *testing.T, c *Context, natoms, nframes int) (Handle, *fakeBackend) {
	t.Helper()
	var be *fakeBackend
	factory := func(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
		be = newFakeBackend(natoms, nframes)
		return be, nil
	}
	h, err := c.OpenFile("fake.traj", factory, newFakeMolecule(natoms), nil)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return h, be
}

func TestBoundaryIndicesError(t *testing.T) {
	c := NewContext()
	h, _ := openFake(t, c, 2, 4)
	x, y, z := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	var hdr tcal.FrameHeader
	if err := c.LoadFrame(h, -1, &hdr, x, y, z); err == nil {
		t.Fatal("expected error for index -1")
	}
	if err := c.LoadFrame(h, 4, &hdr, x, y, z); err == nil {
		t.Fatal("expected error for index == NumFrames")
	}
}

func TestRoundTripAfterCloseReopen(t *testing.T) {
	c := NewContext()
	h1, _ := openFake(t, c, 2, 2)
	x1, y1, z1 := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	var hdr1 tcal.FrameHeader
	if err := c.LoadFrame(h1, 0, &hdr1, x1, y1, z1); err != nil {
		t.Fatalf("LoadFrame before close: %v", err)
	}
	if err := c.Close(h1); err != nil {
		t.Fatalf("Close: %v", err)
	}
	h2, _ := openFake(t, c, 2, 2)
	x, y, z := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	var hdr tcal.FrameHeader
	if err := c.LoadFrame(h2, 0, &hdr, x, y, z); err != nil {
		t.Fatalf("LoadFrame after reopen: %v", err)
	}
	for i := range x {
		if x[i] != x1[i] || y[i] != y1[i] || z[i] != z1[i] {
			t.Fatalf("atom %d differs after reopen: (%g,%g,%g), want (%g,%g,%g)", i, x[i], y[i], z[i], x1[i], y1[i], z1[i])
		}
	}
}

func TestSetRecenterTargetResetsAfterClearCache(t *testing.T) {
	c := NewContext()
	h, _ := openFake(t, c, 3, 2)
	x, y, z := make([]float64, 3), make([]float64, 3), make([]float64, 3)
	var hdr tcal.FrameHeader

	if _, err := c.SetRecenterTarget(h, []int{0, 1, 2}); err != nil {
		t.Fatalf("SetRecenterTarget: %v", err)
	}
	if err := c.LoadFrame(h, 0, &hdr, x, y, z); err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}

	prev, err := c.SetRecenterTarget(h, nil)
	if err != nil {
		t.Fatalf("SetRecenterTarget reset: %v", err)
	}
	if len(prev) != 3 {
		t.Fatalf("previous mask len = %d, want 3", len(prev))
	}
	if err := c.ClearCache(h); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}

	var hdr2 tcal.FrameHeader
	x2, y2, z2 := make([]float64, 3), make([]float64, 3), make([]float64, 3)
	if err := c.LoadFrame(h, 0, &hdr2, x2, y2, z2); err != nil {
		t.Fatalf("LoadFrame after reset: %v", err)
	}
	if x2[0] != 0 {
		t.Fatalf("expected untransformed coordinate 0, got %v", x2[0])
	}
}

func TestOpenCloseLeavesTableSizeUnchanged(t *testing.T) {
	c := NewContext()
	c.mu.Lock()
	before := len(c.entries)
	c.mu.Unlock()
	h, _ := openFakeNoCleanup(t, c, 2, 1)
	if err := c.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	for i := 0; i < maxOpenTrajectories; i++ {
		if n != before {
			t.Fatalf("table size changed: %d entries before open, %d after close", before, n)
		}
	}
}
