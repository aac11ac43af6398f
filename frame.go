package tcal

// UnitCell is the periodic basis a frame was decoded with, stored as three
// row-major basis vectors. Present is false for non-periodic trajectories.
type UnitCell struct {
	Basis   [9]float64
	Present bool
}

// Extent returns the three basis-vector row sums, the orthorhombic box
// lengths a post-decode transform treats as the periodic extent along each
// axis. Triclinic cells are approximated by their diagonal-equivalent
// extent; TCAL's deperiodize/recenter math only needs this scalar extent,
// not the full basis.
func (c UnitCell) Extent() [3]float64 {
	return [3]float64{
		c.Basis[0] + c.Basis[1] + c.Basis[2],
		c.Basis[3] + c.Basis[4] + c.Basis[5],
		c.Basis[6] + c.Basis[7] + c.Basis[8],
	}
}

// FrameHeader carries the metadata decoded alongside a frame's coordinates.
type FrameHeader struct {
	AtomCount int
	Time      float64
	Step      int
	Cell      UnitCell
}

// FrameData is what a Frame Cache slot stores: one frame's header plus its
// decoded, post-transform coordinates.
type FrameData struct {
	Header FrameHeader
	X, Y, Z []float64
}
