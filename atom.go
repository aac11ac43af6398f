package tcal

// Atom is the minimal per-atom record TCAL's own Topology carries, grounded
// on the teacher's Atom struct (name, symbol, residue, chain, mass).
type Atom struct {
	Name    string
	Symbol  string
	Molname string
	Molid   int
	Chain   byte
	Mass    float64
	Het     bool

	bonds []int // indices of directly bonded atoms, for Structures()
}

// Bond connects two atom indices within a Topology.
type Bond struct {
	At1, At2 int
}
