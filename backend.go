package tcal

// Molecule is the capability set TCAL needs from a topology, independent of
// how that topology was constructed. It is satisfied by Topology but is
// kept as an interface since, per scope, the actual per-format topology
// parsers are external collaborators, not part of TCAL itself.
type Molecule interface {
	Len() int
	Atom(i int) *Atom
	Masses() ([]float64, error)
	// Structures returns the connected-component partition of the
	// molecule's atoms as an offsets/flat-indices pair: component k's
	// members are indices[offsets[k]:offsets[k+1]].
	Structures() (offsets, indices []int)
}

// MoleculeBackend is a Molecule that also owns a file handle or other
// resource a caller must release.
type MoleculeBackend interface {
	Molecule
	Close() error
}

// MoleculeBackendFactory constructs a MoleculeBackend from a path. alloc is
// available for backends that want pooled scratch buffers while parsing;
// most don't need it.
type MoleculeBackendFactory func(path string, alloc Allocator) (MoleculeBackend, error)

// TrajectoryBackend is the capability set a concrete trajectory decoder
// exposes to the façade: atom/frame counts, per-frame header lookup, and
// the two-phase fetch/decode indirection §4.4 builds its cache-aware
// LoadFrame on top of. The Trajectory Façade itself implements this same
// interface, so a façade handle is a drop-in replacement wherever a raw
// backend handle would be used.
type TrajectoryBackend interface {
	Close() error
	NumAtoms() int
	NumFrames() int
	GetHeader(idx int) (FrameHeader, error)
	// FetchFrameData copies the raw, not-yet-decoded bytes for frame idx
	// into out and returns their length. If out is nil, it only returns
	// the length, letting the caller size a scratch buffer first.
	FetchFrameData(idx int, out []byte) (int, error)
	// DecodeFrameData decodes a blob previously produced by
	// FetchFrameData into header and the caller-owned x/y/z slices.
	DecodeFrameData(blob []byte, header *FrameHeader, x, y, z []float64) error
}

// TrajectoryBackendFactory constructs a TrajectoryBackend from a path.
type TrajectoryBackendFactory func(path string, alloc Allocator) (TrajectoryBackend, error)
