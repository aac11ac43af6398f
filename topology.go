package tcal

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Topology is TCAL's own minimal Molecule implementation, grounded on the
// teacher's Topology/Atom types (chem.go) but trimmed to what the façade
// and post-decode transform actually need: atom count, per-atom mass, and
// the bonded connected-component partition deperiodize works over.
type Topology struct {
	Atoms            []*Atom
	charge, unpaired int

	structOnce sync.Once
	offsets    []int
	indices    []int
}

// MakeTopology builds a Topology over atoms. It does not copy atoms.
func MakeTopology(atoms []*Atom, charge, unpaired int) (*Topology, error) {
	if len(atoms) == 0 {
		return nil, NewError(ErrBackendCreateFailed, true, "", "a topology needs at least one atom")
	}
	return &Topology{Atoms: atoms, charge: charge, unpaired: unpaired}, nil
}

func (t *Topology) Len() int { return len(t.Atoms) }

func (t *Topology) Atom(i int) *Atom {
	if i < 0 || i >= len(t.Atoms) {
		panic("tcal: atom index out of range")
	}
	return t.Atoms[i]
}

// Masses returns each atom's mass, failing if any atom's mass was never set.
func (t *Topology) Masses() ([]float64, error) {
	m := make([]float64, len(t.Atoms))
	for i, a := range t.Atoms {
		if a.Mass <= 0 {
			return nil, NewError(ErrInternal, false, "", "atom %d has no mass assigned", i)
		}
		m[i] = a.Mass
	}
	return m, nil
}

func (t *Topology) Charge() int   { return t.charge }
func (t *Topology) Unpaired() int { return t.unpaired }

// AddBond records a bond between atom indices i and j, used only to build
// the connected-component partition Structures() returns.
func (t *Topology) AddBond(i, j int) {
	t.Atoms[i].bonds = append(t.Atoms[i].bonds, j)
	t.Atoms[j].bonds = append(t.Atoms[j].bonds, i)
}

// Structures returns the connected-component partition of the topology's
// atoms, building it once from the bond graph the first time it's needed
// and caching the flattened result — mirroring the way the teacher's
// chemgraph.TopologyFromChem builds a gonum graph view over a molecule once
// rather than per frame.
func (t *Topology) Structures() ([]int, []int) {
	t.structOnce.Do(t.buildStructures)
	return t.offsets, t.indices
}

func (t *Topology) buildStructures() {
	g := simple.NewUndirectedGraph()
	for i := range t.Atoms {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, a := range t.Atoms {
		for _, j := range a.bonds {
			if g.HasEdgeBetween(int64(i), int64(j)) {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
		}
	}

	comps := topo.ConnectedComponents(g)
	offsets := make([]int, 1, len(comps)+1)
	flat := make([]int, 0, len(t.Atoms))
	for _, c := range comps {
		ids := make([]int, len(c))
		for k, n := range c {
			ids[k] = int(n.ID())
		}
		sort.Ints(ids)
		flat = append(flat, ids...)
		offsets = append(offsets, len(flat))
	}
	t.offsets = offsets
	t.indices = flat
}
