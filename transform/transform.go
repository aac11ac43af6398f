// Package transform implements the Post-decode Transform (§4.5): optional
// recentering of a frame around a mass-weighted selection, and
// deperiodization of bonded structures so they stay spatially contiguous
// across the unit cell's periodic boundary.
//
// The teacher's own geometric.go has center-of-mass and mass-centrate
// helpers but nothing periodic-boundary-aware — gochem never needed to
// unwrap a simulation box. The periodic center-of-mass and the
// deperiodize-toward-an-anchor-atom routines below have no teacher
// equivalent to crib from; they implement the algorithm spec.md §4.5
// describes directly.
package transform

import (
	"math"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/vecmat"
)

// Options configures what Apply does to a decoded frame.
type Options struct {
	// RecenterMask names the atom indices whose mass-weighted center is
	// translated to the box center (or the origin, with no cell). A nil
	// or empty mask disables recentering.
	RecenterMask []int
	// Deperiodize unwraps each bonded connected structure across the
	// cell's periodic boundary. Only meaningful when the frame has a
	// unit cell.
	Deperiodize bool
}

// Apply runs the configured transforms on a decoded frame's coordinates,
// in place.
func Apply(opts Options, mol tcal.Molecule, header *tcal.FrameHeader, x, y, z []float64) error {
	if len(opts.RecenterMask) > 0 {
		if err := recenter(opts.RecenterMask, mol, &header.Cell, x, y, z); err != nil {
			return err
		}
	}
	if opts.Deperiodize && header.Cell.Present {
		deperiodize(mol, &header.Cell, x, y, z)
	}
	return nil
}

func recenter(indices []int, mol tcal.Molecule, cell *tcal.UnitCell, x, y, z []float64) error {
	for _, idx := range indices {
		if idx < 0 || idx >= len(x) {
			return tcal.NewError(tcal.ErrDecodeFailed, true, "", "recenter mask index %d out of range", idx)
		}
	}
	mass, err := mol.Masses()
	if err != nil {
		return err
	}
	m := vecmat.FromXYZ(x, y, z)

	var com [3]float64
	switch {
	case len(indices) == 1:
		i := indices[0]
		com = [3]float64{x[i], y[i], z[i]}
	case cell.Present:
		com = vecmat.ComputeCOMOrtho(m, indices, mass, cell.Extent())
	default:
		com = vecmat.WeightedMean(m, indices, mass)
	}

	var target [3]float64
	if cell.Present {
		ext := cell.Extent()
		target = [3]float64{ext[0] / 2, ext[1] / 2, ext[2] / 2}
	}
	t := [3]float64{target[0] - com[0], target[1] - com[1], target[2] - com[2]}
	m.Translate(t)
	m.ToXYZ(x, y, z)
	return nil
}

// deperiodize walks each connected structure and wraps every member other
// than its first atom toward that atom's position by minimum image. The
// structure index set TCAL's Molecule exposes is an unordered partition,
// not a bond-adjacency ordering, so this anchors on one representative
// atom per structure rather than walking bond-by-bond; for the compact,
// reasonably local structures this module deals with that is equivalent.
func deperiodize(mol tcal.Molecule, cell *tcal.UnitCell, x, y, z []float64) {
	ext := cell.Extent()
	offsets, indices := mol.Structures()
	for s := 0; s+1 < len(offsets); s++ {
		members := indices[offsets[s]:offsets[s+1]]
		if len(members) < 2 {
			continue
		}
		anchor := members[0]
		ref := [3]float64{x[anchor], y[anchor], z[anchor]}
		for _, idx := range members[1:] {
			x[idx] = wrapToward(x[idx], ref[0], ext[0])
			y[idx] = wrapToward(y[idx], ref[1], ext[1])
			z[idx] = wrapToward(z[idx], ref[2], ext[2])
		}
	}
}

func wrapToward(v, center, ext float64) float64 {
	if ext <= 0 {
		return v
	}
	d := v - center
	d -= math.Round(d/ext) * ext
	return center + d
}
