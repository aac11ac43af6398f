// Package vecmat provides the small coordinate-matrix helpers the
// post-decode transform needs, wrapping gonum.org/v1/gonum/mat the way the
// teacher's v3 package wraps a dense gonum matrix with MD-flavored
// convenience methods (NewMatrix, VecView, Stack, ...) rather than using
// mat.Dense calls directly everywhere.
package vecmat

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a set of 3D row vectors backed by a dense gonum matrix.
type Matrix struct{ *mat.Dense }

// Zeros returns an n-row, all-zero coordinate matrix.
func Zeros(n int) *Matrix { return &Matrix{mat.NewDense(n, 3, nil)} }

// FromXYZ builds a Matrix from parallel coordinate slices.
func FromXYZ(x, y, z []float64) *Matrix {
	n := len(x)
	d := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		d.Set(i, 0, x[i])
		d.Set(i, 1, y[i])
		d.Set(i, 2, z[i])
	}
	return &Matrix{d}
}

// ToXYZ writes m back out into parallel coordinate slices.
func (m *Matrix) ToXYZ(x, y, z []float64) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		x[i] = m.At(i, 0)
		y[i] = m.At(i, 1)
		z[i] = m.At(i, 2)
	}
}

// NVecs returns the number of row vectors in m.
func (m *Matrix) NVecs() int { n, _ := m.Dims(); return n }

// Translate adds delta to every row of m in place.
func (m *Matrix) Translate(delta [3]float64) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		m.Set(i, 0, m.At(i, 0)+delta[0])
		m.Set(i, 1, m.At(i, 1)+delta[1])
		m.Set(i, 2, m.At(i, 2)+delta[2])
	}
}

// WeightedMean returns the mass-weighted mean of the rows named by
// indices. A nil mass slice is treated as uniform weight.
func WeightedMean(m *Matrix, indices []int, mass []float64) [3]float64 {
	var sum [3]float64
	var totalMass float64
	for _, idx := range indices {
		w := 1.0
		if mass != nil {
			w = mass[idx]
		}
		sum[0] += w * m.At(idx, 0)
		sum[1] += w * m.At(idx, 1)
		sum[2] += w * m.At(idx, 2)
		totalMass += w
	}
	if totalMass == 0 {
		return sum
	}
	return [3]float64{sum[0] / totalMass, sum[1] / totalMass, sum[2] / totalMass}
}

// ComputeCOMOrtho computes a periodic-aware (circular-mean) center of mass
// along each axis whose box extent is positive, falling back to a plain
// weighted mean on axes with no periodicity. This is the standard
// trigonometric trick for averaging points that wrap around a circle,
// applied per axis with the box length as the circle's circumference.
func ComputeCOMOrtho(m *Matrix, indices []int, mass []float64, boxExt [3]float64) [3]float64 {
	var com [3]float64
	for axis := 0; axis < 3; axis++ {
		L := boxExt[axis]
		if L <= 0 {
			var sum, totalMass float64
			for _, idx := range indices {
				w := 1.0
				if mass != nil {
					w = mass[idx]
				}
				sum += w * m.At(idx, axis)
				totalMass += w
			}
			if totalMass > 0 {
				com[axis] = sum / totalMass
			}
			continue
		}
		var sinSum, cosSum, totalMass float64
		for _, idx := range indices {
			w := 1.0
			if mass != nil {
				w = mass[idx]
			}
			theta := 2 * math.Pi * m.At(idx, axis) / L
			sinSum += w * math.Sin(theta)
			cosSum += w * math.Cos(theta)
			totalMass += w
		}
		if totalMass == 0 {
			continue
		}
		thetaMean := math.Atan2(sinSum/totalMass, cosSum/totalMass)
		v := thetaMean * L / (2 * math.Pi)
		if v < 0 {
			v += L
		}
		com[axis] = v
	}
	return com
}
