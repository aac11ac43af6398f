// Package wire is the shared coordinate-blob encoding the text-format
// backends (pdb, xyz, gtf) use between FetchFrameData and DecodeFrameData:
// plain little-endian float64 triples, no external serialization library
// warranted for a format this small and internal to this module.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeXYZ packs parallel coordinate slices into 24*len(x) bytes, three
// little-endian float64s per atom.
func EncodeXYZ(x, y, z []float64) []byte {
	n := len(x)
	buf := make([]byte, n*24)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[i*24:], math.Float64bits(x[i]))
		binary.LittleEndian.PutUint64(buf[i*24+8:], math.Float64bits(y[i]))
		binary.LittleEndian.PutUint64(buf[i*24+16:], math.Float64bits(z[i]))
	}
	return buf
}

// DecodeXYZ unpacks a buffer produced by EncodeXYZ into parallel coordinate
// slices, which must already be sized to the expected atom count.
func DecodeXYZ(buf []byte, x, y, z []float64) error {
	n := len(x)
	if len(buf) < n*24 {
		return fmt.Errorf("wire: short buffer: need %d bytes, got %d", n*24, len(buf))
	}
	for i := 0; i < n; i++ {
		x[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*24:]))
		y[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*24+8:]))
		z[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*24+16:]))
	}
	return nil
}
