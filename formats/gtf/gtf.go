// Package gtf is TCAL's native trajectory format: a line-oriented,
// optionally compressed stream, grounded on the teacher's traj/stf/stf.go
// (the header/frame/box-line shape, and codec dispatch by filename
// suffix). It is the one trajectory backend that exercises the
// Post-decode Transform's unit-cell path end-to-end without needing a
// binary XTC/DCD decoder.
package gtf

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/formats/internal/wire"
	"github.com/mdtcal/tcal/registry"
)

func init() {
	registry.Register(&registry.Entry{
		Name:              "gtf",
		Extensions:        []string{"gtf"},
		TrajectoryFactory: openTrajectory,
	})
}

// codecFor picks a compression codec by filename suffix, the same
// last-characters-of-the-name dispatch stf.go and dcd/compressed.go use.
func codecFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return "gz"
	case strings.HasSuffix(path, ".flate"):
		return "flate"
	default:
		return "zstd"
	}
}

func newReadCloser(codec string, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case "gz":
		return gzip.NewReader(r)
	case "flate":
		return flate.NewReader(r), nil
	default:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
}

func newWriteCloser(w io.Writer, codec string) (io.WriteCloser, error) {
	switch codec {
	case "gz":
		return gzip.NewWriter(w), nil
	case "flate":
		return flate.NewWriter(w, flate.DefaultCompression)
	default:
		return zstd.NewWriter(w)
	}
}

// Writer creates GTF trajectory files: a text header followed by one block
// per frame (a frame header line, coordinate lines, then a box line).
type Writer struct {
	f      *os.File
	w      io.WriteCloser
	bw     *bufio.Writer
	natoms int
}

// Create opens path for writing a new GTF trajectory of natoms atoms.
func Create(path string, natoms int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	wc, err := newWriteCloser(f, codecFor(path))
	if err != nil {
		f.Close()
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	bw := bufio.NewWriter(wc)
	fmt.Fprintf(bw, "GTF1 %d\n", natoms)
	return &Writer{f: f, w: wc, bw: bw, natoms: natoms}, nil
}

// WriteFrame appends one frame.
func (w *Writer) WriteFrame(header tcal.FrameHeader, x, y, z []float64) error {
	if len(x) != w.natoms || len(y) != w.natoms || len(z) != w.natoms {
		return tcal.NewError(tcal.ErrDecodeFailed, true, "", "expected %d atoms, got %d", w.natoms, len(x))
	}
	fmt.Fprintf(w.bw, "%d %.17g %d\n", w.natoms, header.Time, header.Step)
	for i := 0; i < w.natoms; i++ {
		fmt.Fprintf(w.bw, "%.17g %.17g %.17g\n", x[i], y[i], z[i])
	}
	if header.Cell.Present {
		b := header.Cell.Basis
		fmt.Fprintf(w.bw, "* %.17g %.17g %.17g %.17g %.17g %.17g %.17g %.17g %.17g\n",
			b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
	} else {
		fmt.Fprint(w.bw, "*\n")
	}
	return nil
}

// Close flushes and closes the writer.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if err := w.w.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

type gtfFrame struct {
	time    float64
	step    int
	x, y, z []float64
	cell    tcal.UnitCell
}

// Trajectory is TCAL's GTF trajectory backend. The whole (decompressed)
// file is parsed eagerly at open time, the same simplification the pdb
// and xyz backends make, trading streaming for random access by index.
type Trajectory struct {
	filename string
	natoms   int
	frames   []gtfFrame
}

func openTrajectory(path string, alloc tcal.Allocator) (tcal.TrajectoryBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer f.Close()
	rc, err := newReadCloser(codecFor(path), bufio.NewReader(f))
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
	}
	defer rc.Close()
	br := bufio.NewReader(rc)

	headerLine, err := br.ReadString('\n')
	if err != nil {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "missing GTF header: %v", err)
	}
	fields := strings.Fields(headerLine)
	if len(fields) < 2 || fields[0] != "GTF1" {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "not a GTF1 file")
	}
	natoms, err := strconv.Atoi(fields[1])
	if err != nil || natoms <= 0 {
		return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "bad atom count in GTF header")
	}

	var frames []gtfFrame
	for {
		fr, ok, err := readFrame(br, natoms)
		if err != nil {
			return nil, tcal.NewError(tcal.ErrBackendCreateFailed, true, path, "%v", err)
		}
		if !ok {
			break
		}
		frames = append(frames, fr)
	}
	return &Trajectory{filename: path, natoms: natoms, frames: frames}, nil
}

func readFrame(br *bufio.Reader, natoms int) (gtfFrame, bool, error) {
	var fr gtfFrame
	line, err := br.ReadString('\n')
	if strings.TrimSpace(line) == "" {
		return fr, false, nil
	}
	if err != nil && err != io.EOF {
		return fr, false, err
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fr, false, nil
	}
	n, _ := strconv.Atoi(fields[0])
	if n != natoms {
		return fr, false, fmt.Errorf("frame atom count %d != header %d", n, natoms)
	}
	fr.time, _ = strconv.ParseFloat(fields[1], 64)
	step, _ := strconv.Atoi(fields[2])
	fr.step = step
	fr.x = make([]float64, natoms)
	fr.y = make([]float64, natoms)
	fr.z = make([]float64, natoms)
	for i := 0; i < natoms; i++ {
		cl, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return fr, false, err
		}
		cf := strings.Fields(cl)
		if len(cf) < 3 {
			return fr, false, fmt.Errorf("truncated coordinate line")
		}
		fr.x[i], _ = strconv.ParseFloat(cf[0], 64)
		fr.y[i], _ = strconv.ParseFloat(cf[1], 64)
		fr.z[i], _ = strconv.ParseFloat(cf[2], 64)
	}
	boxLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return fr, false, err
	}
	bf := strings.Fields(boxLine)
	if len(bf) >= 10 && bf[0] == "*" {
		var basis [9]float64
		for k := 0; k < 9; k++ {
			basis[k], _ = strconv.ParseFloat(bf[k+1], 64)
		}
		fr.cell = tcal.UnitCell{Basis: basis, Present: true}
	}
	return fr, true, nil
}

const frameBlobFixedLen = 8 + 8 + 1 + 72

func encodeFrame(fr gtfFrame) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, fr.time)
	binary.Write(buf, binary.LittleEndian, int64(fr.step))
	present := byte(0)
	if fr.cell.Present {
		present = 1
	}
	buf.WriteByte(present)
	for _, v := range fr.cell.Basis {
		binary.Write(buf, binary.LittleEndian, v)
	}
	buf.Write(wire.EncodeXYZ(fr.x, fr.y, fr.z))
	return buf.Bytes()
}

func decodeFrame(blob []byte, header *tcal.FrameHeader, x, y, z []float64) error {
	if len(blob) < frameBlobFixedLen {
		return fmt.Errorf("gtf: short frame blob")
	}
	r := bytes.NewReader(blob)
	var timeVal float64
	var step int64
	binary.Read(r, binary.LittleEndian, &timeVal)
	binary.Read(r, binary.LittleEndian, &step)
	present, _ := r.ReadByte()
	var basis [9]float64
	for i := range basis {
		binary.Read(r, binary.LittleEndian, &basis[i])
	}
	if header != nil {
		header.Time = timeVal
		header.Step = int(step)
		header.AtomCount = len(x)
		header.Cell = tcal.UnitCell{Basis: basis, Present: present == 1}
	}
	return wire.DecodeXYZ(blob[frameBlobFixedLen:], x, y, z)
}

func (t *Trajectory) checkIdx(idx int) error {
	if idx < 0 || idx >= len(t.frames) {
		return tcal.NewError(tcal.ErrDecodeFailed, true, t.filename, "frame index %d out of range", idx)
	}
	return nil
}

func (t *Trajectory) Close() error   { return nil }
func (t *Trajectory) NumAtoms() int  { return t.natoms }
func (t *Trajectory) NumFrames() int { return len(t.frames) }

func (t *Trajectory) GetHeader(idx int) (tcal.FrameHeader, error) {
	if err := t.checkIdx(idx); err != nil {
		return tcal.FrameHeader{}, err
	}
	fr := t.frames[idx]
	return tcal.FrameHeader{AtomCount: t.natoms, Time: fr.time, Step: fr.step, Cell: fr.cell}, nil
}

func (t *Trajectory) FetchFrameData(idx int, out []byte) (int, error) {
	if err := t.checkIdx(idx); err != nil {
		return 0, err
	}
	buf := encodeFrame(t.frames[idx])
	if out != nil {
		copy(out, buf)
	}
	return len(buf), nil
}

func (t *Trajectory) DecodeFrameData(blob []byte, header *tcal.FrameHeader, x, y, z []float64) error {
	if err := decodeFrame(blob, header, x, y, z); err != nil {
		return tcal.NewError(tcal.ErrDecodeFailed, true, t.filename, "%v", err)
	}
	return nil
}
