// Package traj implements the Trajectory Façade and the open-trajectories
// registry: an opaque Handle in front of a raw TrajectoryBackend, the Frame
// Cache, and the Post-decode Transform, grounded on the teacher's dcd.go
// (which already wraps a raw decoder behind a type that also satisfies its
// own Traj interface, making a façade a drop-in for the thing it wraps).
//
// The open-trajectories table is owned by a Context rather than a package
// global, so a process can run more than one independent registry (and a
// test can construct a fresh one per case) without shared state leaking
// between them.
package traj

import (
	"encoding/binary"
	"sync"

	"github.com/sirupsen/logrus"

	tcal "github.com/mdtcal/tcal"
	"github.com/mdtcal/tcal/cache"
	"github.com/mdtcal/tcal/config"
	"github.com/mdtcal/tcal/transform"
)

// Handle is an opaque reference to an open trajectory, valid until Close
// on the Context that issued it.
type Handle int64

// maxOpenTrajectories bounds a Context's open-trajectories table, mirroring
// the teacher's fixed-size descriptor tables (e.g. ramachandran.go's small
// compile-time limits) rather than letting the table grow unbounded.
const maxOpenTrajectories = 8

type facadeEntry struct {
	backend tcal.TrajectoryBackend
	mol     tcal.Molecule
	cache   *cache.Cache
	alloc   tcal.Allocator

	reconfigMu   sync.Mutex
	recenterMask []int
	deperiodize  bool
}

// Context owns one open-trajectories table. All of its methods are safe
// for concurrent use; distinct Contexts share no state.
type Context struct {
	mu      sync.Mutex
	entries map[Handle]*facadeEntry
	next    Handle
}

// NewContext returns an empty open-trajectories registry.
func NewContext() *Context {
	return &Context{entries: make(map[Handle]*facadeEntry)}
}

// OpenFile constructs a trajectory backend for path via backend, validates
// it against mol's atom count, and registers it in c's open-trajectories
// table under a fresh Handle. The Frame Cache is sized from config.Load and
// the backend's own atom/frame counts, per §3's sizing formula.
func (c *Context) OpenFile(path string, backend tcal.TrajectoryBackendFactory, mol tcal.Molecule, alloc tcal.Allocator) (Handle, error) {
	c.mu.Lock()
	if len(c.entries) >= maxOpenTrajectories {
		c.mu.Unlock()
		return 0, tcal.NewError(tcal.ErrCapacityExceeded, true, path, "at most %d trajectories may be open at once", maxOpenTrajectories)
	}
	c.mu.Unlock()

	if alloc == nil {
		alloc = tcal.NewPoolAllocator()
	}
	be, err := backend(path, alloc)
	if err != nil {
		return 0, err
	}
	if be.NumAtoms() != mol.Len() {
		be.Close()
		return 0, tcal.NewError(tcal.ErrTopologyMismatch, true, path,
			"trajectory has %d atoms, topology has %d", be.NumAtoms(), mol.Len())
	}

	cfg := config.Load()
	budget := config.ClampCacheBytes(cfg.CacheSizeBytes())
	capacity := cache.Capacity(be.NumFrames(), mol.Len(), budget)

	fe := &facadeEntry{backend: be, mol: mol, cache: cache.New(capacity), alloc: alloc}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxOpenTrajectories {
		be.Close()
		return 0, tcal.NewError(tcal.ErrCapacityExceeded, true, path, "at most %d trajectories may be open at once", maxOpenTrajectories)
	}
	c.next++
	h := c.next
	c.entries[h] = fe
	logrus.WithFields(logrus.Fields{"path": path, "handle": h, "frames": be.NumFrames(), "cache_slots": capacity}).Info("trajectory opened")
	return h, nil
}

func (c *Context) lookup(h Handle) (*facadeEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fe, ok := c.entries[h]
	if !ok {
		logrus.WithField("handle", h).Warn("lookup of unknown trajectory handle")
		return nil, tcal.NewError(tcal.ErrUnknownHandle, true, "", "unknown trajectory handle %d", h)
	}
	return fe, nil
}

// Close releases h's backend and removes it from c's open-trajectories
// table.
func (c *Context) Close(h Handle) error {
	c.mu.Lock()
	fe, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		logrus.WithField("handle", h).Warn("close of unknown trajectory handle")
		return tcal.NewError(tcal.ErrUnknownHandle, true, "", "unknown trajectory handle %d", h)
	}
	delete(c.entries, h)
	c.mu.Unlock()
	return fe.backend.Close()
}

// NumAtoms returns h's atom count.
func (c *Context) NumAtoms(h Handle) (int, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return 0, err
	}
	return fe.backend.NumAtoms(), nil
}

// NumFrames returns h's frame count.
func (c *Context) NumFrames(h Handle) (int, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return 0, err
	}
	return fe.backend.NumFrames(), nil
}

// GetHeader returns the header for frame idx without decoding coordinates.
func (c *Context) GetHeader(h Handle, idx int) (tcal.FrameHeader, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return tcal.FrameHeader{}, err
	}
	return fe.backend.GetHeader(idx)
}

// SetRecenterTarget updates h's recenter mask and returns the previous one.
// Per §4.4, reconfiguring a live trajectory does not invalidate already
// cached frames — only frames decoded afterward pick up the new setting.
func (c *Context) SetRecenterTarget(h Handle, mask []int) ([]int, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return nil, err
	}
	fe.reconfigMu.Lock()
	defer fe.reconfigMu.Unlock()
	prev := fe.recenterMask
	fe.recenterMask = mask
	logrus.WithFields(logrus.Fields{"handle": h, "mask_len": len(mask)}).Info("recenter target updated")
	return prev, nil
}

// SetDeperiodize updates h's deperiodize flag and returns the previous
// value.
func (c *Context) SetDeperiodize(h Handle, v bool) (bool, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return false, err
	}
	fe.reconfigMu.Lock()
	defer fe.reconfigMu.Unlock()
	prev := fe.deperiodize
	fe.deperiodize = v
	logrus.WithFields(logrus.Fields{"handle": h, "deperiodize": v}).Info("deperiodize setting updated")
	return prev, nil
}

// ClearCache drops every cached frame for h, forcing the next LoadFrame of
// any index to re-decode from the backend.
func (c *Context) ClearCache(h Handle) error {
	fe, err := c.lookup(h)
	if err != nil {
		return err
	}
	fe.cache.Clear()
	return nil
}

// NumCacheFrames reports how many of h's cache slots currently hold a
// decoded frame.
func (c *Context) NumCacheFrames(h Handle) (int, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return 0, err
	}
	return fe.cache.NumFrames(), nil
}

// FetchFrameData copies frame idx's opaque 8-byte little-endian index blob
// into out (or, if out is nil, only reports its length), the façade-level
// convention DecodeFrameData expects back.
func (c *Context) FetchFrameData(h Handle, idx int, out []byte) (int, error) {
	fe, err := c.lookup(h)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= fe.backend.NumFrames() {
		return 0, tcal.NewError(tcal.ErrDecodeFailed, true, "", "frame index %d out of range", idx)
	}
	if out == nil {
		return 8, nil
	}
	binary.LittleEndian.PutUint64(out, uint64(idx))
	return 8, nil
}

// DecodeFrameData is the façade's core operation: given the 8-byte index
// blob FetchFrameData produced, it serves the frame from the Frame Cache
// when present, or decodes it from the backend, applies the Post-decode
// Transform, and caches the result — all before copying coordinates out to
// the caller's buffers.
func (c *Context) DecodeFrameData(h Handle, blob []byte, header *tcal.FrameHeader, x, y, z []float64) error {
	fe, err := c.lookup(h)
	if err != nil {
		return err
	}
	if len(blob) != 8 {
		return tcal.NewError(tcal.ErrDecodeFailed, true, "", "malformed frame index blob")
	}
	idx := int(binary.LittleEndian.Uint64(blob))
	if idx < 0 || idx >= fe.backend.NumFrames() {
		return tcal.NewError(tcal.ErrDecodeFailed, true, "", "frame index %d out of range", idx)
	}
	if len(x) < fe.backend.NumAtoms() || len(y) < fe.backend.NumAtoms() || len(z) < fe.backend.NumAtoms() {
		return tcal.NewError(tcal.ErrDecodeFailed, true, "", "caller buffers too small for %d atoms", fe.backend.NumAtoms())
	}

	hnd, wasPopulated, err := fe.cache.FindOrReserve(idx)
	if err != nil {
		return err
	}
	if wasPopulated {
		defer hnd.Release()
		copyOut(hnd.Frame(), header, x, y, z)
		return nil
	}

	if err := fe.decodeInto(idx, hnd); err != nil {
		hnd.Abort()
		return err
	}
	copyOut(hnd.Frame(), header, x, y, z)
	hnd.Commit()
	return nil
}

// decodeInto fetches raw bytes from the backend, decodes and transforms
// them into hnd's slot, all while hnd still holds its exclusive writer
// lock.
func (fe *facadeEntry) decodeInto(idx int, hnd *cache.Handle) error {
	size, err := fe.backend.FetchFrameData(idx, nil)
	if err != nil {
		return err
	}
	raw := allocScratch(fe.alloc, size)
	defer freeScratch(fe.alloc, raw)
	if _, err := fe.backend.FetchFrameData(idx, raw); err != nil {
		return err
	}

	fd := hnd.Frame()
	natoms := fe.backend.NumAtoms()
	if cap(fd.X) < natoms {
		fd.X, fd.Y, fd.Z = make([]float64, natoms), make([]float64, natoms), make([]float64, natoms)
	} else {
		fd.X, fd.Y, fd.Z = fd.X[:natoms], fd.Y[:natoms], fd.Z[:natoms]
	}
	if err := fe.backend.DecodeFrameData(raw, &fd.Header, fd.X, fd.Y, fd.Z); err != nil {
		return err
	}

	fe.reconfigMu.Lock()
	opts := transform.Options{RecenterMask: fe.recenterMask, Deperiodize: fe.deperiodize}
	fe.reconfigMu.Unlock()
	return transform.Apply(opts, fe.mol, &fd.Header, fd.X, fd.Y, fd.Z)
}

func copyOut(fd *tcal.FrameData, header *tcal.FrameHeader, x, y, z []float64) {
	if header != nil {
		*header = fd.Header
	}
	copy(x, fd.X)
	copy(y, fd.Y)
	copy(z, fd.Z)
}

func allocScratch(alloc tcal.Allocator, n int) []byte {
	if alloc == nil {
		return make([]byte, n)
	}
	return alloc.Alloc(n)
}

func freeScratch(alloc tcal.Allocator, b []byte) {
	if alloc != nil {
		alloc.Free(b)
	}
}

// LoadFrame is the common-case convenience wrapper combining
// FetchFrameData and DecodeFrameData for callers that don't need to cache
// the intermediate blob themselves.
func (c *Context) LoadFrame(h Handle, idx int, header *tcal.FrameHeader, x, y, z []float64) error {
	blob := make([]byte, 8)
	if _, err := c.FetchFrameData(h, idx, blob); err != nil {
		return err
	}
	return c.DecodeFrameData(h, blob, header, x, y, z)
}
