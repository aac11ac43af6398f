// Package cache implements TCAL's fixed-capacity Frame Cache: a
// find-or-reserve protocol over a small slot table, with CLOCK eviction and
// per-slot reader/writer locking so a cache hit only ever takes a read
// lock while a miss decodes under an exclusive one.
package cache

import (
	"sync"

	tcal "github.com/mdtcal/tcal"
)

// Capacity implements the sizing formula: the cache holds at most
// numFrames slots, further bounded by how many approxFrameBytes-sized
// frames fit in availableBytes. The result is never less than 1.
func Capacity(numFrames, atomCount int, availableBytes int64) int {
	if numFrames < 0 {
		numFrames = 0
	}
	size := numFrames
	approxFrameBytes := int64(atomCount) * 3 * 8
	if approxFrameBytes > 0 {
		if byBytes := int(availableBytes / approxFrameBytes); byBytes < size {
			size = byBytes
		}
	}
	if size < 1 {
		size = 1
	}
	return size
}

type slot struct {
	mu        sync.RWMutex
	index     int // -1 if never used
	populated bool
	clockBit  bool
	data      tcal.FrameData
}

// Cache is a fixed-capacity, frame-index-keyed store with CLOCK eviction.
type Cache struct {
	mu      sync.Mutex
	cond    *sync.Cond
	slots   []*slot
	byIndex map[int]*slot
	hand    int
}

// New returns a Cache with the given number of slots (minimum 1).
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	slots := make([]*slot, capacity)
	for i := range slots {
		slots[i] = &slot{index: -1}
	}
	c := &Cache{slots: slots, byIndex: make(map[int]*slot, capacity)}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Capacity returns the number of slots in c.
func (c *Cache) Capacity() int { return len(c.slots) }

// NumFrames returns the number of currently populated slots.
func (c *Cache) NumFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s.populated {
			n++
		}
	}
	return n
}

// Clear empties every slot. Callers must ensure no FindOrReserve-acquired
// Handle is outstanding when calling Clear.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		s.index = -1
		s.populated = false
		s.clockBit = false
	}
	c.byIndex = make(map[int]*slot, len(c.slots))
	c.hand = 0
	c.cond.Broadcast()
}

// Handle represents an in-flight access to one cache slot, acquired by
// FindOrReserve. A hit handle must be released with Release; a miss handle
// must be resolved with Commit or Abort.
type Handle struct {
	cache *Cache
	slot  *slot
	write bool
}

// Frame returns the slot's frame data for the caller to read (on a hit) or
// populate (on a miss).
func (h *Handle) Frame() *tcal.FrameData { return &h.slot.data }

// Release ends a read (hit) access. It broadcasts so any writer blocked in
// FindOrReserve because every slot was locked gets a chance to retry.
func (h *Handle) Release() {
	h.slot.mu.RUnlock()
	h.cache.mu.Lock()
	h.cache.cond.Broadcast()
	h.cache.mu.Unlock()
}

// Commit marks a reserved slot populated and releases its writer lock.
func (h *Handle) Commit() {
	h.cache.mu.Lock()
	h.slot.populated = true
	h.slot.clockBit = true
	h.slot.mu.Unlock()
	h.cache.cond.Broadcast()
	h.cache.mu.Unlock()
}

// Abort clears a failed reservation so other callers may retry the index,
// and releases the writer lock.
func (h *Handle) Abort() {
	h.cache.mu.Lock()
	if h.cache.byIndex[h.slot.index] == h.slot {
		delete(h.cache.byIndex, h.slot.index)
	}
	h.slot.index = -1
	h.slot.populated = false
	h.slot.mu.Unlock()
	h.cache.cond.Broadcast()
	h.cache.mu.Unlock()
}

// FindOrReserve is the cache's single atomic operation: if index is
// already populated, it returns a read Handle (wasPopulated true);
// otherwise it reserves a slot — evicting per CLOCK if every slot is in
// use — and returns a write Handle the caller must Commit or Abort.
func (c *Cache) FindOrReserve(index int) (h *Handle, wasPopulated bool, err error) {
	c.mu.Lock()
	for {
		if s, ok := c.byIndex[index]; ok {
			s.clockBit = true
			c.mu.Unlock()
			s.mu.RLock()
			if s.populated && s.index == index {
				return &Handle{cache: c, slot: s, write: false}, true, nil
			}
			// The in-flight writer aborted or the slot was recycled
			// between our lookup and our RLock; retry from scratch.
			s.mu.RUnlock()
			c.mu.Lock()
			continue
		}

		// selectVictim returns the victim already locked (via TryLock), so
		// a victim's index and populated fields are reassigned only while
		// the slot's own lock is held, never under c.mu alone, which would
		// otherwise race a concurrent reader's check of those same fields
		// right after its RLock above. (clockBit is bookkeeping that is
		// only touched under c.mu.)
		victim, ok := c.selectVictim()
		if !ok {
			c.cond.Wait() // every slot is mid-reservation or locked elsewhere
			continue
		}
		if victim.index != -1 {
			delete(c.byIndex, victim.index)
		}
		victim.index = index
		victim.populated = false
		victim.clockBit = true
		c.byIndex[index] = victim
		c.mu.Unlock()
		return &Handle{cache: c, slot: victim, write: true}, false, nil
	}
}

// selectVictim must be called with c.mu held. It never returns a slot that
// is currently claimed by an in-flight reservation for a different index,
// and it never returns a slot still locked by an outstanding reader or
// writer: a candidate is only chosen if its own lock can be acquired with
// TryLock, so the returned slot comes back already locked for the caller.
func (c *Cache) selectVictim() (*slot, bool) {
	n := len(c.slots)
	busy := func(s *slot) bool {
		return s.index != -1 && !s.populated && c.byIndex[s.index] == s
	}
	for i := 0; i < 2*n; i++ {
		s := c.slots[c.hand]
		c.hand = (c.hand + 1) % n
		if busy(s) {
			continue
		}
		if s.index == -1 || !s.clockBit {
			if s.mu.TryLock() {
				return s, true
			}
			continue
		}
		s.clockBit = false
	}
	for _, s := range c.slots {
		if !busy(s) && s.mu.TryLock() {
			return s, true
		}
	}
	return nil, false
}
