package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCapacityFormula(t *testing.T) {
	cases := []struct {
		numFrames, atomCount int
		available            int64
		want                 int
	}{
		{100, 50, 4 * 1024 * 1024, 100},
		{10, 1000000, 1024, 1},
		{0, 10, 1024, 1},
	}
	for _, c := range cases {
		got := Capacity(c.numFrames, c.atomCount, c.available)
		if got != c.want {
			t.Errorf("Capacity(%d,%d,%d) = %d, want %d", c.numFrames, c.atomCount, c.available, got, c.want)
		}
	}
}

func TestFindOrReserveMissThenHit(t *testing.T) {
	c := New(4)
	h, wasPopulated, err := c.FindOrReserve(7)
	if err != nil {
		t.Fatal(err)
	}
	if wasPopulated {
		t.Fatal("expected a miss on first access")
	}
	h.Frame().X = []float64{1, 2, 3}
	h.Commit()

	h2, wasPopulated2, err := c.FindOrReserve(7)
	if err != nil {
		t.Fatal(err)
	}
	if !wasPopulated2 {
		t.Fatal("expected a hit on second access")
	}
	if h2.Frame().X[0] != 1 {
		t.Fatal("unexpected cached data on hit")
	}
	h2.Release()
}

func TestAbortAllowsRetry(t *testing.T) {
	c := New(2)
	h, wasPopulated, err := c.FindOrReserve(1)
	if err != nil || wasPopulated {
		t.Fatal("expected a fresh miss")
	}
	h.Abort()

	h2, wasPopulated2, err := c.FindOrReserve(1)
	if err != nil {
		t.Fatal(err)
	}
	if wasPopulated2 {
		t.Fatal("an aborted reservation must not appear populated")
	}
	h2.Commit()
}

func TestClearResetsPopulatedCount(t *testing.T) {
	c := New(2)
	h, _, _ := c.FindOrReserve(0)
	h.Commit()
	if c.NumFrames() != 1 {
		t.Fatalf("expected 1 populated frame, got %d", c.NumFrames())
	}
	c.Clear()
	if c.NumFrames() != 0 {
		t.Fatalf("expected 0 populated frames after Clear, got %d", c.NumFrames())
	}
}

func TestCapacityOneAlwaysMissesOnDistinctIndices(t *testing.T) {
	c := New(1)
	for _, idx := range []int{0, 1, 2, 0, 3} {
		h, wasPopulated, err := c.FindOrReserve(idx)
		if err != nil {
			t.Fatal(err)
		}
		if wasPopulated {
			t.Fatalf("frame %d unexpectedly found populated in a 1-slot cache", idx)
		}
		h.Commit()
	}
}

func TestEvictionNeverStealsAnOutstandingReadHandle(t *testing.T) {
	c := New(1)
	h, _, err := c.FindOrReserve(0)
	if err != nil {
		t.Fatal(err)
	}
	h.Frame().X = []float64{42}
	h.Commit()

	hit, wasPopulated, err := c.FindOrReserve(0)
	if err != nil || !wasPopulated {
		t.Fatalf("expected a hit, got wasPopulated=%v err=%v", wasPopulated, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(5 * time.Millisecond)
		// While hit's RLock is still held, every slot in this
		// capacity-1 cache is busy; the reservation for a distinct
		// index must block rather than repurpose hit's slot out from
		// under it.
		evictHandle, wasPopulated, err := c.FindOrReserve(1)
		if err != nil {
			t.Error(err)
			return
		}
		if wasPopulated {
			t.Error("index 1 was never committed, cannot be a hit")
			return
		}
		evictHandle.Frame().X = []float64{7}
		evictHandle.Commit()
	}()

	time.Sleep(20 * time.Millisecond)
	if hit.Frame().X[0] != 42 {
		t.Fatalf("reader's data mutated while its read handle was outstanding: %v", hit.Frame().X)
	}
	hit.Release()
	<-done

	h2, wasPopulated2, err := c.FindOrReserve(1)
	if err != nil || !wasPopulated2 {
		t.Fatalf("expected index 1 now cached, got wasPopulated=%v err=%v", wasPopulated2, err)
	}
	if h2.Frame().X[0] != 7 {
		t.Fatalf("unexpected data for index 1: %v", h2.Frame().X)
	}
	h2.Release()
}

func TestConcurrentSameIndexDecodesOnce(t *testing.T) {
	c := New(4)
	var decodes int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, wasPopulated, err := c.FindOrReserve(3)
			if err != nil {
				t.Error(err)
				return
			}
			if wasPopulated {
				h.Release()
				return
			}
			atomic.AddInt32(&decodes, 1)
			time.Sleep(5 * time.Millisecond)
			h.Frame().X = []float64{9}
			h.Commit()
		}()
	}
	wg.Wait()
	if decodes != 1 {
		t.Fatalf("expected exactly 1 decode for a concurrently-requested frame, got %d", decodes)
	}
}
