package ceiling

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/cascade"
)

// ---------------------------------------------------------------------------
// Governor basics
// ---------------------------------------------------------------------------

func TestNewGovernor_Empty(t *testing.T) {
	g := NewGovernor()
	// No limits; Acquire/Release should always succeed.
	if _, ok := g.Acquire(cascade.KindBatch); !ok {
		t.Fatal("expected Acquire to succeed for unlimited kind")
	}
	g.Release(cascade.KindBatch)
}

func TestNewGovernor_WithLimit(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 2,
	})
	if g.Active(cascade.KindBatch) != 0 {
		t.Fatal("expected 0 active jobs initially")
	}
}

// ---------------------------------------------------------------------------
// Concurrency ceilings
// ---------------------------------------------------------------------------

func TestGovernor_MaxConcurrent(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 2,
	})

	if _, ok := g.Acquire(cascade.KindBatch); !ok {
		t.Fatal("first Acquire should succeed")
	}
	if _, ok := g.Acquire(cascade.KindBatch); !ok {
		t.Fatal("second Acquire should succeed")
	}
	// Third should be blocked with no wait hint.
	wait, ok := g.Acquire(cascade.KindBatch)
	if ok {
		t.Fatal("third Acquire should fail (max concurrent 2)")
	}
	if wait != 0 {
		t.Fatalf("concurrency ceiling should give no wait hint, got %v", wait)
	}

	// Release one slot.
	g.Release(cascade.KindBatch)
	if _, ok := g.Acquire(cascade.KindBatch); !ok {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestGovernor_AcquireRelease_Active(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 5,
	})

	for i := range 3 {
		if _, ok := g.Acquire(cascade.KindBatch); !ok {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if g.Active(cascade.KindBatch) != 3 {
		t.Fatalf("expected 3 active, got %d", g.Active(cascade.KindBatch))
	}

	g.Release(cascade.KindBatch)
	g.Release(cascade.KindBatch)
	if g.Active(cascade.KindBatch) != 1 {
		t.Fatalf("expected 1 active, got %d", g.Active(cascade.KindBatch))
	}
}

func TestGovernor_KindIsolation(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 1,
	})

	g.Acquire(cascade.KindBatch)
	if _, ok := g.Acquire(cascade.KindBatch); ok {
		t.Fatal("batch should be blocked at max concurrent 1")
	}

	// Queueables are unaffected.
	if _, ok := g.Acquire(cascade.KindQueueable); !ok {
		t.Fatal("queueable should not be affected by the batch ceiling")
	}

	g.Release(cascade.KindBatch)
	g.Release(cascade.KindQueueable)
}

// ---------------------------------------------------------------------------
// Start-rate ceilings
// ---------------------------------------------------------------------------

func TestGovernor_StartRate_DelayHint(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:       cascade.KindQueueable,
		StartRate:  1.0, // 1 per second
		StartBurst: 1,
	})

	// First should succeed (burst allows it).
	if _, ok := g.Acquire(cascade.KindQueueable); !ok {
		t.Fatal("first Acquire should succeed (within burst)")
	}

	// Immediately after, the token bucket is empty; expect a wait hint.
	wait, ok := g.Acquire(cascade.KindQueueable)
	if ok {
		t.Fatal("second Acquire should fail (rate limited)")
	}
	if wait <= 0 {
		t.Fatalf("rate ceiling should give a wait hint, got %v", wait)
	}
	if g.Active(cascade.KindQueueable) != 1 {
		t.Fatalf("failed Acquire must not change active, got %d", g.Active(cascade.KindQueueable))
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if _, ok := g.Acquire(cascade.KindQueueable); !ok {
		t.Fatal("Acquire should succeed after token refill")
	}
}

func TestGovernor_StartRate_BurstAllows(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:       cascade.KindQueueable,
		StartRate:  10.0,
		StartBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if _, ok := g.Acquire(cascade.KindQueueable); !ok {
			t.Fatalf("Acquire %d should succeed (within burst)", i)
		}
	}
}

// ---------------------------------------------------------------------------
// Dynamic reconfiguration
// ---------------------------------------------------------------------------

func TestGovernor_SetLimit(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 1,
	})

	g.Acquire(cascade.KindBatch)
	if _, ok := g.Acquire(cascade.KindBatch); ok {
		t.Fatal("should be blocked at max concurrent 1")
	}

	// Raise the ceiling dynamically.
	g.SetLimit(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 3,
	})

	// Active count survives the reconfiguration.
	if g.Active(cascade.KindBatch) != 1 {
		t.Fatalf("expected 1 active after SetLimit, got %d", g.Active(cascade.KindBatch))
	}
	if _, ok := g.Acquire(cascade.KindBatch); !ok {
		t.Fatal("should succeed after raising the ceiling")
	}
	g.Release(cascade.KindBatch)
	g.Release(cascade.KindBatch)
}

// ---------------------------------------------------------------------------
// Concurrency safety
// ---------------------------------------------------------------------------

func TestGovernor_ConcurrentAccess(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 50,
	})

	var acquired atomic.Int64
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.Acquire(cascade.KindBatch); ok {
				acquired.Add(1)
				// Simulate work.
				time.Sleep(time.Millisecond)
				g.Release(cascade.KindBatch)
			}
		}()
	}

	wg.Wait()

	// At least some should have succeeded.
	if acquired.Load() == 0 {
		t.Fatal("expected some Acquires to succeed")
	}

	// Active should be back to 0.
	if g.Active(cascade.KindBatch) != 0 {
		t.Fatalf("expected 0 active after all goroutines, got %d", g.Active(cascade.KindBatch))
	}
}

func TestGovernor_UnlimitedKind_AlwaysSucceeds(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 1,
	})

	// Queueable has no limit configured.
	for range 10 {
		if _, ok := g.Acquire(cascade.KindQueueable); !ok {
			t.Fatal("unlimited kind should always allow Acquire")
		}
	}
	for range 10 {
		g.Release(cascade.KindQueueable)
	}
}

func TestGovernor_ReleaseUnderflow(t *testing.T) {
	g := NewGovernor(Limit{
		Kind:          cascade.KindBatch,
		MaxConcurrent: 5,
	})

	// Release without Acquire should not go negative.
	g.Release(cascade.KindBatch)
	if g.Active(cascade.KindBatch) != 0 {
		t.Fatal("active count should not go below 0")
	}
}
