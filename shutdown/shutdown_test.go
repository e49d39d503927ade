package shutdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownRunsStepsInPriorityOrder(t *testing.T) {
	c := NewCoordinator(time.Second)
	var order []int
	record := func(n int) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			order = append(order, n)
			return nil
		}
	}
	c.Register("third", 3, record(3))
	c.Register("first", 1, record(1))
	c.Register("second", 2, record(2))

	c.Shutdown()
	c.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("shutdown order = %v, want [1 2 3]", order)
	}
	if !c.IsDraining() {
		t.Fatal("expected IsDraining to be true after Shutdown")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := NewCoordinator(time.Second)
	var calls int32
	c.Register("once", 1, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	c.Shutdown()
	c.Shutdown()
	c.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("teardown ran %d times, want 1", calls)
	}
}

func TestShutdownTimesOutOnSlowStep(t *testing.T) {
	c := NewCoordinator(20 * time.Millisecond)
	c.Register("slow", 1, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	c.Shutdown()
	c.Wait()
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("shutdown did not respect timeout")
	}
}
