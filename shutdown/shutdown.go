// Package shutdown coordinates an orderly stop of an open engine,
// trimmed from the teacher's shutdown.Manager: the paired
// StartupManager and its readiness/liveness probes assumed an
// HTTP-serving process with a orchestrator polling those endpoints;
// cmd/kvstore has no such surface, so only the shutdown half survives,
// renamed Coordinator to describe what it actually does now - mark
// itself draining, then run registered teardown funcs in priority order.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kvstore/logging"
)

// Func is one named, priority-ordered teardown step.
type Func struct {
	Name     string
	Priority int // lower runs first
	Run      func(ctx context.Context) error
}

// Coordinator marks itself draining (see IsDraining) and then runs its
// registered Funcs, bounded by a timeout. It does not wait for in-flight
// callers to finish.
type Coordinator struct {
	log     *zap.Logger
	timeout time.Duration
	signals []os.Signal

	mu       sync.Mutex
	funcs    []Func
	draining int32

	done chan struct{}
	once sync.Once
}

// NewCoordinator returns a Coordinator that logs via logging.New and
// bounds teardown at timeout.
func NewCoordinator(timeout time.Duration) *Coordinator {
	return &Coordinator{
		log:     logging.New("shutdown"),
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		done:    make(chan struct{}),
	}
}

// Register adds a teardown step, inserted in priority order.
func (c *Coordinator) Register(name string, priority int, run func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := Func{Name: name, Priority: priority, Run: run}
	for i, existing := range c.funcs {
		if priority < existing.Priority {
			c.funcs = append(c.funcs[:i], append([]Func{f}, c.funcs[i:]...)...)
			return
		}
	}
	c.funcs = append(c.funcs, f)
}

// IsDraining reports whether Shutdown has been called; callers that
// accept new range scans or writes should check this and reject new
// work once it is set, rather than race the pool's own mutex.
func (c *Coordinator) IsDraining() bool { return atomic.LoadInt32(&c.draining) != 0 }

// Listen installs a signal handler that calls Shutdown on SIGINT/SIGTERM.
func (c *Coordinator) Listen() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, c.signals...)
	go func() {
		sig := <-sigCh
		c.log.Info("received shutdown signal", zap.String("signal", sig.String()))
		c.Shutdown()
	}()
}

// Shutdown marks the coordinator draining and runs every registered
// teardown step, in priority order, within the configured timeout.
// Safe to call more than once; only the first call runs teardown.
func (c *Coordinator) Shutdown() {
	c.once.Do(func() {
		atomic.StoreInt32(&c.draining, 1)
		c.run()
		close(c.done)
	})
}

// Wait blocks until Shutdown has completed.
func (c *Coordinator) Wait() { <-c.done }

func (c *Coordinator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	funcs := make([]Func, len(c.funcs))
	copy(funcs, c.funcs)
	c.mu.Unlock()

	stepDone := make(chan struct{})
	go func() {
		for _, f := range funcs {
			start := time.Now()
			if err := f.Run(ctx); err != nil {
				c.log.Error("shutdown step failed", zap.String("step", f.Name), zap.Error(err))
				continue
			}
			c.log.Info("shutdown step complete", zap.String("step", f.Name), zap.Duration("took", time.Since(start)))
		}
		close(stepDone)
	}()

	select {
	case <-stepDone:
		c.log.Info("graceful shutdown complete")
	case <-ctx.Done():
		c.log.Error("shutdown timed out", zap.Error(fmt.Errorf("exceeded %s", c.timeout)))
	}
}
