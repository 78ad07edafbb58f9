package digest

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// state is the worker's {Idle, Ticking, ShuttingDown} state machine (§4.11).
type state int32

const (
	stateIdle state = iota
	stateTicking
	stateShuttingDown
)

// Worker periodically drains the digest queue within a per-tick time
// budget, grounded on the bounded batch-processing loop spec.md §4.11
// describes.
type Worker struct {
	useCase  *UseCase
	interval time.Duration
	budget   time.Duration
	batch    int

	state    atomic.Int32
	shutdown atomic.Bool
}

// WorkerConfig bounds one Worker instance (§6 env vars).
type WorkerConfig struct {
	IntervalSecs int
	BudgetSecs   int // 0 defaults to ~90% of IntervalSecs
	BatchSize    int
}

func NewWorker(useCase *UseCase, cfg WorkerConfig) *Worker {
	interval := time.Duration(cfg.IntervalSecs) * time.Second
	budget := time.Duration(cfg.BudgetSecs) * time.Second
	if budget <= 0 {
		budget = time.Duration(float64(interval) * 0.9)
	}
	w := &Worker{useCase: useCase, interval: interval, budget: budget, batch: cfg.BatchSize}
	w.state.Store(int32(stateIdle))
	return w
}

// Shutdown requests the worker exit at the next safe point: between batches
// within a tick, or between ticks.
func (w *Worker) Shutdown() {
	w.shutdown.Store(true)
}

// Run loops waiting for each tick of interval and calling ProcessTick, until
// ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.shutdown.Load() {
				return
			}
			w.ProcessTick(ctx)
		}
	}
}

// ProcessTick repeatedly calls ProcessBatch until the tick budget is
// exceeded, the queue drains (ProcessBatch returns 0), or shutdown is
// requested. A batch-level error is logged; it never aborts the tick (§4.11).
func (w *Worker) ProcessTick(ctx context.Context) {
	w.state.Store(int32(stateTicking))
	defer w.state.CompareAndSwap(int32(stateTicking), int32(stateIdle))

	deadline := time.Now().Add(w.budget)
	for {
		if w.shutdown.Load() {
			w.state.Store(int32(stateShuttingDown))
			return
		}
		if time.Now().After(deadline) {
			return
		}

		processed, err := w.useCase.ProcessBatch(ctx, w.batch)
		if err != nil {
			log.Printf("[digest] batch error: %v", err)
			continue
		}
		if processed == 0 {
			return
		}
	}
}
