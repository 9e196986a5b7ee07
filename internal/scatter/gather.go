// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
)

// A Gather binds a [GatherFunc] so that it can be paired with any number of
// scattered tasks producing the same result type.
type Gather[T any] struct {
	gatherFunc GatherFunc[T]
}

func NewGather[T any](gatherFunc GatherFunc[T]) *Gather[T] {
	if gatherFunc == nil {
		panic("gather function must be non-nil")
	}
	return &Gather[T]{
		gatherFunc: gatherFunc,
	}
}

// Scatter launches taskFunc in a new goroutine within pool. After the task
// completes, its result and error are passed to the Gather's function during
// a later call to Scatter or [Job.CloseAndGatherAll].
//
// Before launching, Scatter gathers a couple of already-completed results to
// keep execution smooth. If the pool is full it then blocks, gathering further
// results, until a slot becomes available. The context passed to Scatter can
// cancel that wait, but only the job's context is passed to the task.
//
// If Scatter returns a non-nil error, taskFunc was not launched.
func (g *Gather[T]) Scatter(
	ctx context.Context,
	pool *TaskPool,
	taskFunc TaskFunc[T],
) error {
	if taskFunc == nil {
		panic("task function must be non-nil")
	}
	if pool == nil {
		panic("pool must be non-nil")
	}
	j := pool.job
	if j.isTaskContext(ctx) {
		panic("Scatter called from within TaskFunc; move call to GatherFunc instead")
	}
	j.state.PanicIfClosed()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.ctx.Err(); err != nil {
		return err
	}

	// Gathering up to 2 here balances between catching up and pausing for too
	// long during a scatter.
	for range 2 {
		ok, err := j.tryGatherOne(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}

	if err := pool.acquire(ctx); err != nil {
		return err
	}

	j.state.IncrementTasks()
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		value, err := taskFunc(j.ctx)

		// Release the slot BEFORE waiting on the gather channel so that a
		// blocked Scatter can proceed while this result waits to be gathered.
		pool.release()

		gather := func(ctx context.Context) error {
			return g.gatherFunc(ctx, value, err)
		}
		select {
		case j.gatherChan <- gather:
		case <-j.ctx.Done():
			// The result is forfeited.
			j.state.DecrementTasks()
		}
	}()
	return nil
}
