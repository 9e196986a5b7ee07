// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"

	"github.com/petenewcomb/sweep-go/internal/state"
)

// A TaskPool is a fixed set of task execution slots bound to a [Job].
type TaskPool struct {
	job      *Job
	limit    int
	inFlight state.InFlightCounter
	waiters  state.WaiterQueue
}

// NewTaskPool creates a pool bound to job that runs at most limit tasks at
// once. A negative limit means no limit.
//
// Panics if job is nil or limit is zero.
func NewTaskPool(job *Job, limit int) *TaskPool {
	if job == nil {
		panic("job must be non-nil")
	}
	if limit == 0 {
		panic("pool limit must be non-zero")
	}
	return &TaskPool{
		job:   job,
		limit: limit,
	}
}

// PeakInFlight returns the highest number of tasks that have executed in the
// pool at the same time.
func (p *TaskPool) PeakInFlight() int {
	return p.inFlight.Peak()
}

// acquire claims a slot, gathering completed results while the pool is full.
func (p *TaskPool) acquire(ctx context.Context) error {
	j := p.job
	for !p.inFlight.IncrementIfUnder(p.limit) {
		waiter := p.waiters.Add()

		// Check again after registering as a waiter, in case a slot was
		// released between the last check and this one.
		if p.inFlight.IncrementIfUnder(p.limit) {
			waiter.Close()
			return nil
		}

		select {
		case <-waiter.Done():
		case gather := <-j.gatherChan:
			waiter.Close()
			if err := j.executeGather(ctx, gather); err != nil {
				return err
			}
		case <-ctx.Done():
			waiter.Close()
			return ctx.Err()
		case <-j.ctx.Done():
			waiter.Close()
			return j.ctx.Err()
		}
	}
	return nil
}

func (p *TaskPool) release() {
	p.inFlight.Decrement()
	p.waiters.Notify()
}
