// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
	"sync"

	"github.com/petenewcomb/sweep-go/internal/state"
)

// Job is a single-threaded scatter-gather execution environment. All calls to
// [Gather.Scatter] and [Job.CloseAndGatherAll] for a job must come from the
// same goroutine.
//
// Each call to NewJob should typically be followed by a deferred call to
// [Job.CancelAndWait] so that an early return does not leave tasks running.
type Job struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	state      state.JobState
	gatherChan chan boundGatherFunc
	wg         sync.WaitGroup
}

type boundGatherFunc = func(ctx context.Context) error

type taskContextKey struct{}

// NewJob creates a job whose tasks receive a context derived from ctx.
func NewJob(ctx context.Context) *Job {
	j := &Job{}
	ctx, j.cancelFunc = context.WithCancel(ctx)
	j.ctx = context.WithValue(ctx, taskContextKey{}, j)
	j.state.Init()
	j.gatherChan = make(chan boundGatherFunc)
	return j
}

func (j *Job) isTaskContext(ctx context.Context) bool {
	owner, _ := ctx.Value(taskContextKey{}).(*Job)
	return owner == j
}

// Cancel terminates in-flight tasks by canceling their context and forfeits
// any ungathered results. It always returns immediately and may be called
// more than once.
func (j *Job) Cancel() {
	j.cancelFunc()
}

// CancelAndWait cancels the job and waits for every task goroutine to exit.
func (j *Job) CancelAndWait() {
	j.cancelFunc()
	j.wg.Wait()
}

// CloseAndGatherAll stops the job from accepting new tasks and then gathers
// every outstanding result, blocking until the last task has finished and its
// gather function has returned.
//
// Returns nil unless a context is canceled or a gather function returns a
// non-nil error, in which case remaining results are left ungathered.
func (j *Job) CloseAndGatherAll(ctx context.Context) error {
	j.state.Close()
	if err := j.ctx.Err(); err != nil {
		return err
	}
	for {
		select {
		case gather := <-j.gatherChan:
			if err := j.executeGather(ctx, gather); err != nil {
				return err
			}
		case <-j.state.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-j.ctx.Done():
			return j.ctx.Err()
		}
	}
}

// tryGatherOne processes a single completed result if one is immediately
// available.
func (j *Job) tryGatherOne(ctx context.Context) (bool, error) {
	select {
	case gather := <-j.gatherChan:
		return true, j.executeGather(ctx, gather)
	default:
		return false, nil
	}
}

func (j *Job) executeGather(ctx context.Context, gather boundGatherFunc) error {
	// The task stays counted until its gather function returns, so the job
	// cannot be considered done while a result is still being processed.
	defer j.state.DecrementTasks()
	return gather(ctx)
}
