// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// lifecycleStage represents the possible stages in a job's lifecycle
type lifecycleStage int32

const (
	// stageOpen indicates that the job is accepting new tasks
	stageOpen lifecycleStage = iota
	// stageClosed indicates that the job is closed for new tasks but
	// existing tasks continue to run
	stageClosed
	// stageDone indicates that the job is closed and every task has been
	// gathered
	stageDone
)

// JobState tracks the lifecycle of a scatter-gather job. A task counts as in
// flight from the moment it is scattered until its result has been gathered.
type JobState struct {
	currentStage atomic.Int32
	tasks        InFlightCounter
	done         chan struct{}
}

// Init initializes an uninitialized JobState to the Open stage, and must be
// called exactly once before any other methods. An Init method is provided
// instead of a New function because JobState is expected to be an embedded
// field of Job.
func (js *JobState) Init() {
	js.currentStage.Store(int32(stageOpen))
	js.done = make(chan struct{})
}

func (js *JobState) IncrementTasks() {
	js.tasks.Increment()
}

// DecrementTasks records that a task has been gathered (or was never
// launched) and moves a closed job to Done when it was the last one.
func (js *JobState) DecrementTasks() {
	if js.tasks.Decrement() {
		js.noMoreTasks()
	}
}

// Close attempts to transition from Open to Closed.
func (js *JobState) Close() {
	if js.currentStage.CompareAndSwap(int32(stageOpen), int32(stageClosed)) {
		if js.tasks.IsZero() {
			js.noMoreTasks()
		}
	}
}

// Done returns the channel that will be closed when the job transitions to Done
func (js *JobState) Done() <-chan struct{} {
	return js.done
}

// PanicIfClosed panics if the job no longer accepts tasks.
func (js *JobState) PanicIfClosed() {
	if lifecycleStage(js.currentStage.Load()) != stageOpen {
		panic("job is closed and no longer accepts tasks")
	}
}

// noMoreTasks attempts to transition from Closed to Done
func (js *JobState) noMoreTasks() {
	if js.currentStage.CompareAndSwap(int32(stageClosed), int32(stageDone)) {
		close(js.done)
	}
}
