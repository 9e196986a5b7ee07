// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
)

// A TaskFunc is executed asynchronously in its own goroutine within a
// [TaskPool] and must therefore be thread-safe, including any variables it
// captures. The context passed to it is canceled by [Job.Cancel].
//
// If a TaskFunc panics, the whole program terminates. Recover within the task
// and return an error instead if that is undesirable.
//
// A TaskFunc must not call [Gather.Scatter] on its own job, since that may
// deadlock when the pool is full. Scatter from the [GatherFunc] instead.
type TaskFunc[T any] = func(context.Context) (T, error)

// A GatherFunc processes the result of a completed [TaskFunc]. Gather
// functions are called one at a time from the goroutine calling
// [Gather.Scatter] or [Job.CloseAndGatherAll]. A non-nil return aborts the
// calling operation.
type GatherFunc[T any] = func(context.Context, T, error) error
