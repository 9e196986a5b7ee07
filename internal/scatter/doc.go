// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package scatter launches (scatters) tasks into a fixed-size pool of
// goroutines and hands their results back (gathers them) to the goroutine
// that owns the [Job]. Tasks run concurrently while gathering stays
// sequential, so gather functions may mutate local state without locking.
//
// A [TaskPool] bounds how many tasks run at once. When the pool is full,
// [Gather.Scatter] blocks, gathering completed results while it waits, which
// lets an unbounded list of tasks be submitted from a simple loop.
// [Job.CloseAndGatherAll] is the synchronization barrier: it returns once every
// scattered task has finished and its result has been gathered.
package scatter
