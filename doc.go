// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package sweep drives a parameter sweep of an external simulation program
// and reduces its output to one summary statistic per sweep point.
//
// The pipeline has four stages:
//
//   - [Grid.Plan] enumerates the sweep into [JobDescriptor] values, each with a
//     deterministic output path and a unique seed, and [Partition] splits them
//     into jobs whose output already exists (cached) and jobs that must run
//     (pending).
//   - [Executor.Execute] runs the pending jobs on a fixed-size pool of
//     workers, tolerating individual failures, and returns once all of them
//     have finished.
//   - [Parse] streams the records of one output file without loading it into
//     memory.
//   - [Aggregate] reduces each file to the mean, over its records, of the
//     largest cluster size divided by the system size.
//
// [Pipeline.Run] chains the stages together. Results are always reported in sweep
// order regardless of the order in which jobs complete, and a job whose
// output file exists is never executed again.
package sweep
