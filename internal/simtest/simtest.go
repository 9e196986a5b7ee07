// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package simtest stands in for the external simulation program in tests.
// It provides an in-process [Runner] and a command-line [Main] that the test
// binary can run as a helper process to exercise the real exec path.
package simtest

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/petenewcomb/sweep-go"
)

// Records generates samples deterministic in the point's seed and epsilon.
// Every record partitions the system into clusters whose sizes sum to
// SystemSize.
func Records(p sweep.SweepPoint) []sweep.Record {
	rng := rand.New(rand.NewPCG(p.Seed, math.Float64bits(p.Epsilon)))
	records := make([]sweep.Record, p.SampleCount)
	for i := range records {
		remaining := p.SystemSize
		var sizes, positions []float64
		for remaining > 0 {
			s := 1 + rng.IntN(remaining)
			sizes = append(sizes, float64(s))
			positions = append(positions, rng.Float64())
			remaining -= s
		}
		records[i] = sweep.Record{
			Positions:  positions,
			Sizes:      sizes,
			SweepSpeed: float64(1 + rng.IntN(50)),
		}
	}
	return records
}

// WriteFile writes records to path in the simulation output format.
func WriteFile(path string, records []sweep.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sweep.WriteRecords(f, slices.Values(records)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Runner is an in-process sweep.Runner. The zero value writes Records for
// every job.
type Runner struct {
	// Records overrides the generated records of a job.
	Records func(job sweep.JobDescriptor) []sweep.Record
	// Fail, when it returns an error for a job, makes the job fail after
	// writing a partial output file.
	Fail func(job sweep.JobDescriptor) error
	// Delay is how long each job takes.
	Delay time.Duration
	// EnsureErr is returned by Ensure.
	EnsureErr error

	mu      sync.Mutex
	ran     []sweep.JobDescriptor
	ensured int
}

var _ sweep.Runner = (*Runner)(nil)

func (r *Runner) Ensure(ctx context.Context) error {
	r.mu.Lock()
	r.ensured++
	r.mu.Unlock()
	return r.EnsureErr
}

func (r *Runner) Run(ctx context.Context, job sweep.JobDescriptor) error {
	r.mu.Lock()
	r.ran = append(r.ran, job)
	r.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.Fail != nil {
		if err := r.Fail(job); err != nil {
			_ = os.WriteFile(job.OutputPath, []byte("# sweeps: 1\n"), 0o644)
			return err
		}
	}
	records := Records(job.Point)
	if r.Records != nil {
		records = r.Records(job)
	}
	return WriteFile(job.OutputPath, records)
}

// Ran returns the jobs run so far, in the order they started.
func (r *Runner) Ran() []sweep.JobDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ran)
}

// Ensured returns how many times Ensure was called.
func (r *Runner) Ensured() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensured
}

// HelperEnv is the environment variable that turns a test binary into the
// simulation program; see RunIfHelper.
const HelperEnv = "SWEEP_SIMTEST_HELPER"

// FailEpsilonEnv names an epsilon, formatted with sweep.FormatEpsilon, for
// which the helper program fails after writing a partial file.
const FailEpsilonEnv = "SWEEP_SIMTEST_FAIL_EPSILON"

// RunIfHelper runs Main and exits when HelperEnv is set. Call it first thing
// in TestMain; the test can then use os.Args[0] as the simulation program.
func RunIfHelper() {
	if os.Getenv(HelperEnv) == "" {
		return
	}
	os.Exit(Main(os.Args[1:], os.Stderr))
}

// Main implements the simulation program's command line:
//
//	-l MIN -u MAX -n AGENTS --samples S --seed SEED -o OUT
//
// Only MIN is used as the point's epsilon.
func Main(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("hk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	minConfidence := fs.Float64("l", 0, "minimum confidence")
	_ = fs.Float64("u", 1, "maximum confidence")
	agents := fs.Int("n", 0, "number of agents")
	samples := fs.Int("samples", 1, "number of samples")
	seed := fs.Uint64("seed", 1, "seed")
	out := fs.String("o", "out", "output file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *agents <= 0 {
		fmt.Fprintln(stderr, "error: -n must be positive")
		return 2
	}

	p := sweep.SweepPoint{
		Epsilon:     *minConfidence,
		SampleCount: *samples,
		SystemSize:  *agents,
		Seed:        *seed,
	}
	if fail := os.Getenv(FailEpsilonEnv); fail != "" && fail == sweep.FormatEpsilon(p.Epsilon) {
		_ = os.WriteFile(*out, []byte("# sweeps: "+strconv.Itoa(1)+"\n"), 0o644)
		fmt.Fprintf(stderr, "error: simulated failure at epsilon %s\n", fail)
		return 3
	}
	if err := WriteFile(*out, Records(p)); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
