// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"slices"

	"github.com/petenewcomb/sweep-go/internal/obs"
	"github.com/petenewcomb/sweep-go/internal/scatter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Executor runs pending jobs on a fixed-size pool of workers.
type Executor struct {
	Runner Runner
	// Workers bounds the number of concurrently running jobs; zero or less
	// means runtime.NumCPU().
	Workers int

	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Failure is a job that did not produce its output file.
type Failure struct {
	Job JobDescriptor
	Err error
}

// Report lists the outcome of every executed job, each in sweep order.
type Report struct {
	Completed []JobDescriptor
	Failed    []Failure
	// PeakWorkers is the highest number of jobs that ran at the same time.
	PeakWorkers int
}

// FailedJobs returns the errors of failed jobs keyed by JobDescriptor.Index,
// in the form Aggregator.Aggregate expects.
func (r *Report) FailedJobs() map[int]error {
	m := make(map[int]error, len(r.Failed))
	for _, f := range r.Failed {
		m[f.Job.Index] = f.Err
	}
	return m
}

type jobOutcome struct {
	pos int
	job JobDescriptor
}

// jobAttributes returns the attributes describing jd on its span and the
// subset recorded on metrics. Seed and path are unique per job and stay off
// the metrics.
func jobAttributes(jd JobDescriptor) (span, metric []attribute.KeyValue) {
	metric = []attribute.KeyValue{
		attribute.Float64("epsilon", jd.Point.Epsilon),
		attribute.Int("system_size", jd.Point.SystemSize),
	}
	span = append(slices.Clone(metric),
		attribute.Int64("seed", int64(jd.Point.Seed)),
		attribute.String("path", jd.OutputPath),
	)
	return span, metric
}

// Execute runs every pending job and returns once all of them have finished.
//
// The runner's Ensure is checked before any job starts. Failing jobs do not
// stop the others: a job fails when the runner returns an error or when it
// returns without having written the output file, and in either case any
// partial output is removed so that the failure surfaces as
// ErrFileUnavailable during aggregation and the job runs again next time.
//
// The returned error is non-nil only if the runner is unavailable or ctx is
// canceled.
func (e *Executor) Execute(ctx context.Context, pending []JobDescriptor) (*Report, error) {
	report := &Report{}
	if len(pending) == 0 {
		return report, nil
	}
	if e.Runner == nil {
		panic("executor runner must be non-nil")
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := e.Runner.Ensure(ctx); err != nil {
		return nil, err
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	metrics, err := obs.NewTaskMetrics(e.MeterProvider, "sweep.job")
	if err != nil {
		return nil, fmt.Errorf("creating job metrics: %w", err)
	}
	inst := obs.Instrumentation{
		Logger:         logger,
		TracerProvider: e.TracerProvider,
		Metrics:        metrics,
	}

	logger.Info("Starting simulations",
		zap.Int("jobs", len(pending)),
		zap.Int("workers", workers))

	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, workers)
	prog := newProgress(logger, pending)

	gather := scatter.NewGather(func(ctx context.Context, out jobOutcome, err error) error {
		if err != nil {
			if rmErr := os.Remove(out.job.OutputPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				logger.Warn("Could not remove partial output",
					zap.String("path", out.job.OutputPath),
					zap.Error(rmErr))
			}
			report.Failed = append(report.Failed, Failure{Job: out.job, Err: err})
		} else {
			report.Completed = append(report.Completed, out.job)
		}
		prog.finish(out.pos)
		return nil
	})

	for pos, jd := range pending {
		spanAttrs, metricAttrs := jobAttributes(jd)
		task := obs.InstrumentedTask(inst, "sweep.job", spanAttrs, metricAttrs, func(ctx context.Context) (jobOutcome, error) {
			out := jobOutcome{pos: pos, job: jd}
			if err := e.Runner.Run(ctx, jd); err != nil {
				return out, err
			}
			ok, err := FileExists(jd.OutputPath)
			switch {
			case err != nil:
				return out, fmt.Errorf("%w: %w", ErrFileUnavailable, err)
			case !ok:
				return out, fmt.Errorf("%w: simulation exited successfully without writing %s", ErrFileUnavailable, jd.OutputPath)
			}
			return out, nil
		})
		if err := gather.Scatter(ctx, pool, task); err != nil {
			return nil, err
		}
	}
	if err := job.CloseAndGatherAll(ctx); err != nil {
		return nil, err
	}

	byIndex := func(a, b JobDescriptor) int { return cmp.Compare(a.Index, b.Index) }
	slices.SortFunc(report.Completed, byIndex)
	slices.SortFunc(report.Failed, func(a, b Failure) int { return byIndex(a.Job, b.Job) })
	report.PeakWorkers = pool.PeakInFlight()

	logger.Info("Simulations finished",
		zap.Int("completed", len(report.Completed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("peak_workers", report.PeakWorkers))
	return report, nil
}
