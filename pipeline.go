// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"context"

	"go.uber.org/zap"
)

// Pipeline chains planning, execution and aggregation of a sweep.
type Pipeline struct {
	Grid     Grid
	Executor *Executor
	OnError  ErrorPolicy
	// Exists probes for output files; nil means FileExists.
	Exists ExistsFunc
	Logger *zap.Logger
}

// Outcome is everything a pipeline run produced.
type Outcome struct {
	// Jobs lists every job of the sweep in sweep order.
	Jobs    []JobDescriptor
	Cached  []JobDescriptor
	Pending []JobDescriptor
	Report  *Report
	Summary *Summary
}

// Run plans the sweep, executes the jobs whose output is missing, and
// aggregates every job's output in sweep order.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jobs, err := p.Grid.Plan()
	if err != nil {
		return nil, err
	}
	// The whole partition is decided before any job starts.
	cached, pending, err := Partition(jobs, p.Exists)
	if err != nil {
		return nil, err
	}
	logger.Info("Planned sweep",
		zap.Int("jobs", len(jobs)),
		zap.Int("cached", len(cached)),
		zap.Int("pending", len(pending)),
		zap.String("dir", p.Grid.Dir))

	ex := p.Executor
	if ex == nil {
		ex = &Executor{}
	}
	if ex.Logger == nil {
		e := *ex
		e.Logger = logger
		ex = &e
	}
	report, err := ex.Execute(ctx, pending)
	if err != nil {
		return nil, err
	}

	agg := Aggregator{OnError: p.OnError, Logger: logger}
	summary, err := agg.Aggregate(jobs, report.FailedJobs())
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Jobs:    jobs,
		Cached:  cached,
		Pending: pending,
		Report:  report,
		Summary: summary,
	}, nil
}
