// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// AggregateResult is the summary of one sweep point.
type AggregateResult struct {
	// Confidence is the point's epsilon.
	Confidence float64
	// MeanNormalizedMax is the mean over all records of the largest cluster
	// size divided by the system size.
	MeanNormalizedMax float64
	// Samples is the number of records averaged.
	Samples int
	// StdErr is the standard error of MeanNormalizedMax; zero for a single
	// sample.
	StdErr float64
}

// MeanReducer accumulates a running mean and variance in constant space. The
// zero value is an empty reducer.
type MeanReducer struct {
	n    int
	mean float64
	m2   float64
}

// Add folds x into the running statistics.
func (r *MeanReducer) Add(x float64) {
	r.n++
	d := x - r.mean
	r.mean += d / float64(r.n)
	r.m2 += d * (x - r.mean)
}

func (r MeanReducer) Count() int {
	return r.n
}

// Mean returns the running mean, or false if nothing has been added.
func (r MeanReducer) Mean() (float64, bool) {
	return r.mean, r.n > 0
}

// Variance returns the unbiased sample variance, zero for fewer than two
// values.
func (r MeanReducer) Variance() float64 {
	if r.n < 2 {
		return 0
	}
	return r.m2 / float64(r.n-1)
}

func (r MeanReducer) StdErr() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.Variance() / float64(r.n))
}

// Reduce streams the job's output file and summarizes it. Errors are
// *PointError values wrapping ErrFileUnavailable, ErrMalformedRecord or
// ErrEmptyResult.
func Reduce(job JobDescriptor) (AggregateResult, error) {
	fail := func(err error) (AggregateResult, error) {
		return AggregateResult{}, &PointError{Point: job.Point, Path: job.OutputPath, Err: err}
	}

	var r MeanReducer
	n := float64(job.Point.SystemSize)
	for rec, err := range Parse(job.OutputPath) {
		if err != nil {
			return fail(err)
		}
		r.Add(floats.Max(rec.Sizes) / n)
	}
	mean, ok := r.Mean()
	if !ok {
		return fail(ErrEmptyResult)
	}
	return AggregateResult{
		Confidence:        job.Point.Epsilon,
		MeanNormalizedMax: mean,
		Samples:           r.Count(),
		StdErr:            r.StdErr(),
	}, nil
}

// ErrorPolicy decides what happens when a sweep point's output is missing or
// empty. Malformed output is always fatal.
type ErrorPolicy int

const (
	// AbortOnError stops aggregation at the first failing point.
	AbortOnError ErrorPolicy = iota
	// SkipOnError reports the failing point in Summary.Skipped, logs it, and
	// continues with the next one.
	SkipOnError
)

func (p ErrorPolicy) String() string {
	switch p {
	case AbortOnError:
		return "abort"
	case SkipOnError:
		return "skip"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "abort" or "skip".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "abort":
		return AbortOnError, nil
	case "skip":
		return SkipOnError, nil
	default:
		return 0, fmt.Errorf("unknown error policy %q (want abort or skip)", s)
	}
}

// Summary is the outcome of aggregating a sweep.
type Summary struct {
	// Results holds one entry per successfully aggregated point, in sweep
	// order.
	Results []AggregateResult
	// Skipped holds the points that could not be aggregated under
	// SkipOnError, in sweep order.
	Skipped []*PointError
}

// Confidences and Means return the two aligned sequences of the summary.
func (s *Summary) Confidences() []float64 {
	xs := make([]float64, len(s.Results))
	for i, r := range s.Results {
		xs[i] = r.Confidence
	}
	return xs
}

func (s *Summary) Means() []float64 {
	ys := make([]float64, len(s.Results))
	for i, r := range s.Results {
		ys[i] = r.MeanNormalizedMax
	}
	return ys
}

// Aggregator reduces every job of a sweep, in the order given.
type Aggregator struct {
	OnError ErrorPolicy
	Logger  *zap.Logger
}

// Aggregate reduces each job in order. Jobs listed in failed, keyed by
// JobDescriptor.Index, are reported as ErrFileUnavailable without reading
// their files.
func (a *Aggregator) Aggregate(jobs []JobDescriptor, failed map[int]error) (*Summary, error) {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	summary := &Summary{Results: make([]AggregateResult, 0, len(jobs))}
	for _, job := range jobs {
		var (
			res AggregateResult
			err error
		)
		if jobErr, ok := failed[job.Index]; ok {
			err = &PointError{
				Point: job.Point,
				Path:  job.OutputPath,
				Err:   fmt.Errorf("%w: job failed: %w", ErrFileUnavailable, jobErr),
			}
		} else {
			res, err = Reduce(job)
		}
		if err == nil {
			summary.Results = append(summary.Results, res)
			continue
		}

		var pe *PointError
		if !errors.As(err, &pe) {
			return nil, err
		}
		if a.OnError == AbortOnError || errors.Is(err, ErrMalformedRecord) {
			return nil, err
		}
		logger.Warn("Skipping sweep point",
			zap.Float64("epsilon", job.Point.Epsilon),
			zap.String("path", job.OutputPath),
			zap.Error(err))
		summary.Skipped = append(summary.Skipped, pe)
	}
	return summary, nil
}
