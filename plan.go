// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
)

// Grid specifies a sweep over an inclusive, evenly spaced range of epsilon
// values at fixed system size and sample count.
type Grid struct {
	SystemSize  int
	SampleCount int
	EpsilonMin  float64
	EpsilonMax  float64
	EpsilonStep float64
	// BaseSeed is incremented before each use, so the first point receives
	// BaseSeed+1.
	BaseSeed uint64
	// Dir is the directory holding the output files.
	Dir string
}

// Grid values are snapped to this many decimal places to keep repeated
// additions of the step from drifting.
const gridDecimals = 10

func (g Grid) validate() error {
	switch {
	case g.SystemSize <= 0:
		return fmt.Errorf("%w: system size %d must be positive", ErrInvalidGrid, g.SystemSize)
	case g.SampleCount <= 0:
		return fmt.Errorf("%w: sample count %d must be positive", ErrInvalidGrid, g.SampleCount)
	case !isFinite(g.EpsilonMin) || !isFinite(g.EpsilonMax) || !isFinite(g.EpsilonStep):
		return fmt.Errorf("%w: epsilon min %v, max %v and step %v must be finite",
			ErrInvalidGrid, g.EpsilonMin, g.EpsilonMax, g.EpsilonStep)
	case !(g.EpsilonStep > 0):
		return fmt.Errorf("%w: epsilon step %v must be positive", ErrInvalidGrid, g.EpsilonStep)
	case g.EpsilonMin < 0 || g.EpsilonMax > 1:
		return fmt.Errorf("%w: epsilon range [%v, %v] must lie within [0, 1]", ErrInvalidGrid, g.EpsilonMin, g.EpsilonMax)
	case g.EpsilonMax < g.EpsilonMin:
		return fmt.Errorf("%w: epsilon max %v is below min %v", ErrInvalidGrid, g.EpsilonMax, g.EpsilonMin)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// maxDistinctPoints is how many distinct output paths the epsilon range
// [0, 1] has at EpsilonPrecision.
var maxDistinctPoints = math.Pow(10, EpsilonPrecision) + 1

// Points enumerates the grid in ascending epsilon order, assigning seeds from
// a counter that starts at BaseSeed and is incremented before each use. A grid
// with more points than there are distinct output paths fails with
// ErrPathCollision.
func (g Grid) Points() ([]SweepPoint, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	scale := math.Pow(10, gridDecimals)
	count := math.Floor((g.EpsilonMax-g.EpsilonMin)/g.EpsilonStep+1e-9) + 1
	if count > maxDistinctPoints {
		return nil, fmt.Errorf("%w: epsilon step %v yields %v points but only %v distinct paths exist",
			ErrPathCollision, g.EpsilonStep, count, maxDistinctPoints)
	}
	n := int(count)
	points := make([]SweepPoint, 0, n)
	seed := g.BaseSeed
	for i := range n {
		seed++
		eps := math.Round((g.EpsilonMin+float64(i)*g.EpsilonStep)*scale) / scale
		points = append(points, SweepPoint{
			Epsilon:     eps,
			SampleCount: g.SampleCount,
			SystemSize:  g.SystemSize,
			Seed:        seed,
		})
	}
	return points, nil
}

// Plan enumerates the grid and derives one JobDescriptor per point, in sweep
// order. It fails with ErrPathCollision if two points would share an output
// file.
func (g Grid) Plan() ([]JobDescriptor, error) {
	points, err := g.Points()
	if err != nil {
		return nil, err
	}
	jobs := make([]JobDescriptor, len(points))
	owners := make(map[string]SweepPoint, len(points))
	for i, p := range points {
		jobs[i] = NewJobDescriptor(g.Dir, i, p)
		if prev, ok := owners[jobs[i].OutputPath]; ok {
			return nil, fmt.Errorf("%w: epsilon %v and %v both map to %s",
				ErrPathCollision, prev.Epsilon, p.Epsilon, jobs[i].OutputPath)
		}
		owners[jobs[i].OutputPath] = p
	}
	return jobs, nil
}

// ExistsFunc reports whether an output file exists.
type ExistsFunc func(path string) (bool, error)

// FileExists is the ExistsFunc for the local filesystem. Any existing entry
// counts, whatever its contents.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Partition splits jobs into those whose output file already exists and those
// that must be executed, preserving sweep order within each. A job whose file
// exists is always cached, even if the file is stale or malformed; delete the
// file to force it to run again.
//
// Partition must complete before any job starts, so that the decision does
// not race with files being written.
func Partition(jobs []JobDescriptor, exists ExistsFunc) (cached, pending []JobDescriptor, err error) {
	if exists == nil {
		exists = FileExists
	}
	for _, job := range jobs {
		ok, err := exists(job.OutputPath)
		if err != nil {
			return nil, nil, fmt.Errorf("probing %s for %v: %w", job.OutputPath, job, err)
		}
		if ok {
			cached = append(cached, job)
		} else {
			pending = append(pending, job)
		}
	}
	return cached, pending, nil
}
