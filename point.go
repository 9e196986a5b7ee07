// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// EpsilonPrecision is the number of decimal places with which epsilon appears
// in output file names.
const EpsilonPrecision = 2

// SweepPoint is one configuration of the sweep.
type SweepPoint struct {
	// Epsilon is the confidence bound; the simulation is run with both its
	// lower and upper bound set to this value.
	Epsilon float64
	// SampleCount is the number of independent repetitions.
	SampleCount int
	// SystemSize is the number of simulated agents.
	SystemSize int
	// Seed is unique per point and increases in sweep order.
	Seed uint64
}

// JobDescriptor is the immutable unit of execution for one SweepPoint.
type JobDescriptor struct {
	// Index is the point's position in sweep order.
	Index int
	Point SweepPoint
	// OutputPath is where the simulation writes, and where the planner and
	// aggregator look for, this point's records.
	OutputPath string
}

// FormatEpsilon formats epsilon the way it appears in output file names.
func FormatEpsilon(epsilon float64) string {
	return strconv.FormatFloat(epsilon, 'f', EpsilonPrecision, 64)
}

// OutputPath returns the deterministic output file for the given system size
// and epsilon within dir.
func OutputPath(dir string, systemSize int, epsilon float64) string {
	return filepath.Join(dir, fmt.Sprintf("out_n%d_e%s.dat", systemSize, FormatEpsilon(epsilon)))
}

// NewJobDescriptor derives the descriptor of p, writing into dir.
func NewJobDescriptor(dir string, index int, p SweepPoint) JobDescriptor {
	return JobDescriptor{
		Index:      index,
		Point:      p,
		OutputPath: OutputPath(dir, p.SystemSize, p.Epsilon),
	}
}

// Args returns the simulation program's command-line arguments for the job.
// Both confidence bounds are set to the point's epsilon.
func (d JobDescriptor) Args() []string {
	eps := strconv.FormatFloat(d.Point.Epsilon, 'f', -1, 64)
	return []string{
		"-l", eps,
		"-u", eps,
		"-n", strconv.Itoa(d.Point.SystemSize),
		"--samples", strconv.Itoa(d.Point.SampleCount),
		"--seed", strconv.FormatUint(d.Point.Seed, 10),
		"-o", d.OutputPath,
	}
}

func (d JobDescriptor) String() string {
	return fmt.Sprintf("#%d epsilon=%s n=%d seed=%d", d.Index, FormatEpsilon(d.Point.Epsilon), d.Point.SystemSize, d.Point.Seed)
}
