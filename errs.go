// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"fmt"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

// ErrFileUnavailable is reported when a job's output file is missing or
// unreadable, including when the job that should have produced it failed.
const ErrFileUnavailable = constError("output file unavailable")

// ErrMalformedRecord is reported when a readable output file violates the
// record format. It is always fatal to the pipeline.
const ErrMalformedRecord = constError("malformed record")

// ErrEmptyResult is reported when an output file contains no complete record.
const ErrEmptyResult = constError("no records in output file")

// ErrProgramUnavailable is reported when the simulation program is missing
// and cannot be built.
const ErrProgramUnavailable = constError("simulation program unavailable")

// ErrInvalidGrid is reported when sweep grid parameters are out of range or
// not finite.
const ErrInvalidGrid = constError("invalid sweep grid")

// ErrPathCollision is reported when two grid points would share an output
// file because their epsilon values are equal at the path's precision.
const ErrPathCollision = constError("output path collision")

// ParseError locates a format violation within an output file.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, ErrMalformedRecord, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedRecord
}

// PointError attributes a failure to the sweep point whose output could not
// be aggregated.
type PointError struct {
	Point SweepPoint
	Path  string
	Err   error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("epsilon=%s n=%d seed=%d (%s): %v",
		FormatEpsilon(e.Point.Epsilon), e.Point.SystemSize, e.Point.Seed, e.Path, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}
