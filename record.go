// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
)

// Line prefixes of the simulation output format. Each record is written as a
// sweeps line, a positions line and a sizes line, in that order.
const (
	sweepsPrefix    = "# sweeps:"
	positionsPrefix = "#"
)

// Record is one simulation sample.
type Record struct {
	// Positions holds the opinion of each cluster.
	Positions []float64
	// Sizes holds the number of agents in each cluster.
	Sizes []float64
	// SweepSpeed is the most recent sweeps value seen in the file.
	SweepSpeed float64
}

// Parse streams the records of the output file at path in file order. The
// file is opened when iteration starts and closed when it stops, so each
// iteration reads the file afresh.
//
// A missing or unreadable file yields a single error wrapping
// ErrFileUnavailable. A format violation yields a *ParseError, which wraps
// ErrMalformedRecord. Iteration ends after the first error.
func Parse(path string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Record{}, fmt.Errorf("%w: %w", ErrFileUnavailable, err))
			return
		}
		defer f.Close()
		for rec, err := range Scan(path, f) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Scan streams records from r. The name is used only in error messages.
//
// A sweeps line sets the sweep speed for every following record until the
// next sweeps line. A positions line sets the positions of the next record.
// A sizes line completes a record; a sizes line that is not preceded by both
// a sweeps line and a positions line is malformed. Blank lines between
// records are ignored; a blank line right after a positions line is an empty
// sizes line and is malformed.
func Scan(name string, r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		br := bufio.NewReader(r)
		var (
			positions  []float64
			speed      float64
			haveSpeed  bool
			havePos    bool
			open       bool
			lineNumber int
		)
		malformed := func(format string, args ...any) error {
			return &ParseError{Path: name, Line: lineNumber, Reason: fmt.Sprintf(format, args...)}
		}
		for {
			line, readErr := br.ReadString('\n')
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(Record{}, fmt.Errorf("%w: reading %s: %w", ErrFileUnavailable, name, readErr))
				return
			}
			if line == "" && readErr != nil {
				return
			}
			lineNumber++
			line = strings.TrimRight(line, "\r\n")

			switch {
			case strings.TrimSpace(line) == "":
				if open {
					yield(Record{}, malformed("sizes: empty line"))
					return
				}
			case strings.HasPrefix(line, sweepsPrefix):
				v, err := parseFinite(strings.TrimSpace(line[len(sweepsPrefix):]))
				if err != nil {
					yield(Record{}, malformed("sweeps value: %v", err))
					return
				}
				speed, haveSpeed = v, true
			case strings.HasPrefix(line, positionsPrefix):
				v, err := parseVector(line[len(positionsPrefix):])
				if err != nil {
					yield(Record{}, malformed("positions: %v", err))
					return
				}
				positions, havePos, open = v, true, true
			default:
				sizes, err := parseVector(line)
				switch {
				case err != nil:
					yield(Record{}, malformed("sizes: %v", err))
					return
				case !havePos:
					yield(Record{}, malformed("sizes line before any positions line"))
					return
				case !haveSpeed:
					yield(Record{}, malformed("sizes line before any sweeps line"))
					return
				}
				open = false
				if !yield(Record{Positions: positions, Sizes: sizes, SweepSpeed: speed}, nil) {
					return
				}
			}

			if readErr != nil {
				return
			}
		}
	}
}

func parseVector(s string) ([]float64, error) {
	fields := strings.Fields(s)
	v := make([]float64, len(fields))
	for i, f := range fields {
		x, err := parseFinite(f)
		if err != nil {
			return nil, err
		}
		v[i] = x
	}
	return v, nil
}

func parseFinite(s string) (float64, error) {
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return x, nil
}

// WriteRecords writes records in the simulation output format, one sweeps
// line, positions line and sizes line per record.
func WriteRecords(w io.Writer, records iter.Seq[Record]) error {
	bw := bufio.NewWriter(w)
	for rec := range records {
		fmt.Fprintf(bw, "%s %s\n", sweepsPrefix, strconv.FormatFloat(rec.SweepSpeed, 'g', -1, 64))
		fmt.Fprintf(bw, "%s %s\n", positionsPrefix, formatVector(rec.Positions))
		fmt.Fprintf(bw, "%s\n", formatVector(rec.Sizes))
	}
	return bw.Flush()
}

func formatVector(v []float64) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	return sb.String()
}
