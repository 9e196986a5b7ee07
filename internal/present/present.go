// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package present renders an aggregated sweep as text or as a chart.
package present

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/petenewcomb/sweep-go"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Table writes one "confidence meanNormalizedMax" line per result, in sweep
// order.
func Table(w io.Writer, summary *sweep.Summary) error {
	bw := bufio.NewWriter(w)
	xs, ys := summary.Confidences(), summary.Means()
	for i := range xs {
		bw.WriteString(sweep.FormatEpsilon(xs[i]))
		bw.WriteByte(' ')
		bw.WriteString(strconv.FormatFloat(ys[i], 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ErrNothingToPlot is returned by Plot for a summary without results.
var ErrNothingToPlot = errors.New("no aggregated results to plot")

// series is a line of aligned points with a symmetric error bar on each.
type series struct {
	plotter.XYs
	plotter.YErrors
}

func (s series) Len() int {
	return len(s.XYs)
}

var (
	_ plotter.XYer     = series{}
	_ plotter.YErrorer = series{}
)

// newSeries pairs the summary's confidences with its means, using the
// standard error of each mean as its error bar.
func newSeries(summary *sweep.Summary) series {
	xs, ys := summary.Confidences(), summary.Means()
	s := series{
		XYs:     make(plotter.XYs, len(xs)),
		YErrors: make(plotter.YErrors, len(xs)),
	}
	for i := range xs {
		s.XYs[i].X, s.XYs[i].Y = xs[i], ys[i]
		e := summary.Results[i].StdErr
		s.YErrors[i].Low, s.YErrors[i].High = e, e
	}
	return s
}

// Chart builds the plot of mean normalized largest cluster against
// confidence.
func Chart(summary *sweep.Summary, title string) (*plot.Plot, error) {
	if len(summary.Results) == 0 {
		return nil, ErrNothingToPlot
	}
	points := newSeries(summary)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "confidence"
	p.Y.Label.Text = "⟨S⟩"
	p.Title.TextStyle.Color = color.Gray{128}
	p.X.Color = color.Gray{128}
	p.Y.Color = color.Gray{128}
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	colors, err := brewer.GetPalette(brewer.TypeQualitative, "Dark2", 3)
	if err != nil {
		return nil, err
	}
	c := colors.Colors()[0]

	line, scatter, err := plotter.NewLinePoints(points)
	if err != nil {
		return nil, err
	}
	line.Color = c
	scatter.Color = c
	scatter.Radius = vg.Points(2)
	p.Add(line, scatter)

	bars, err := plotter.NewYErrorBars(points)
	if err != nil {
		return nil, err
	}
	bars.Color = c
	bars.Width = 0.2 * vg.Millimeter
	p.Add(bars)

	return p, nil
}

// Plot writes the chart to path; the format follows the file extension (svg,
// png, pdf, ...).
func Plot(path string, summary *sweep.Summary, title string) error {
	p, err := Chart(summary, title)
	if err != nil {
		return err
	}
	if err := p.Save(9*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
