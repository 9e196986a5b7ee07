// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sweep_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/petenewcomb/sweep-go"
	"github.com/petenewcomb/sweep-go/internal/simtest"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func planJobs(t interface {
	require.TestingT
	Helper()
}, g sweep.Grid) []sweep.JobDescriptor {
	t.Helper()
	jobs, err := g.Plan()
	require.NoError(t, err)
	return jobs
}

func TestExecuteRunsEveryPendingJob(t *testing.T) {
	chk := require.New(t)
	g := defaultGrid(t.TempDir())
	g.SystemSize = 16
	g.SampleCount = 3
	g.EpsilonMax = 0.11
	jobs := planJobs(t, g)

	runner := &simtest.Runner{Delay: time.Millisecond}
	ex := &sweep.Executor{Runner: runner, Workers: 3}
	report, err := ex.Execute(context.Background(), jobs)
	chk.NoError(err)
	chk.Equal(jobs, report.Completed)
	chk.Empty(report.Failed)
	chk.Equal(1, runner.Ensured())
	chk.Len(runner.Ran(), len(jobs))
	chk.LessOrEqual(report.PeakWorkers, 3)
	chk.GreaterOrEqual(report.PeakWorkers, 1)

	for _, jd := range jobs {
		res, err := sweep.Reduce(jd)
		chk.NoError(err)
		chk.Equal(3, res.Samples)
	}
}

func TestExecuteNeverExceedsWorkers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		dir, err := os.MkdirTemp("", "sweep-execute")
		chk.NoError(err)
		defer os.RemoveAll(dir)

		workers := rapid.IntRange(1, 8).Draw(t, "workers")
		steps := rapid.IntRange(0, 20).Draw(t, "steps")
		g := sweep.Grid{
			SystemSize:  4,
			SampleCount: 1,
			EpsilonMin:  0,
			EpsilonMax:  float64(steps) * 0.01,
			EpsilonStep: 0.01,
			Dir:         dir,
		}
		jobs := planJobs(t, g)

		runner := &simtest.Runner{Delay: 100 * time.Microsecond}
		ex := &sweep.Executor{Runner: runner, Workers: workers}
		report, err := ex.Execute(context.Background(), jobs)
		chk.NoError(err)
		chk.Len(report.Completed, len(jobs))
		chk.LessOrEqual(report.PeakWorkers, workers)
	})
}

func TestExecuteToleratesFailures(t *testing.T) {
	chk := require.New(t)
	g := defaultGrid(t.TempDir())
	g.SystemSize = 8
	g.EpsilonMax = 0.05
	jobs := planJobs(t, g)

	boom := errors.New("exit status 101")
	runner := &simtest.Runner{
		Fail: func(jd sweep.JobDescriptor) error {
			if sweep.FormatEpsilon(jd.Point.Epsilon) == "0.02" {
				return boom
			}
			return nil
		},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	ex := &sweep.Executor{Runner: runner, Workers: 2, Logger: zap.New(core)}
	report, err := ex.Execute(context.Background(), jobs)
	chk.NoError(err)
	chk.Len(report.Completed, len(jobs)-1)
	chk.Len(report.Failed, 1)
	chk.Equal(jobs[2], report.Failed[0].Job)
	chk.ErrorIs(report.Failed[0].Err, boom)
	chk.Equal(map[int]error{2: report.Failed[0].Err}, report.FailedJobs())

	// The partial file the failing run left behind is gone.
	ok, err := sweep.FileExists(jobs[2].OutputPath)
	chk.NoError(err)
	chk.False(ok)

	progress := logs.FilterMessage("Sweep progress").All()
	chk.NotEmpty(progress)
	last := progress[len(progress)-1].ContextMap()
	chk.EqualValues(len(jobs), last["finished"])
	chk.Equal(0.05, last["complete_through_epsilon"])
	chk.Equal(1, logs.FilterMessage("Task failed").Len())
}

func TestExecuteDetectsMissingOutput(t *testing.T) {
	chk := require.New(t)
	jobs := planJobs(t, sweep.Grid{
		SystemSize: 4, SampleCount: 1, EpsilonStep: 0.01, Dir: t.TempDir(),
	})
	ex := &sweep.Executor{Runner: silentRunner{}, Workers: 1}
	report, err := ex.Execute(context.Background(), jobs)
	chk.NoError(err)
	chk.Len(report.Failed, 1)
	chk.ErrorIs(report.Failed[0].Err, sweep.ErrFileUnavailable)
}

// silentRunner succeeds without writing anything.
type silentRunner struct{}

func (silentRunner) Ensure(context.Context) error                   { return nil }
func (silentRunner) Run(context.Context, sweep.JobDescriptor) error { return nil }

func TestExecuteChecksRunnerFirst(t *testing.T) {
	chk := require.New(t)
	jobs := planJobs(t, defaultGrid(t.TempDir()))
	runner := &simtest.Runner{EnsureErr: sweep.ErrProgramUnavailable}
	ex := &sweep.Executor{Runner: runner}
	_, err := ex.Execute(context.Background(), jobs)
	chk.ErrorIs(err, sweep.ErrProgramUnavailable)
	chk.Empty(runner.Ran())
}

func TestExecuteNothingPending(t *testing.T) {
	chk := require.New(t)
	runner := &simtest.Runner{EnsureErr: sweep.ErrProgramUnavailable}
	ex := &sweep.Executor{Runner: runner}
	report, err := ex.Execute(context.Background(), nil)
	chk.NoError(err)
	chk.Empty(report.Completed)
	chk.Zero(runner.Ensured())
}

func TestExecuteNilRunnerPanics(t *testing.T) {
	chk := require.New(t)
	jobs := planJobs(t, defaultGrid(t.TempDir()))
	ex := &sweep.Executor{}
	chk.PanicsWithValue("executor runner must be non-nil", func() {
		_, _ = ex.Execute(context.Background(), jobs)
	})
}

func TestExecuteCanceled(t *testing.T) {
	chk := require.New(t)
	jobs := planJobs(t, defaultGrid(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	runner := &simtest.Runner{Delay: time.Hour}
	ex := &sweep.Executor{Runner: runner, Workers: 2}
	go func() {
		for len(runner.Ran()) < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, err := ex.Execute(ctx, jobs)
	chk.ErrorIs(err, context.Canceled)
}

func TestExecuteTracesJobs(t *testing.T) {
	chk := require.New(t)
	g := defaultGrid(t.TempDir())
	g.EpsilonMax = 0.03
	jobs := planJobs(t, g)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ex := &sweep.Executor{Runner: &simtest.Runner{}, Workers: 2, TracerProvider: provider}
	_, err := ex.Execute(context.Background(), jobs)
	chk.NoError(err)

	spans := recorder.Ended()
	chk.Len(spans, len(jobs))
	for _, s := range spans {
		chk.Equal("sweep.job", s.Name())
	}
}

func helperCommand(t *testing.T) *sweep.Command {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	t.Setenv(simtest.HelperEnv, "1")
	return &sweep.Command{Path: exe}
}

func TestCommandRunsExternalProgram(t *testing.T) {
	chk := require.New(t)
	cmd := helperCommand(t)
	t.Setenv(simtest.FailEpsilonEnv, "0.01")

	g := defaultGrid(t.TempDir())
	g.SystemSize = 6
	g.SampleCount = 2
	g.EpsilonMax = 0.02
	jobs := planJobs(t, g)

	ex := &sweep.Executor{Runner: cmd, Workers: 2}
	report, err := ex.Execute(context.Background(), jobs)
	chk.NoError(err)
	chk.Equal([]sweep.JobDescriptor{jobs[0], jobs[2]}, report.Completed)
	chk.Len(report.Failed, 1)
	chk.Contains(report.Failed[0].Err.Error(), "simulated failure at epsilon 0.01")

	for _, i := range []int{0, 2} {
		res, err := sweep.Reduce(jobs[i])
		chk.NoError(err)
		chk.Equal(2, res.Samples)
	}
	ok, err := sweep.FileExists(jobs[1].OutputPath)
	chk.NoError(err)
	chk.False(ok)
}

func TestCommandEnsureMissingProgram(t *testing.T) {
	chk := require.New(t)
	cmd := &sweep.Command{Path: filepath.Join(t.TempDir(), "hk")}
	err := cmd.Ensure(context.Background())
	chk.ErrorIs(err, sweep.ErrProgramUnavailable)
	chk.Equal(err, cmd.Ensure(context.Background()))
}

func TestCommandEnsureBuilds(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("build command uses sh")
	}
	chk := require.New(t)
	dir := t.TempDir()
	cmd := &sweep.Command{
		Path:     filepath.Join(dir, "hk"),
		Build:    []string{"sh", "-c", "printf '#!/bin/sh\\nexit 0\\n' > hk && chmod +x hk"},
		BuildDir: dir,
	}
	chk.NoError(cmd.Ensure(context.Background()))
	chk.FileExists(cmd.Path)
}

func TestCommandEnsureBuildFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("build command uses sh")
	}
	chk := require.New(t)
	dir := t.TempDir()
	cmd := &sweep.Command{
		Path:     filepath.Join(dir, "hk"),
		Build:    []string{"sh", "-c", "echo no toolchain >&2; exit 1"},
		BuildDir: dir,
	}
	err := cmd.Ensure(context.Background())
	chk.ErrorIs(err, sweep.ErrProgramUnavailable)
	chk.Contains(err.Error(), "no toolchain")
}
