// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petenewcomb/sweep-go/internal/scatter"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScatterGathersEveryResult(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 2)

	seen := make(map[int]bool)
	gather := scatter.NewGather(func(ctx context.Context, v int, err error) error {
		chk.NoError(err)
		seen[v] = true
		return nil
	})
	for i := range 20 {
		chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
			time.Sleep(time.Millisecond)
			return i, nil
		}))
	}
	chk.NoError(job.CloseAndGatherAll(ctx))
	chk.Len(seen, 20)
	chk.LessOrEqual(pool.PeakInFlight(), 2)
}

func TestScatterRespectsLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		limit := rapid.IntRange(1, 4).Draw(t, "limit")
		count := rapid.IntRange(0, 24).Draw(t, "count")

		ctx := context.Background()
		job := scatter.NewJob(ctx)
		defer job.CancelAndWait()
		pool := scatter.NewTaskPool(job, limit)

		var running, peak atomic.Int64
		gathered := 0
		gather := scatter.NewGather(func(context.Context, struct{}, error) error {
			gathered++
			return nil
		})
		for range count {
			chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				running.Add(-1)
				return struct{}{}, nil
			}))
		}
		chk.NoError(job.CloseAndGatherAll(ctx))
		chk.Equal(count, gathered)
		chk.LessOrEqual(int(peak.Load()), limit)
		chk.LessOrEqual(pool.PeakInFlight(), limit)
	})
}

func TestScatterTaskErrorsReachGather(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	boom := errors.New("boom")
	var errs []error
	gather := scatter.NewGather(func(ctx context.Context, _ int, err error) error {
		errs = append(errs, err)
		return nil
	})
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) { return 0, boom }))
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) { return 1, nil }))
	chk.NoError(job.CloseAndGatherAll(ctx))
	chk.Len(errs, 2)
	chk.Contains(errs, boom)
	chk.Contains(errs, nil)
}

func TestGatherErrorAbortsCloseAndGatherAll(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, -1)

	stop := errors.New("stop")
	gather := scatter.NewGather(func(context.Context, int, error) error {
		return stop
	})
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) { return 0, nil }))
	chk.ErrorIs(job.CloseAndGatherAll(ctx), stop)
}

func TestCloseAndGatherAllEmptyJob(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	chk.NoError(job.CloseAndGatherAll(ctx))
}

func TestScatterAfterClosePanics(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)
	chk.NoError(job.CloseAndGatherAll(ctx))

	gather := scatter.NewGather(func(context.Context, int, error) error { return nil })
	chk.PanicsWithValue("job is closed and no longer accepts tasks", func() {
		_ = gather.Scatter(ctx, pool, func(context.Context) (int, error) { return 0, nil })
	})
}

func TestScatterFromTaskPanics(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	var gather *scatter.Gather[int]
	gather = scatter.NewGather(func(context.Context, int, error) error { return nil })
	chk.NoError(gather.Scatter(ctx, pool, func(ctx context.Context) (int, error) {
		chk.PanicsWithValue("Scatter called from within TaskFunc; move call to GatherFunc instead", func() {
			_ = gather.Scatter(ctx, pool, func(context.Context) (int, error) { return 0, nil })
		})
		return 0, nil
	}))
	chk.NoError(job.CloseAndGatherAll(ctx))
}

func TestNilArgumentsPanic(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	chk.PanicsWithValue("gather function must be non-nil", func() {
		scatter.NewGather[int](nil)
	})
	chk.PanicsWithValue("job must be non-nil", func() {
		scatter.NewTaskPool(nil, 1)
	})
	chk.PanicsWithValue("pool limit must be non-zero", func() {
		scatter.NewTaskPool(job, 0)
	})
	gather := scatter.NewGather(func(context.Context, int, error) error { return nil })
	chk.PanicsWithValue("task function must be non-nil", func() {
		_ = gather.Scatter(ctx, pool, nil)
	})
}

func TestCancelUnblocksScatter(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	gather := scatter.NewGather(func(context.Context, int, error) error { return nil })
	block := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	chk.NoError(gather.Scatter(ctx, pool, block))

	scatterCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	chk.ErrorIs(gather.Scatter(scatterCtx, pool, block), context.DeadlineExceeded)

	job.Cancel()
	chk.ErrorIs(job.CloseAndGatherAll(ctx), context.Canceled)
}
