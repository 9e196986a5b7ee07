// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package obs

import (
	"context"
	"time"

	"github.com/petenewcomb/sweep-go/internal/scatter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies this module's meters and tracers.
const InstrumentationName = "github.com/petenewcomb/sweep-go"

// TaskMetrics holds the instruments recording count, duration and errors of
// one kind of task. Instruments are created once and shared by every task.
type TaskMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewTaskMetrics creates instruments named metricName.count,
// metricName.duration (seconds) and metricName.errors. A nil provider means
// the global one.
func NewTaskMetrics(provider metric.MeterProvider, metricName string) (*TaskMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(InstrumentationName)

	count, err := meter.Int64Counter(metricName+".count",
		metric.WithDescription("Number of tasks started"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(metricName+".duration",
		metric.WithDescription("Task duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(metricName+".errors",
		metric.WithDescription("Number of tasks that failed"))
	if err != nil {
		return nil, err
	}
	return &TaskMetrics{count: count, duration: duration, errors: errs}, nil
}

// MetricsTask records count, duration and error metrics for each execution
// of taskFunc.
func MetricsTask[T any](
	m *TaskMetrics,
	attrs []attribute.KeyValue,
	taskFunc scatter.TaskFunc[T],
) scatter.TaskFunc[T] {
	opt := metric.WithAttributes(attrs...)
	return func(ctx context.Context) (T, error) {
		startTime := time.Now()
		m.count.Add(ctx, 1, opt)

		result, err := taskFunc(ctx)

		m.duration.Record(ctx, time.Since(startTime).Seconds(), opt)
		if err != nil {
			m.errors.Add(ctx, 1, opt)
		}
		return result, err
	}
}
