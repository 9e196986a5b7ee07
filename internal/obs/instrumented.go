// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package obs

import (
	"github.com/petenewcomb/sweep-go/internal/scatter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Instrumentation bundles the sinks used by InstrumentedTask. Nil fields fall
// back to zap.L(), the global tracer provider and no metrics respectively.
type Instrumentation struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	Metrics        *TaskMetrics
}

// InstrumentedTask applies logging, metrics and tracing to taskFunc, in that
// order from the inside out, so that the span covers the whole execution.
// The log fields and span carry attrs; metrics carry only metricAttrs, which
// should have low cardinality.
func InstrumentedTask[T any](
	inst Instrumentation,
	operationName string,
	attrs []attribute.KeyValue,
	metricAttrs []attribute.KeyValue,
	taskFunc scatter.TaskFunc[T],
) scatter.TaskFunc[T] {
	fields := make([]zap.Field, 0, len(attrs))
	for _, kv := range attrs {
		fields = append(fields, zap.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	task := LoggedTask(inst.Logger, operationName, fields, taskFunc)
	if inst.Metrics != nil {
		task = MetricsTask(inst.Metrics, metricAttrs, task)
	}
	return TracedTask(inst.TracerProvider, operationName, attrs, task)
}
