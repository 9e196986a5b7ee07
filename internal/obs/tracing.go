// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package obs

import (
	"context"

	"github.com/petenewcomb/sweep-go/internal/scatter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedTask runs taskFunc within a span named operationName. Failed tasks
// record the error and mark the span as failed.
func TracedTask[T any](
	provider trace.TracerProvider,
	operationName string,
	attrs []attribute.KeyValue,
	taskFunc scatter.TaskFunc[T],
) scatter.TaskFunc[T] {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(InstrumentationName)
	return func(ctx context.Context) (T, error) {
		ctx, span := tracer.Start(ctx, operationName, trace.WithAttributes(attrs...))
		defer span.End()

		result, err := taskFunc(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}
