// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package obs wraps scatter task functions with structured logging,
// OpenTelemetry metrics and tracing.
package obs

import (
	"context"
	"time"

	"github.com/petenewcomb/sweep-go/internal/scatter"
	"go.uber.org/zap"
)

// LoggedTask logs the start and completion of a task, including its duration
// and any error. A nil logger means zap.L().
func LoggedTask[T any](
	logger *zap.Logger,
	operationName string,
	fields []zap.Field,
	taskFunc scatter.TaskFunc[T],
) scatter.TaskFunc[T] {
	return func(ctx context.Context) (T, error) {
		l := logger
		if l == nil {
			l = zap.L()
		}
		l = l.With(zap.String("operation", operationName)).With(fields...)

		l.Debug("Starting task")
		startTime := time.Now()
		result, err := taskFunc(ctx)
		duration := time.Since(startTime)

		if err != nil {
			l.Error("Task failed", zap.Duration("duration", duration), zap.Error(err))
		} else {
			l.Debug("Task completed", zap.Duration("duration", duration))
		}
		return result, err
	}
}
