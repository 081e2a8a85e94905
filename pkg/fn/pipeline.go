package fn

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoStages is returned by FirstOk when it was built without stages.
var ErrNoStages = errors.New("fn: no stages")

// Stage is a function that transforms In to Out within a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// FirstOk runs stages in order and returns the first successful result.
// Later stages are never invoked once one succeeds. If every stage fails the
// last failure is returned.
func FirstOk[In, Out any](stages ...Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		last := Err[Out](ErrNoStages)
		for _, s := range stages {
			if err := ctx.Err(); err != nil {
				return Err[Out](err)
			}
			last = s(ctx, in)
			if last.IsOk() {
				return last
			}
		}
		return last
	}
}

// MapStage wraps a pure function as a Stage.
func MapStage[In, Out any](f func(In) Out) Stage[In, Out] {
	return func(_ context.Context, in In) Result[Out] {
		return Ok(f(in))
	}
}

// TracedStage wraps a stage with OTel span creation.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer("pkg/fn").Start(ctx, name)
		defer span.End()
		result := stage(ctx, in)
		if result.IsErr() {
			_, err := result.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result
	}
}
