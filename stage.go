package matchbatch

import (
	"context"
	"fmt"
)

// Get reads key from the job context of execution as a T.
func Get[T any](execution *StepExecution, key string) (T, BatchError) {
	var zero T
	jobCtx := execution.JobExecution.JobContext
	if !jobCtx.Exists(key) {
		return zero, NewBatchError(ErrCodeGeneral, "key:%v not found in job context, step:%v", key, execution.StepName)
	}
	v, ok := jobCtx.Get(key).(T)
	if !ok {
		return zero, NewBatchError(ErrCodeGeneral, "key:%v in job context is %T, want %v", key, jobCtx.Get(key), typeName[T]())
	}
	return v, nil
}

// Put stores v under key in the job context of execution.
func Put(execution *StepExecution, key string, v interface{}) {
	execution.JobExecution.JobContext.Put(key, v)
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", &zero)[1:]
}

// Produce returns a Handler that stores the result of fn under outKey.
func Produce[O any](outKey string, fn func(ctx context.Context, execution *StepExecution) (O, error)) Handler {
	return Task(func(ctx context.Context, execution *StepExecution) BatchError {
		out, err := fn(ctx, execution)
		if err != nil {
			return AsBatchError(err, ErrCodeGeneral, "step:%v failed", execution.StepName)
		}
		Put(execution, outKey, out)
		return nil
	})
}

// Transform returns a Handler that reads inKey, applies fn and stores the result under outKey.
func Transform[I, O any](inKey, outKey string, fn func(ctx context.Context, execution *StepExecution, in I) (O, error)) Handler {
	return Task(func(ctx context.Context, execution *StepExecution) BatchError {
		in, be := Get[I](execution, inKey)
		if be != nil {
			return be
		}
		out, err := fn(ctx, execution, in)
		if err != nil {
			return AsBatchError(err, ErrCodeGeneral, "step:%v failed", execution.StepName)
		}
		Put(execution, outKey, out)
		return nil
	})
}

// Consume returns a Handler that reads inKey and hands it to fn.
func Consume[I any](inKey string, fn func(ctx context.Context, execution *StepExecution, in I) error) Handler {
	return Task(func(ctx context.Context, execution *StepExecution) BatchError {
		in, be := Get[I](execution, inKey)
		if be != nil {
			return be
		}
		if err := fn(ctx, execution, in); err != nil {
			return AsBatchError(err, ErrCodeGeneral, "step:%v failed", execution.StepName)
		}
		return nil
	})
}
