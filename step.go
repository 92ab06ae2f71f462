package matchbatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Step is one unit of a job.
type Step interface {
	Name() string
	Exec(ctx context.Context, execution *StepExecution) BatchError
	addListener(listener StepListener)
}

// Handler executes the work of a simple step.
type Handler interface {
	Handle(ctx context.Context, execution *StepExecution) BatchError
}

// Task is a function Handler.
type Task func(ctx context.Context, execution *StepExecution) BatchError

func (t Task) Handle(ctx context.Context, execution *StepExecution) BatchError {
	return t(ctx, execution)
}

type baseStep struct {
	name       string
	repository Repository
	listeners  []StepListener
}

func (step *baseStep) Name() string {
	return step.name
}

func (step *baseStep) addListener(listener StepListener) {
	step.listeners = append(step.listeners, listener)
}

type simpleStep struct {
	baseStep
	handler Handler
}

func newSimpleStep(base baseStep, handler Handler, listeners []StepListener) *simpleStep {
	base.listeners = append(base.listeners, listeners...)
	return &simpleStep{baseStep: base, handler: handler}
}

func (step *simpleStep) Exec(ctx context.Context, execution *StepExecution) (err BatchError) {
	logger := DefaultLogger
	execution.StartTime = time.Now()
	execution.StepStatus = STARTED
	if e := step.repository.SaveStepExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save step execution failed, step:%v, err:%v", step.name, e)
		return e
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "panic in step:%v, err:%v, stack:%v", step.name, r, string(debug.Stack()))
			err = NewBatchError(ErrCodeGeneral, "panic in step:%v, err:%v", step.name, r)
		}
		step.finish(ctx, execution, err)
	}()
	for _, listener := range step.listeners {
		if err = listener.BeforeStep(ctx, execution); err != nil {
			logger.Error(ctx, "step listener BeforeStep failed, step:%v, err:%v", step.name, err)
			return err
		}
	}
	logger.Info(ctx, "step started, step:%v", step.name)
	err = step.handler.Handle(ctx, execution)
	return err
}

func (step *simpleStep) finish(ctx context.Context, execution *StepExecution, err BatchError) {
	logger := DefaultLogger
	execution.EndTime = time.Now()
	if err != nil {
		execution.StepStatus = FAILED
		execution.FailError = err
		execution.ExitMessage = err.Error()
		logger.Error(ctx, "step failed, step:%v, err:%v", step.name, err)
	} else {
		execution.StepStatus = COMPLETED
		logger.Info(ctx, "step completed, step:%v, read:%v, write:%v, filter:%v, skip:%v, cost:%v",
			step.name, execution.ReadCount, execution.WriteCount, execution.FilterCount, execution.SkipCount(), execution.EndTime.Sub(execution.StartTime))
	}
	for _, listener := range step.listeners {
		if e := listener.AfterStep(ctx, execution); e != nil {
			logger.Error(ctx, "step listener AfterStep failed, step:%v, err:%v", step.name, e)
		}
	}
	if e := step.repository.SaveStepExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save step execution failed, step:%v, err:%v", step.name, e)
	}
}

func (step *simpleStep) String() string {
	return fmt.Sprintf("simpleStep[%s]", step.name)
}
