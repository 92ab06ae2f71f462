package matchbatch

import (
	"context"
	"fmt"
)

type StepBuilderFactory interface {
	Get(name string) StepBuilder
}

func NewStepBuilderFactory(repository Repository) StepBuilderFactory {
	return &stepBuilderFactory{repository: repository}
}

type stepBuilderFactory struct {
	repository Repository
}

func (f *stepBuilderFactory) Get(name string) StepBuilder {
	if name == "" {
		panic("step name must not be empty")
	}
	return &stepBuilder{name: name, repository: f.repository}
}

type StepBuilder interface {
	// Handler accepts a Handler, a Task or one of the plain func shapes:
	// func(), func() error, func(context.Context) error and
	// func(context.Context, *StepExecution) error.
	Handler(handler interface{}) StepBuilder
	Task(task Task) StepBuilder
	Listener(listener ...interface{}) StepBuilder
	Build() Step
}

type stepBuilder struct {
	name          string
	handler       Handler
	stepListeners []StepListener
	repository    Repository
}

// plainTask adapts an error returning func to a Task.
func plainTask(run func(ctx context.Context, execution *StepExecution) error) Task {
	return func(ctx context.Context, execution *StepExecution) BatchError {
		if err := run(ctx, execution); err != nil {
			return AsBatchError(err, ErrCodeGeneral, "step:%v failed", execution.StepName)
		}
		return nil
	}
}

func (b *stepBuilder) Handler(handler interface{}) StepBuilder {
	switch h := handler.(type) {
	case Task:
		return b.Task(h)
	case func(ctx context.Context, execution *StepExecution) BatchError:
		return b.Task(h)
	case func(ctx context.Context, execution *StepExecution) error:
		return b.Task(plainTask(h))
	case func(ctx context.Context) error:
		return b.Task(plainTask(func(ctx context.Context, _ *StepExecution) error { return h(ctx) }))
	case func() error:
		return b.Task(plainTask(func(context.Context, *StepExecution) error { return h() }))
	case func():
		return b.Task(plainTask(func(context.Context, *StepExecution) error {
			h()
			return nil
		}))
	case Handler:
		b.handler = h
		if l, ok := handler.(StepListener); ok {
			b.stepListeners = append(b.stepListeners, l)
		}
		return b
	}
	panic(fmt.Sprintf("step:%v: unsupported handler type %T", b.name, handler))
}

func (b *stepBuilder) Task(task Task) StepBuilder {
	b.handler = task
	return b
}

func (b *stepBuilder) Listener(listener ...interface{}) StepBuilder {
	for _, l := range listener {
		sl, ok := l.(StepListener)
		if !ok {
			panic(fmt.Sprintf("step:%v: %T is not a StepListener", b.name, l))
		}
		b.stepListeners = append(b.stepListeners, sl)
	}
	return b
}

func (b *stepBuilder) Build() Step {
	if b.handler == nil {
		panic(fmt.Sprintf("step:%v has no handler", b.name))
	}
	if b.repository == nil {
		panic(fmt.Sprintf("step:%v has no repository", b.name))
	}
	return newSimpleStep(baseStep{name: b.name, repository: b.repository}, b.handler, b.stepListeners)
}
