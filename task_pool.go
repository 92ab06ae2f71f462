package matchbatch

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Future is the pending result of a submitted task.
type Future interface {
	Get() (interface{}, error)
}

type future struct {
	done   chan struct{}
	result interface{}
	err    error
}

func (f *future) Get() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

type taskPool struct {
	pool *ants.Pool
}

func newTaskPool(size int) *taskPool {
	pool, err := ants.NewPool(size)
	if err != nil {
		panic(err)
	}
	return &taskPool{pool: pool}
}

// Submit runs task on the pool. A task that panics completes with an error.
func (p *taskPool) Submit(ctx context.Context, task func() (interface{}, error)) Future {
	f := &future{done: make(chan struct{})}
	err := p.pool.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				DefaultLogger.Error(ctx, "panic in task, err:%v", r)
				f.err = fmt.Errorf("panic in task: %v", r)
			}
		}()
		f.result, f.err = task()
	})
	if err != nil {
		f.err = NewBatchError(ErrCodeGeneral, "submit task failed", err)
		close(f.done)
	}
	return f
}

func (p *taskPool) SetMaxSize(size int) {
	p.pool.Tune(size)
}

func (p *taskPool) Running() int {
	return p.pool.Running()
}
