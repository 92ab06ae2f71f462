package matchbatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
)

func TestStagesPassValuesThroughJobContext(t *testing.T) {
	repo := NewMemoryRepository()
	steps := NewStepBuilderFactory(repo)
	var got string
	job := NewJobBuilderFactory(repo).Get("stages").
		Start(steps.Get("produce").Handler(Produce("words", func(ctx context.Context, execution *StepExecution) ([]string, error) {
			return []string{"a", "b"}, nil
		})).Build()).
		Next(steps.Get("join").Handler(Transform("words", "joined", func(ctx context.Context, execution *StepExecution, in []string) (string, error) {
			return strings.Join(in, "+"), nil
		})).Build()).
		Next(steps.Get("consume").Handler(Consume("joined", func(ctx context.Context, execution *StepExecution, in string) error {
			got = in
			return nil
		})).Build()).
		Build()
	e := NewEngine(repo)
	assert.Equal(t, nil, e.Register(job))
	_, err := e.Start(context.Background(), "stages", "")
	assert.Equal(t, nil, err)
	assert.Equal(t, "a+b", got)
}

func TestStageTypeMismatch(t *testing.T) {
	execution := &StepExecution{StepName: "s", JobExecution: &JobExecution{JobContext: NewBatchContext()}}
	Put(execution, "n", 3)
	_, err := Get[string](execution, "n")
	assert.NotEqual(t, nil, err)
	_, err = Get[int](execution, "missing")
	assert.NotEqual(t, nil, err)
	n, err := Get[int](execution, "n")
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, n)
}

func TestBatchErrorCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewBatchError(ErrCodeIO, "write file:%v failed", "out.csv", cause)
	assert.Equal(t, ErrCodeIO, err.Code())
	assert.Equal(t, "write file:out.csv failed", err.Message())
	assert.Equal(t, cause, err.Cause())
	assert.T(t, IsCode(err, ErrCodeIO))
	assert.T(t, !IsCode(cause, ErrCodeIO))
	assert.T(t, strings.Contains(err.StackTrace(), "disk full"))
}

func TestBatchContextAccessors(t *testing.T) {
	c := NewBatchContext()
	c.Put("n", 7)
	c.Put("s", "x")
	n, err := c.GetInt("n")
	assert.Equal(t, nil, err)
	assert.Equal(t, 7, n)
	d, _ := c.GetInt("absent", 9)
	assert.Equal(t, 9, d)
	_, err = c.GetInt("s")
	assert.NotEqual(t, nil, err)
	s, _ := c.GetString("s")
	assert.Equal(t, "x", s)
	cp := c.DeepCopy()
	cp.Put("n", 8)
	n, _ = c.GetInt("n")
	assert.Equal(t, 7, n)
}

func TestJobParams(t *testing.T) {
	p, err := ParseJobParams(`{"department":"Sales","hike_min":20,"dry":true}`)
	assert.Equal(t, nil, err)
	assert.Equal(t, "Sales", p.Str("department", ""))
	assert.Equal(t, "x", p.Str("missing", "x"))
	assert.Equal(t, 20.0, p.Float("hike_min", 0))
	assert.T(t, p.Flag("dry", false))

	q, _ := ParseJobParams(`{"dry":true,"hike_min":20,"department":"Sales"}`)
	assert.Equal(t, p.Footprint(), q.Footprint())

	_, err = ParseJobParams(`{bad`)
	assert.NotEqual(t, nil, err)
}
