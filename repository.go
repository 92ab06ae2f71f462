package matchbatch

import (
	"context"
	"sync"
	"time"
)

// Repository persists job instances and executions.
type Repository interface {
	CreateJobInstance(ctx context.Context, jobName string, jobParams JobParams) (*JobInstance, BatchError)
	FindJobInstance(ctx context.Context, jobName string, jobParams JobParams) (*JobInstance, BatchError)
	FindLastJobInstanceByName(ctx context.Context, jobName string) (*JobInstance, BatchError)

	// SaveJobExecution inserts when JobExecutionId is 0 and updates otherwise.
	SaveJobExecution(ctx context.Context, execution *JobExecution) BatchError
	FindJobExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, BatchError)
	FindLastJobExecutionByInstance(ctx context.Context, jobInstance *JobInstance) (*JobExecution, BatchError)
	CheckJobStopping(ctx context.Context, execution *JobExecution) (bool, BatchError)

	// SaveStepExecution inserts when StepExecutionId is 0 and updates otherwise.
	SaveStepExecution(ctx context.Context, execution *StepExecution) BatchError
	FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionId int64) ([]*StepExecution, BatchError)
}

type memoryRepository struct {
	mu             sync.Mutex
	instanceSeq    int64
	jobSeq         int64
	stepSeq        int64
	instances      []*JobInstance
	jobExecutions  map[int64]*JobExecution
	stepExecutions map[int64][]*StepExecution
}

// NewMemoryRepository returns a Repository keeping everything in process memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		jobExecutions:  map[int64]*JobExecution{},
		stepExecutions: map[int64][]*StepExecution{},
	}
}

func (r *memoryRepository) CreateJobInstance(ctx context.Context, jobName string, jobParams JobParams) (*JobInstance, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instanceSeq++
	instance := &JobInstance{
		JobInstanceId: r.instanceSeq,
		JobName:       jobName,
		JobKey:        jobParams.Footprint(),
		JobParams:     jobParams.String(),
		CreateTime:    time.Now(),
	}
	r.instances = append(r.instances, instance)
	cp := *instance
	return &cp, nil
}

func (r *memoryRepository) FindJobInstance(ctx context.Context, jobName string, jobParams JobParams) (*JobInstance, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := jobParams.Footprint()
	for i := len(r.instances) - 1; i >= 0; i-- {
		if r.instances[i].JobName == jobName && r.instances[i].JobKey == key {
			cp := *r.instances[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) FindLastJobInstanceByName(ctx context.Context, jobName string) (*JobInstance, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.instances) - 1; i >= 0; i-- {
		if r.instances[i].JobName == jobName {
			cp := *r.instances[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) SaveJobExecution(ctx context.Context, execution *JobExecution) BatchError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if execution.JobExecutionId == 0 {
		r.jobSeq++
		execution.JobExecutionId = r.jobSeq
	} else if _, ok := r.jobExecutions[execution.JobExecutionId]; !ok {
		return NewBatchError(ErrCodeDbFail, "job execution:%v not found", execution.JobExecutionId)
	}
	execution.Version++
	execution.LastUpdated = time.Now()
	cp := *execution
	cp.StepExecutions = nil
	r.jobExecutions[execution.JobExecutionId] = &cp
	return nil
}

func (r *memoryRepository) FindJobExecution(ctx context.Context, jobExecutionId int64) (*JobExecution, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.jobExecutions[jobExecutionId]; ok {
		cp := *stored
		return &cp, nil
	}
	return nil, nil
}

func (r *memoryRepository) FindLastJobExecutionByInstance(ctx context.Context, jobInstance *JobInstance) (*JobExecution, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *JobExecution
	for _, e := range r.jobExecutions {
		if e.JobInstanceId == jobInstance.JobInstanceId && (last == nil || e.JobExecutionId > last.JobExecutionId) {
			last = e
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (r *memoryRepository) CheckJobStopping(ctx context.Context, execution *JobExecution) (bool, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.jobExecutions[execution.JobExecutionId]; ok {
		return stored.JobStatus == STOPPING, nil
	}
	return false, nil
}

func (r *memoryRepository) SaveStepExecution(ctx context.Context, execution *StepExecution) BatchError {
	if execution.JobExecution == nil {
		return NewBatchError(ErrCodeGeneral, "step execution:%v has no job execution", execution.StepName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jobExecutionId := execution.JobExecution.JobExecutionId
	execution.Version++
	execution.LastUpdated = time.Now()
	if execution.StepExecutionId == 0 {
		r.stepSeq++
		execution.StepExecutionId = r.stepSeq
		r.stepExecutions[jobExecutionId] = append(r.stepExecutions[jobExecutionId], execution.snapshot())
		return nil
	}
	steps := r.stepExecutions[jobExecutionId]
	for i, s := range steps {
		if s.StepExecutionId == execution.StepExecutionId {
			steps[i] = execution.snapshot()
			return nil
		}
	}
	return NewBatchError(ErrCodeDbFail, "step execution:%v not found", execution.StepExecutionId)
}

func (r *memoryRepository) FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionId int64) ([]*StepExecution, BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.stepExecutions[jobExecutionId]
	out := make([]*StepExecution, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.snapshot())
	}
	return out, nil
}
