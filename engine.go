package matchbatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Engine interface {
	Register(job Job) error
	Unregister(job Job)
	Start(ctx context.Context, jobName string, params string) (int64, error)
	StartAsync(ctx context.Context, jobName string, params string) (int64, error)
	Stop(ctx context.Context, jobId interface{}) error
	Restart(ctx context.Context, jobId interface{}) (int64, error)
	RestartAsync(ctx context.Context, jobId interface{}) (int64, error)
	// Execution loads a job execution together with its step executions.
	Execution(ctx context.Context, jobExecutionId int64) (*JobExecution, error)
}

func NewEngine(repository Repository) Engine {
	return &engine{
		jobRegistry: map[string]Job{},
		repository:  repository,
	}
}

type engine struct {
	mu          sync.RWMutex
	repository  Repository
	jobRegistry map[string]Job
}

// Register register job to the engine
func (e *engine) Register(job Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.jobRegistry[job.Name()]; ok {
		return errors.Errorf("job with name:%v has already been registered", job.Name())
	}
	e.jobRegistry[job.Name()] = job
	return nil
}

// Unregister unregister job from the engine
func (e *engine) Unregister(job Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.jobRegistry, job.Name())
}

func (e *engine) lookup(jobName string) (Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobRegistry[jobName]
	return job, ok
}

// Start runs a job with the given JSON params and waits for it to finish.
func (e *engine) Start(ctx context.Context, jobName string, params string) (int64, error) {
	return e.doStart(ctx, jobName, params, false)
}

// StartAsync runs a job in the job pool and returns its execution id.
func (e *engine) StartAsync(ctx context.Context, jobName string, params string) (int64, error) {
	return e.doStart(ctx, jobName, params, true)
}

func (e *engine) doStart(ctx context.Context, jobName string, params string, async bool) (int64, error) {
	job, ok := e.lookup(jobName)
	if !ok {
		return -1, e.fail(ctx, errors.Errorf("no job registered with name:%v", jobName))
	}
	jobParams, err := ParseJobParams(params)
	if err != nil {
		return -1, e.fail(ctx, errors.Wrapf(err, "parse params of job:%v", jobName))
	}
	jobInstance, err := e.instance(ctx, jobName, jobParams)
	if err != nil {
		return -1, e.fail(ctx, err)
	}
	if err = e.checkRunnable(ctx, jobInstance); err != nil {
		return -1, e.fail(ctx, err)
	}
	execution := &JobExecution{
		JobInstanceId:  jobInstance.JobInstanceId,
		RunID:          uuid.NewString(),
		JobName:        jobName,
		JobParams:      jobParams,
		JobStatus:      STARTING,
		StepExecutions: make([]*StepExecution, 0),
		JobContext:     NewBatchContext(),
		CreateTime:     time.Now(),
	}
	if be := e.repository.SaveJobExecution(ctx, execution); be != nil {
		return -1, e.fail(ctx, be)
	}
	runCtx := WithRunID(ctx, execution.RunID)
	future := jobPool.Submit(runCtx, func() (interface{}, error) {
		if er := job.Start(runCtx, execution); er != nil {
			return nil, er
		}
		return nil, nil
	})
	DefaultLogger.Info(runCtx, "job:%v started, jobExecutionId:%v params:%v", jobName, execution.JobExecutionId, jobParams)
	if async {
		return execution.JobExecutionId, nil
	}
	if _, er := future.Get(); er != nil {
		return execution.JobExecutionId, er
	}
	return execution.JobExecutionId, nil
}

func (e *engine) fail(ctx context.Context, err error) error {
	DefaultLogger.Error(ctx, "%v", err)
	return err
}

// instance finds or creates the job instance of a name and params pair.
func (e *engine) instance(ctx context.Context, jobName string, jobParams JobParams) (*JobInstance, error) {
	jobInstance, be := e.repository.FindJobInstance(ctx, jobName, jobParams)
	if be != nil {
		return nil, be
	}
	if jobInstance != nil {
		return jobInstance, nil
	}
	jobInstance, be = e.repository.CreateJobInstance(ctx, jobName, jobParams)
	if be != nil {
		return nil, be
	}
	return jobInstance, nil
}

// checkRunnable refuses a new execution while the last one is still running
// or left a step in an unknown state. A failed or stopped run may start again.
func (e *engine) checkRunnable(ctx context.Context, jobInstance *JobInstance) error {
	last, be := e.repository.FindLastJobExecutionByInstance(ctx, jobInstance)
	if be != nil {
		return be
	}
	if last == nil {
		return nil
	}
	if last.JobStatus.Running() {
		return errors.Errorf("job:%v is running or exited abnormally in execution:%v, status:%v",
			jobInstance.JobName, last.JobExecutionId, last.JobStatus)
	}
	steps, be := e.repository.FindStepExecutionsByJobExecution(ctx, last.JobExecutionId)
	if be != nil {
		return be
	}
	for _, step := range steps {
		if step.StepStatus == UNKNOWN {
			return errors.Errorf("job:%v step:%v has unknown status in execution:%v",
				jobInstance.JobName, step.StepName, last.JobExecutionId)
		}
	}
	return nil
}

// resolve maps a job name or a job execution id to the registered job and its
// latest execution. The execution is nil when a named job never ran.
func (e *engine) resolve(ctx context.Context, jobId interface{}) (Job, *JobExecution, error) {
	var execution *JobExecution
	var be BatchError
	var jobName string
	switch id := jobId.(type) {
	case string:
		jobName = id
		jobInstance, be := e.repository.FindLastJobInstanceByName(ctx, id)
		if be != nil {
			return nil, nil, be
		}
		if jobInstance != nil {
			if execution, be = e.repository.FindLastJobExecutionByInstance(ctx, jobInstance); be != nil {
				return nil, nil, be
			}
		}
	case int64:
		if execution, be = e.repository.FindJobExecution(ctx, id); be != nil {
			return nil, nil, be
		}
		if execution == nil {
			return nil, nil, errors.Errorf("no job execution with id:%v", id)
		}
		jobName = execution.JobName
	default:
		return nil, nil, errors.Errorf("job identifier:%v is neither a job name nor a job execution id", jobId)
	}
	job, ok := e.lookup(jobName)
	if !ok {
		return nil, nil, errors.Errorf("no job registered with name:%v", jobName)
	}
	return job, execution, nil
}

// Stop asks a running job to stop before its next step; jobId is a job name or a job execution id.
func (e *engine) Stop(ctx context.Context, jobId interface{}) error {
	job, execution, err := e.resolve(ctx, jobId)
	if err != nil {
		return e.fail(ctx, err)
	}
	if _, byName := jobId.(string); byName && (execution == nil || !execution.JobStatus.Running()) {
		return e.fail(ctx, errors.Errorf("job:%v has no running execution to stop", job.Name()))
	}
	DefaultLogger.Info(ctx, "stopping job:%v, jobExecutionId:%v", job.Name(), execution.JobExecutionId)
	if be := job.Stop(ctx, execution); be != nil {
		return be
	}
	return nil
}

// Restart runs a job again with the params of its latest execution.
func (e *engine) Restart(ctx context.Context, jobId interface{}) (int64, error) {
	return e.doRestart(ctx, jobId, false)
}

func (e *engine) RestartAsync(ctx context.Context, jobId interface{}) (int64, error) {
	return e.doRestart(ctx, jobId, true)
}

func (e *engine) doRestart(ctx context.Context, jobId interface{}, async bool) (int64, error) {
	job, execution, err := e.resolve(ctx, jobId)
	if err != nil {
		return -1, e.fail(ctx, err)
	}
	params := ""
	if execution != nil {
		params = execution.JobParams.String()
	}
	return e.doStart(ctx, job.Name(), params, async)
}

func (e *engine) Execution(ctx context.Context, jobExecutionId int64) (*JobExecution, error) {
	execution, be := e.repository.FindJobExecution(ctx, jobExecutionId)
	if be != nil {
		return nil, be
	}
	if execution == nil {
		return nil, errors.Errorf("can not find job execution with execution id:%v", jobExecutionId)
	}
	steps, be := e.repository.FindStepExecutionsByJobExecution(ctx, jobExecutionId)
	if be != nil {
		return nil, be
	}
	execution.StepExecutions = steps
	return execution, nil
}
