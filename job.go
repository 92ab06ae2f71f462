package matchbatch

import (
	"context"
	"strings"
	"time"
)

// Job is an ordered list of steps.
type Job interface {
	Name() string
	Start(ctx context.Context, execution *JobExecution) BatchError
	Stop(ctx context.Context, execution *JobExecution) BatchError
	GetSteps() []Step
}

type simpleJob struct {
	name       string
	steps      []Step
	listeners  []JobListener
	repository Repository
}

func newSimpleJob(name string, steps []Step, listeners []JobListener, repository Repository) *simpleJob {
	return &simpleJob{
		name:       name,
		steps:      steps,
		listeners:  listeners,
		repository: repository,
	}
}

func (job *simpleJob) Name() string {
	return job.name
}

func (job *simpleJob) GetSteps() []Step {
	return job.steps
}

// Start runs the steps in order. The first failing step fails the job and later steps do not run.
func (job *simpleJob) Start(ctx context.Context, execution *JobExecution) BatchError {
	ctx = WithRunID(ctx, execution.RunID)
	logger := DefaultLogger
	execution.StartTime = time.Now()
	execution.JobStatus = STARTED
	if err := job.repository.SaveJobExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save job execution failed, job:%v, err:%v", job.name, err)
		return err
	}

	var jobErr BatchError
	for _, listener := range job.listeners {
		if jobErr = listener.BeforeJob(ctx, execution); jobErr != nil {
			logger.Error(ctx, "job listener BeforeJob failed, job:%v, err:%v", job.name, jobErr)
			break
		}
	}

	completed := make([]string, 0, len(job.steps))
	if jobErr == nil {
		for _, step := range job.steps {
			stopping, err := job.repository.CheckJobStopping(ctx, execution)
			if err != nil {
				jobErr = err
				break
			}
			if stopping {
				execution.JobStatus = STOPPED
				logger.Info(ctx, "job stopped before step:%v, job:%v, completed steps:%v", step.Name(), job.name, completed)
				break
			}
			if ctx.Err() != nil {
				jobErr = NewBatchError(ErrCodeStopped, "job:%v cancelled before step:%v", job.name, step.Name(), ctx.Err())
				break
			}
			stepExecution := &StepExecution{
				StepName:     step.Name(),
				StepStatus:   STARTING,
				StepContext:  NewBatchContext(),
				JobExecution: execution,
				CreateTime:   time.Now(),
			}
			execution.AddStepExecution(stepExecution)
			if err := step.Exec(ctx, stepExecution); err != nil {
				jobErr = err
				break
			}
			completed = append(completed, step.Name())
		}
	}

	if jobErr != nil {
		execution.JobStatus = FAILED
		execution.FailError = jobErr
		execution.ExitMessage = jobErr.Error() + ", completed steps:" + joinNames(completed)
	} else if execution.JobStatus == STOPPED {
		execution.ExitMessage = "stopped, completed steps:" + joinNames(completed)
	} else {
		execution.JobStatus = COMPLETED
	}
	execution.EndTime = time.Now()
	for _, listener := range job.listeners {
		if err := listener.AfterJob(ctx, execution); err != nil {
			logger.Error(ctx, "job listener AfterJob failed, job:%v, err:%v", job.name, err)
		}
	}
	if err := job.repository.SaveJobExecution(ctx, execution); err != nil {
		logger.Error(ctx, "save job execution failed, job:%v, err:%v", job.name, err)
	}
	logger.Info(ctx, "job finished, job:%v, status:%v, cost:%v", job.name, execution.JobStatus, execution.EndTime.Sub(execution.StartTime))
	return jobErr
}

// Stop marks the execution STOPPING; the running job stops before its next step.
func (job *simpleJob) Stop(ctx context.Context, execution *JobExecution) BatchError {
	execution.JobStatus = STOPPING
	return job.repository.SaveJobExecution(ctx, execution)
}

func joinNames(names []string) string {
	return "[" + strings.Join(names, ",") + "]"
}
