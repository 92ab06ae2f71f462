package matchbatch

import "context"

// JobListener is notified around a job execution. A BeforeJob error fails the job.
type JobListener interface {
	BeforeJob(ctx context.Context, execution *JobExecution) BatchError
	AfterJob(ctx context.Context, execution *JobExecution) BatchError
}

// StepListener is notified around a step execution. A BeforeStep error fails the step.
type StepListener interface {
	BeforeStep(ctx context.Context, execution *StepExecution) BatchError
	AfterStep(ctx context.Context, execution *StepExecution) BatchError
}
