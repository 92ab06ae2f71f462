package matchbatch

import (
	"sort"
	"sync"
	"time"
)

// BatchStatus status of a job or step execution
type BatchStatus string

const (
	STARTING  BatchStatus = "STARTING"
	STARTED   BatchStatus = "STARTED"
	STOPPING  BatchStatus = "STOPPING"
	STOPPED   BatchStatus = "STOPPED"
	COMPLETED BatchStatus = "COMPLETED"
	FAILED    BatchStatus = "FAILED"
	UNKNOWN   BatchStatus = "UNKNOWN"
)

// Running reports whether an execution in this status may still be doing work.
func (s BatchStatus) Running() bool {
	return s == STARTING || s == STARTED || s == STOPPING || s == UNKNOWN
}

type JobInstance struct {
	JobInstanceId int64
	JobName       string
	JobKey        string
	JobParams     string
	CreateTime    time.Time
}

type JobExecution struct {
	JobExecutionId int64
	JobInstanceId  int64
	RunID          string
	JobName        string
	JobParams      JobParams
	JobStatus      BatchStatus
	StepExecutions []*StepExecution
	JobContext     *BatchContext
	CreateTime     time.Time
	StartTime      time.Time
	EndTime        time.Time
	FailError      BatchError
	ExitMessage    string
	LastUpdated    time.Time
	Version        int64
}

func (e *JobExecution) AddStepExecution(execution *StepExecution) {
	e.StepExecutions = append(e.StepExecutions, execution)
}

type StepExecution struct {
	StepExecutionId int64
	StepName        string
	StepStatus      BatchStatus
	StepContext     *BatchContext
	JobExecution    *JobExecution
	CreateTime      time.Time
	StartTime       time.Time
	EndTime         time.Time
	ReadCount       int64
	WriteCount      int64
	FilterCount     int64
	FailError       BatchError
	ExitMessage     string
	LastUpdated     time.Time
	Version         int64

	mu    sync.Mutex
	skips map[string]int64
}

// AddSkip records n records skipped for reason.
func (e *StepExecution) AddSkip(reason string, n int64) {
	if n <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.skips == nil {
		e.skips = map[string]int64{}
	}
	e.skips[reason] += n
}

// Skips returns a copy of the skip counters keyed by reason.
func (e *StepExecution) Skips() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.skips))
	for k, v := range e.skips {
		out[k] = v
	}
	return out
}

// SkipReasons lists reasons in a stable order.
func (e *StepExecution) SkipReasons() []string {
	skips := e.Skips()
	reasons := make([]string, 0, len(skips))
	for r := range skips {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}

func (e *StepExecution) SkipCount() int64 {
	var n int64
	for _, v := range e.Skips() {
		n += v
	}
	return n
}

// snapshot copies the execution without its lock.
func (e *StepExecution) snapshot() *StepExecution {
	cp := &StepExecution{
		StepExecutionId: e.StepExecutionId,
		StepName:        e.StepName,
		StepStatus:      e.StepStatus,
		StepContext:     e.StepContext,
		JobExecution:    e.JobExecution,
		CreateTime:      e.CreateTime,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		ReadCount:       e.ReadCount,
		WriteCount:      e.WriteCount,
		FilterCount:     e.FilterCount,
		FailError:       e.FailError,
		ExitMessage:     e.ExitMessage,
		LastUpdated:     e.LastUpdated,
		Version:         e.Version,
	}
	cp.skips = e.Skips()
	return cp
}

// RestoreSkips replaces the skip counters, used by repositories loading a persisted execution.
func (e *StepExecution) RestoreSkips(skips map[string]int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skips = make(map[string]int64, len(skips))
	for k, v := range skips {
		e.skips[k] = v
	}
}
