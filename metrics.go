package matchbatch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsListener exports step and job outcomes as prometheus metrics.
// Register it on a job builder; it acts as both JobListener and StepListener.
type MetricsListener struct {
	stepDuration *prometheus.HistogramVec
	records      *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	jobs         *prometheus.CounterVec
}

func NewMetricsListener(reg prometheus.Registerer) *MetricsListener {
	factory := promauto.With(reg)
	return &MetricsListener{
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchbatch",
			Name:      "step_duration_seconds",
			Help:      "Duration of step executions.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"job", "step", "status"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbatch",
			Name:      "step_records_total",
			Help:      "Records read, written and filtered by steps.",
		}, []string{"job", "step", "kind"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbatch",
			Name:      "step_skipped_records_total",
			Help:      "Records skipped by steps, by reason.",
		}, []string{"job", "step", "reason"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbatch",
			Name:      "job_executions_total",
			Help:      "Finished job executions by status.",
		}, []string{"job", "status"}),
	}
}

func (l *MetricsListener) BeforeJob(ctx context.Context, execution *JobExecution) BatchError {
	return nil
}

func (l *MetricsListener) AfterJob(ctx context.Context, execution *JobExecution) BatchError {
	l.jobs.WithLabelValues(execution.JobName, string(execution.JobStatus)).Inc()
	return nil
}

func (l *MetricsListener) BeforeStep(ctx context.Context, execution *StepExecution) BatchError {
	return nil
}

func (l *MetricsListener) AfterStep(ctx context.Context, execution *StepExecution) BatchError {
	jobName := ""
	if execution.JobExecution != nil {
		jobName = execution.JobExecution.JobName
	}
	l.stepDuration.WithLabelValues(jobName, execution.StepName, string(execution.StepStatus)).
		Observe(execution.EndTime.Sub(execution.StartTime).Seconds())
	l.records.WithLabelValues(jobName, execution.StepName, "read").Add(float64(execution.ReadCount))
	l.records.WithLabelValues(jobName, execution.StepName, "write").Add(float64(execution.WriteCount))
	l.records.WithLabelValues(jobName, execution.StepName, "filter").Add(float64(execution.FilterCount))
	for reason, n := range execution.Skips() {
		l.skipped.WithLabelValues(jobName, execution.StepName, reason).Add(float64(n))
	}
	return nil
}
