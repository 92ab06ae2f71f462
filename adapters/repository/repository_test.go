package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"
	_ "modernc.org/sqlite"

	"github.com/finploy/matchbatch"
)

func init() {
	matchbatch.SetLogger(matchbatch.NewLogger(io.Discard, matchbatch.Error))
}

func newSQLiteRepository(t *testing.T) *SQLRepository {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "batch.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	repo, err := NewRepository(db, DialectSQLite)
	if err != nil {
		t.Fatal(err)
	}
	if err = repo.CreateTables(context.Background()); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestJobInstances(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	params, _ := matchbatch.ParseJobParams(`{"date":"2025-12-01"}`)

	missing, err := repo.FindJobInstance(ctx, "match", params)
	assert.Equal(t, nil, err)
	assert.Equal(t, (*matchbatch.JobInstance)(nil), missing)

	created, err := repo.CreateJobInstance(ctx, "match", params)
	assert.Equal(t, nil, err)
	assert.NotEqual(t, int64(0), created.JobInstanceId)

	found, err := repo.FindJobInstance(ctx, "match", params)
	assert.Equal(t, nil, err)
	assert.Equal(t, created.JobInstanceId, found.JobInstanceId)
	assert.Equal(t, params.String(), found.JobParams)

	last, err := repo.FindLastJobInstanceByName(ctx, "match")
	assert.Equal(t, nil, err)
	assert.Equal(t, created.JobInstanceId, last.JobInstanceId)
}

func TestExecutionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	params, _ := matchbatch.ParseJobParams(`{"date":"2025-12-01","department":"Sales"}`)
	instance, _ := repo.CreateJobInstance(ctx, "match", params)

	job := &matchbatch.JobExecution{
		JobInstanceId: instance.JobInstanceId,
		RunID:         "run-1",
		JobName:       "match",
		JobParams:     params,
		JobStatus:     matchbatch.STARTED,
		JobContext:    matchbatch.NewBatchContext(),
	}
	job.JobContext.Put("match.matches", 12)
	job.JobContext.Put("match.records", []string{"not persisted"})
	assert.Equal(t, nil, repo.SaveJobExecution(ctx, job))
	assert.NotEqual(t, int64(0), job.JobExecutionId)

	step := &matchbatch.StepExecution{
		StepName:     "match",
		StepStatus:   matchbatch.STARTED,
		StepContext:  matchbatch.NewBatchContext(),
		JobExecution: job,
	}
	assert.Equal(t, nil, repo.SaveStepExecution(ctx, step))
	step.ReadCount = 40
	step.WriteCount = 12
	step.AddSkip("invalid_key", 3)
	step.StepStatus = matchbatch.FAILED
	step.FailError = matchbatch.NewBatchError(matchbatch.ErrCodeMissingColumn, "missing required columns", errors.New("phone"))
	assert.Equal(t, nil, repo.SaveStepExecution(ctx, step))

	stopping, err := repo.CheckJobStopping(ctx, job)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, stopping)
	job.JobStatus = matchbatch.STOPPING
	assert.Equal(t, nil, repo.SaveJobExecution(ctx, job))
	stopping, _ = repo.CheckJobStopping(ctx, job)
	assert.Equal(t, true, stopping)

	loaded, err := repo.FindLastJobExecutionByInstance(ctx, instance)
	assert.Equal(t, nil, err)
	assert.Equal(t, job.JobExecutionId, loaded.JobExecutionId)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "Sales", loaded.JobParams.Str("department", ""))
	assert.Equal(t, matchbatch.STOPPING, loaded.JobStatus)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Equal(t, false, loaded.JobContext.Exists("match.records"))
	matches, _ := loaded.JobContext.GetInt("match.matches")
	assert.Equal(t, 12, matches)

	steps, err := repo.FindStepExecutionsByJobExecution(ctx, job.JobExecutionId)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(steps))
	assert.Equal(t, int64(40), steps[0].ReadCount)
	assert.Equal(t, map[string]int64{"invalid_key": 3}, steps[0].Skips())
	assert.Equal(t, matchbatch.ErrCodeMissingColumn, steps[0].FailError.Code())
}

func TestUpdateUnknownExecution(t *testing.T) {
	repo := newSQLiteRepository(t)
	err := repo.SaveJobExecution(context.Background(), &matchbatch.JobExecution{JobExecutionId: 99, JobContext: matchbatch.NewBatchContext()})
	assert.Equal(t, true, matchbatch.IsCode(err, matchbatch.ErrCodeDbFail))
}

func TestEngineOnSQLRepository(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepository(t)
	steps := matchbatch.NewStepBuilderFactory(repo)
	job := matchbatch.NewJobBuilderFactory(repo).Get("report").
		Start(steps.Get("count").Handler(func(ctx context.Context, execution *matchbatch.StepExecution) matchbatch.BatchError {
			execution.ReadCount = 5
			execution.JobExecution.JobContext.Put("report.rows", 5)
			return nil
		}).Build()).
		Build()
	engine := matchbatch.NewEngine(repo)
	assert.Equal(t, nil, engine.Register(job))

	id, err := engine.Start(ctx, "report", `{"date":"2025-12-01"}`)
	assert.Equal(t, nil, err)
	execution, err := engine.Execution(ctx, id)
	assert.Equal(t, nil, err)
	assert.Equal(t, matchbatch.COMPLETED, execution.JobStatus)
	assert.Equal(t, 1, len(execution.StepExecutions))
	assert.Equal(t, int64(5), execution.StepExecutions[0].ReadCount)
	rows, _ := execution.JobContext.GetInt("report.rows")
	assert.Equal(t, 5, rows)
}
