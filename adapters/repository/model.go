package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/finploy/matchbatch"
)

// the following models mirror the batch tables; times are unix milliseconds
// so that MySQL and SQLite scan them the same way

type jobInstanceDBModel struct {
	JobInstanceId int64
	JobName       string
	JobKey        string
	JobParams     string
	CreateTime    int64
}

type jobExecutionDBModel struct {
	JobExecutionId int64
	JobInstanceId  int64
	RunID          string
	JobName        string
	JobParams      string
	Status         string
	CreateTime     int64
	StartTime      int64
	EndTime        int64
	FailCode       sql.NullString
	FailMessage    sql.NullString
	ExitMessage    sql.NullString
	JobContext     sql.NullString
	LastUpdated    int64
	Version        int64
}

type stepExecutionDBModel struct {
	StepExecutionId int64
	JobExecutionId  int64
	JobName         string
	StepName        string
	Status          string
	CreateTime      int64
	StartTime       int64
	EndTime         int64
	ReadCount       int64
	WriteCount      int64
	FilterCount     int64
	Skips           sql.NullString
	StepContext     sql.NullString
	FailCode        sql.NullString
	FailMessage     sql.NullString
	ExitMessage     sql.NullString
	LastUpdated     int64
	Version         int64
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func failOf(err matchbatch.BatchError) (sql.NullString, sql.NullString) {
	if err == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return nullString(err.Code()), nullString(err.Message())
}

func failFrom(code, msg sql.NullString) matchbatch.BatchError {
	if !code.Valid {
		return nil
	}
	return matchbatch.NewBatchError(code.String, "%s", msg.String)
}

func contextJSON(ctx *matchbatch.BatchContext) (sql.NullString, error) {
	if ctx == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return sql.NullString{}, err
	}
	return nullString(string(b)), nil
}

func contextFrom(s sql.NullString) *matchbatch.BatchContext {
	ctx := matchbatch.NewBatchContext()
	if s.Valid && s.String != "" {
		if err := json.Unmarshal([]byte(s.String), ctx); err != nil {
			matchbatch.DefaultLogger.Warn(context.Background(), "discard unreadable batch context:%v", err)
		}
	}
	return ctx
}

func (m *jobInstanceDBModel) toEntity() *matchbatch.JobInstance {
	return &matchbatch.JobInstance{
		JobInstanceId: m.JobInstanceId,
		JobName:       m.JobName,
		JobKey:        m.JobKey,
		JobParams:     m.JobParams,
		CreateTime:    fromMillis(m.CreateTime),
	}
}

func jobExecutionModel(e *matchbatch.JobExecution) (*jobExecutionDBModel, error) {
	jobCtx, err := contextJSON(e.JobContext)
	if err != nil {
		return nil, err
	}
	code, msg := failOf(e.FailError)
	return &jobExecutionDBModel{
		JobExecutionId: e.JobExecutionId,
		JobInstanceId:  e.JobInstanceId,
		RunID:          e.RunID,
		JobName:        e.JobName,
		JobParams:      e.JobParams.String(),
		Status:         string(e.JobStatus),
		CreateTime:     millis(e.CreateTime),
		StartTime:      millis(e.StartTime),
		EndTime:        millis(e.EndTime),
		FailCode:       code,
		FailMessage:    msg,
		ExitMessage:    nullString(e.ExitMessage),
		JobContext:     jobCtx,
		LastUpdated:    millis(e.LastUpdated),
		Version:        e.Version,
	}, nil
}

func (m *jobExecutionDBModel) toEntity() *matchbatch.JobExecution {
	params, err := matchbatch.ParseJobParams(m.JobParams)
	if err != nil {
		params, _ = matchbatch.ParseJobParams("")
	}
	return &matchbatch.JobExecution{
		JobExecutionId: m.JobExecutionId,
		JobInstanceId:  m.JobInstanceId,
		RunID:          m.RunID,
		JobName:        m.JobName,
		JobParams:      params,
		JobStatus:      matchbatch.BatchStatus(m.Status),
		JobContext:     contextFrom(m.JobContext),
		CreateTime:     fromMillis(m.CreateTime),
		StartTime:      fromMillis(m.StartTime),
		EndTime:        fromMillis(m.EndTime),
		FailError:      failFrom(m.FailCode, m.FailMessage),
		ExitMessage:    m.ExitMessage.String,
		LastUpdated:    fromMillis(m.LastUpdated),
		Version:        m.Version,
	}
}

func stepExecutionModel(e *matchbatch.StepExecution) (*stepExecutionDBModel, error) {
	stepCtx, err := contextJSON(e.StepContext)
	if err != nil {
		return nil, err
	}
	skips, err := json.Marshal(e.Skips())
	if err != nil {
		return nil, err
	}
	code, msg := failOf(e.FailError)
	return &stepExecutionDBModel{
		StepExecutionId: e.StepExecutionId,
		JobExecutionId:  e.JobExecution.JobExecutionId,
		JobName:         e.JobExecution.JobName,
		StepName:        e.StepName,
		Status:          string(e.StepStatus),
		CreateTime:      millis(e.CreateTime),
		StartTime:       millis(e.StartTime),
		EndTime:         millis(e.EndTime),
		ReadCount:       e.ReadCount,
		WriteCount:      e.WriteCount,
		FilterCount:     e.FilterCount,
		Skips:           nullString(string(skips)),
		StepContext:     stepCtx,
		FailCode:        code,
		FailMessage:     msg,
		ExitMessage:     nullString(e.ExitMessage),
		LastUpdated:     millis(e.LastUpdated),
		Version:         e.Version,
	}, nil
}

func (m *stepExecutionDBModel) toEntity() *matchbatch.StepExecution {
	e := &matchbatch.StepExecution{
		StepExecutionId: m.StepExecutionId,
		StepName:        m.StepName,
		StepStatus:      matchbatch.BatchStatus(m.Status),
		StepContext:     contextFrom(m.StepContext),
		CreateTime:      fromMillis(m.CreateTime),
		StartTime:       fromMillis(m.StartTime),
		EndTime:         fromMillis(m.EndTime),
		ReadCount:       m.ReadCount,
		WriteCount:      m.WriteCount,
		FilterCount:     m.FilterCount,
		FailError:       failFrom(m.FailCode, m.FailMessage),
		ExitMessage:     m.ExitMessage.String,
		LastUpdated:     fromMillis(m.LastUpdated),
		Version:         m.Version,
	}
	if m.Skips.Valid {
		skips := map[string]int64{}
		if err := json.Unmarshal([]byte(m.Skips.String), &skips); err == nil {
			e.RestoreSkips(skips)
		}
	}
	return e
}
