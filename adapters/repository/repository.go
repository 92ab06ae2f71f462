// Package repository persists job and step executions in MySQL or SQLite.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/finploy/matchbatch"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// SQLRepository is a matchbatch.Repository on database/sql. Both dialects
// take "?" placeholders, so only the DDL differs.
type SQLRepository struct {
	db      *sql.DB
	dialect string
}

var _ matchbatch.Repository = (*SQLRepository)(nil)

func NewRepository(db *sql.DB, dialect string) (*SQLRepository, error) {
	if dialect != DialectMySQL && dialect != DialectSQLite {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "unsupported sql dialect:%v", dialect)
	}
	return &SQLRepository{db: db, dialect: dialect}, nil
}

func (r *SQLRepository) ddl() []string {
	pk := "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	text := "TEXT"
	if r.dialect == DialectSQLite {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS batch_job_instance (
			job_instance_id ` + pk + `,
			job_name VARCHAR(128) NOT NULL,
			job_key VARCHAR(64) NOT NULL,
			job_params ` + text + `,
			create_time BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_job_execution (
			job_execution_id ` + pk + `,
			job_instance_id BIGINT NOT NULL,
			run_id VARCHAR(64) NOT NULL,
			job_name VARCHAR(128) NOT NULL,
			job_params ` + text + `,
			status VARCHAR(16) NOT NULL,
			create_time BIGINT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			fail_code VARCHAR(64) NULL,
			fail_message ` + text + ` NULL,
			exit_message ` + text + ` NULL,
			job_context ` + text + ` NULL,
			last_updated BIGINT NOT NULL,
			version BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_step_execution (
			step_execution_id ` + pk + `,
			job_execution_id BIGINT NOT NULL,
			job_name VARCHAR(128) NOT NULL,
			step_name VARCHAR(128) NOT NULL,
			status VARCHAR(16) NOT NULL,
			create_time BIGINT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			read_count BIGINT NOT NULL,
			write_count BIGINT NOT NULL,
			filter_count BIGINT NOT NULL,
			skips ` + text + ` NULL,
			step_context ` + text + ` NULL,
			fail_code VARCHAR(64) NULL,
			fail_message ` + text + ` NULL,
			exit_message ` + text + ` NULL,
			last_updated BIGINT NOT NULL,
			version BIGINT NOT NULL
		)`,
	}
}

// CreateTables creates the batch tables when they do not exist.
func (r *SQLRepository) CreateTables(ctx context.Context) error {
	for _, stmt := range r.ddl() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "create batch tables failed", err)
		}
	}
	return nil
}

func (r *SQLRepository) CreateJobInstance(ctx context.Context, jobName string, jobParams matchbatch.JobParams) (*matchbatch.JobInstance, matchbatch.BatchError) {
	m := &jobInstanceDBModel{
		JobName:    jobName,
		JobKey:     jobParams.Footprint(),
		JobParams:  jobParams.String(),
		CreateTime: time.Now().UnixMilli(),
	}
	res, err := r.db.ExecContext(ctx, "INSERT INTO batch_job_instance(job_name, job_key, job_params, create_time) VALUES (?, ?, ?, ?)",
		m.JobName, m.JobKey, m.JobParams, m.CreateTime)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "insert job instance:%v failed", jobName, err)
	}
	if m.JobInstanceId, err = res.LastInsertId(); err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "get job instance id failed", err)
	}
	return m.toEntity(), nil
}

const instanceColumns = "job_instance_id, job_name, job_key, job_params, create_time"

func (r *SQLRepository) findJobInstance(ctx context.Context, query string, args ...interface{}) (*matchbatch.JobInstance, matchbatch.BatchError) {
	m := &jobInstanceDBModel{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.JobInstanceId, &m.JobName, &m.JobKey, &m.JobParams, &m.CreateTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "query job instance failed", err)
	}
	return m.toEntity(), nil
}

func (r *SQLRepository) FindJobInstance(ctx context.Context, jobName string, jobParams matchbatch.JobParams) (*matchbatch.JobInstance, matchbatch.BatchError) {
	return r.findJobInstance(ctx, "SELECT "+instanceColumns+" FROM batch_job_instance WHERE job_name = ? AND job_key = ? ORDER BY job_instance_id DESC LIMIT 1",
		jobName, jobParams.Footprint())
}

func (r *SQLRepository) FindLastJobInstanceByName(ctx context.Context, jobName string) (*matchbatch.JobInstance, matchbatch.BatchError) {
	return r.findJobInstance(ctx, "SELECT "+instanceColumns+" FROM batch_job_instance WHERE job_name = ? ORDER BY job_instance_id DESC LIMIT 1", jobName)
}

func (r *SQLRepository) SaveJobExecution(ctx context.Context, execution *matchbatch.JobExecution) matchbatch.BatchError {
	execution.Version++
	execution.LastUpdated = time.Now()
	m, err := jobExecutionModel(execution)
	if err != nil {
		execution.Version--
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "encode job execution failed", err)
	}
	if execution.JobExecutionId == 0 {
		res, err := r.db.ExecContext(ctx, `INSERT INTO batch_job_execution(job_instance_id, run_id, job_name, job_params, status, create_time, start_time, end_time,
			fail_code, fail_message, exit_message, job_context, last_updated, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.JobInstanceId, m.RunID, m.JobName, m.JobParams, m.Status, m.CreateTime, m.StartTime, m.EndTime,
			m.FailCode, m.FailMessage, m.ExitMessage, m.JobContext, m.LastUpdated, m.Version)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "insert job execution failed", err)
		}
		if execution.JobExecutionId, err = res.LastInsertId(); err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "get job execution id failed", err)
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE batch_job_execution SET status = ?, start_time = ?, end_time = ?, fail_code = ?, fail_message = ?,
		exit_message = ?, job_context = ?, last_updated = ?, version = ? WHERE job_execution_id = ?`,
		m.Status, m.StartTime, m.EndTime, m.FailCode, m.FailMessage, m.ExitMessage, m.JobContext, m.LastUpdated, m.Version, m.JobExecutionId)
	if err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "update job execution:%v failed", m.JobExecutionId, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "job execution:%v not found", m.JobExecutionId)
	}
	return nil
}

const jobExecutionColumns = `job_execution_id, job_instance_id, run_id, job_name, job_params, status, create_time, start_time, end_time,
	fail_code, fail_message, exit_message, job_context, last_updated, version`

func (r *SQLRepository) findJobExecution(ctx context.Context, query string, args ...interface{}) (*matchbatch.JobExecution, matchbatch.BatchError) {
	m := &jobExecutionDBModel{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.JobExecutionId, &m.JobInstanceId, &m.RunID, &m.JobName, &m.JobParams,
		&m.Status, &m.CreateTime, &m.StartTime, &m.EndTime, &m.FailCode, &m.FailMessage, &m.ExitMessage, &m.JobContext,
		&m.LastUpdated, &m.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "query job execution failed", err)
	}
	return m.toEntity(), nil
}

func (r *SQLRepository) FindJobExecution(ctx context.Context, jobExecutionId int64) (*matchbatch.JobExecution, matchbatch.BatchError) {
	return r.findJobExecution(ctx, "SELECT "+jobExecutionColumns+" FROM batch_job_execution WHERE job_execution_id = ?", jobExecutionId)
}

func (r *SQLRepository) FindLastJobExecutionByInstance(ctx context.Context, jobInstance *matchbatch.JobInstance) (*matchbatch.JobExecution, matchbatch.BatchError) {
	return r.findJobExecution(ctx, "SELECT "+jobExecutionColumns+" FROM batch_job_execution WHERE job_instance_id = ? ORDER BY job_execution_id DESC LIMIT 1",
		jobInstance.JobInstanceId)
}

func (r *SQLRepository) CheckJobStopping(ctx context.Context, execution *matchbatch.JobExecution) (bool, matchbatch.BatchError) {
	var status string
	err := r.db.QueryRowContext(ctx, "SELECT status FROM batch_job_execution WHERE job_execution_id = ?", execution.JobExecutionId).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "query job status failed", err)
	}
	return matchbatch.BatchStatus(status) == matchbatch.STOPPING, nil
}

func (r *SQLRepository) SaveStepExecution(ctx context.Context, execution *matchbatch.StepExecution) matchbatch.BatchError {
	if execution.JobExecution == nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeGeneral, "step execution:%v has no job execution", execution.StepName)
	}
	execution.Version++
	execution.LastUpdated = time.Now()
	m, err := stepExecutionModel(execution)
	if err != nil {
		execution.Version--
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "encode step execution failed", err)
	}
	if execution.StepExecutionId == 0 {
		res, err := r.db.ExecContext(ctx, `INSERT INTO batch_step_execution(job_execution_id, job_name, step_name, status, create_time, start_time, end_time,
			read_count, write_count, filter_count, skips, step_context, fail_code, fail_message, exit_message, last_updated, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.JobExecutionId, m.JobName, m.StepName, m.Status, m.CreateTime, m.StartTime, m.EndTime,
			m.ReadCount, m.WriteCount, m.FilterCount, m.Skips, m.StepContext, m.FailCode, m.FailMessage, m.ExitMessage, m.LastUpdated, m.Version)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "insert step execution:%v failed", m.StepName, err)
		}
		if execution.StepExecutionId, err = res.LastInsertId(); err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "get step execution id failed", err)
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE batch_step_execution SET status = ?, start_time = ?, end_time = ?, read_count = ?, write_count = ?,
		filter_count = ?, skips = ?, step_context = ?, fail_code = ?, fail_message = ?, exit_message = ?, last_updated = ?, version = ?
		WHERE step_execution_id = ?`,
		m.Status, m.StartTime, m.EndTime, m.ReadCount, m.WriteCount, m.FilterCount, m.Skips, m.StepContext,
		m.FailCode, m.FailMessage, m.ExitMessage, m.LastUpdated, m.Version, m.StepExecutionId)
	if err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "update step execution:%v failed", m.StepExecutionId, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "step execution:%v not found", m.StepExecutionId)
	}
	return nil
}

func (r *SQLRepository) FindStepExecutionsByJobExecution(ctx context.Context, jobExecutionId int64) ([]*matchbatch.StepExecution, matchbatch.BatchError) {
	rows, err := r.db.QueryContext(ctx, `SELECT step_execution_id, job_execution_id, job_name, step_name, status, create_time, start_time, end_time,
		read_count, write_count, filter_count, skips, step_context, fail_code, fail_message, exit_message, last_updated, version
		FROM batch_step_execution WHERE job_execution_id = ? ORDER BY step_execution_id`, jobExecutionId)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "query step executions failed", err)
	}
	defer rows.Close()
	out := make([]*matchbatch.StepExecution, 0)
	for rows.Next() {
		m := &stepExecutionDBModel{}
		if err = rows.Scan(&m.StepExecutionId, &m.JobExecutionId, &m.JobName, &m.StepName, &m.Status, &m.CreateTime, &m.StartTime, &m.EndTime,
			&m.ReadCount, &m.WriteCount, &m.FilterCount, &m.Skips, &m.StepContext, &m.FailCode, &m.FailMessage, &m.ExitMessage,
			&m.LastUpdated, &m.Version); err != nil {
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "scan step execution failed", err)
		}
		out = append(out, m.toEntity())
	}
	if err = rows.Err(); err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "iterate step executions failed", err)
	}
	return out, nil
}
