// Package pipeline assembles the match and reconcile jobs from the match,
// schema, files and roster packages.
package pipeline

import (
	"context"
	"time"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/lock"
	"github.com/finploy/matchbatch/roster"
)

// job names
const (
	MatchJobName     = "match"
	ReconcileJobName = "reconcile"
)

// Deps are the collaborators of the jobs.
type Deps struct {
	Repository matchbatch.Repository
	// Data holds the input tables and the exports; configured file names are relative to it.
	Data files.FileStore
	// Upload receives the dialer list when set, e.g. an FTPFileStore.
	Upload files.FileStore
	// Roster is the roster of record. Required by the reconcile job.
	Roster roster.Store
	// Lineup receives lineup rows; nil skips the lineup step.
	Lineup roster.Store
	// Locker serializes reconcile runs per roster; nil means an in-process lock.
	Locker lock.Locker
	// Listeners are registered on every job, e.g. a MetricsListener.
	Listeners []interface{}
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func configError(msg string, args ...interface{}) matchbatch.BatchError {
	return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, msg, args...)
}

// table resolves a configured file name pattern against the run's parameters.
func table(execution *matchbatch.StepExecution, store files.FileStore, name, encoding string) (files.FileObjectModel, error) {
	fd, err := files.FileObjectModel{FileStore: store, FileName: name, Encoding: encoding}.Format(execution)
	if err != nil {
		return fd, configError("resolve file name:%v", name, err)
	}
	return fd, nil
}

func readTable(ctx context.Context, execution *matchbatch.StepExecution, store files.FileStore, name, encoding string) (*files.Table, error) {
	fd, err := table(execution, store, name, encoding)
	if err != nil {
		return nil, err
	}
	t, err := files.ReadTable(fd)
	if err != nil {
		return nil, err
	}
	matchbatch.DefaultLogger.Debug(ctx, "read %v rows from %v", len(t.Rows), fd.FileName)
	return t, nil
}

func writeTable(ctx context.Context, execution *matchbatch.StepExecution, store files.FileStore, name string, t *files.Table) error {
	fd, err := table(execution, store, name, "")
	if err != nil {
		return err
	}
	if err = files.WriteTable(fd, t); err != nil {
		return err
	}
	execution.WriteCount += int64(len(t.Rows))
	matchbatch.DefaultLogger.Info(ctx, "wrote %v rows to %v", len(t.Rows), fd.FileName)
	return nil
}

// exists reports whether the file a pattern resolves to is present.
func exists(execution *matchbatch.StepExecution, store files.FileStore, name string) (bool, error) {
	fd, err := table(execution, store, name, "")
	if err != nil {
		return false, err
	}
	ok, err := store.Exists(fd.FileName)
	if err != nil {
		return false, matchbatch.NewBatchError(matchbatch.ErrCodeIO, "check file:%v err", fd.FileName, err)
	}
	return ok, nil
}

// runDay is the date parameter of the run, or its start day, in loc.
func runDay(execution *matchbatch.StepExecution, loc *time.Location) (time.Time, error) {
	job := execution.JobExecution
	if s := job.JobParams.Str("date", ""); s != "" {
		day, err := time.ParseInLocation(files.DateParamLayout, s, loc)
		if err != nil {
			return time.Time{}, configError("job parameter date:%v is not a %v date", s, files.DateParamLayout, err)
		}
		return day, nil
	}
	start := job.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return start.In(loc), nil
}
