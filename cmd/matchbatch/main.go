// Command matchbatch runs one match or reconcile batch.
//
//	matchbatch match -params '{"date":"2025-12-01","hike_min":30}'
//	matchbatch reconcile -params '{"date":"2025-12-01"}'
//
// Everything else comes from the environment, see package config.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/adapters/repository"
	"github.com/finploy/matchbatch/config"
	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/lock"
	"github.com/finploy/matchbatch/pipeline"
	"github.com/finploy/matchbatch/roster"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	params := fs.String("params", "{}", "job parameters as a JSON object")
	_ = fs.Parse(os.Args[2:])
	if name != pipeline.MatchJobName && name != pipeline.ReconcileJobName {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	closeLog := setupLogging(cfg.Logging)
	defer closeLog()
	matchbatch.SetMaxRunningJobs(cfg.Batch.MaxRunningJobs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, name, *params); err != nil {
		matchbatch.DefaultLogger.Error(ctx, "%v failed: %v", name, err)
		closeLog()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s match|reconcile [-params JSON]\n", filepath.Base(os.Args[0]))
}

// setupLogging points the module logger at stdout, or at a rotated file when one is configured.
func setupLogging(c config.LoggingConfig) func() {
	var w io.Writer = os.Stdout
	closer := func() {}
	if c.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}
		w = rotated
		closer = func() { _ = rotated.Close() }
	}
	matchbatch.SetLogger(matchbatch.NewLogger(w, matchbatch.ParseLevel(c.Level)))
	return closer
}

func run(ctx context.Context, cfg *config.Config, name, params string) error {
	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var repo matchbatch.Repository = matchbatch.NewMemoryRepository()
	if db != nil {
		sqlRepo, err := repository.NewRepository(db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		if err = sqlRepo.CreateTables(ctx); err != nil {
			return err
		}
		repo = sqlRepo
	}

	registry := prometheus.NewRegistry()
	deps := pipeline.Deps{
		Repository: repo,
		Data:       &files.LocalFileStore{Root: cfg.Files.Dir},
		Listeners:  []interface{}{matchbatch.NewMetricsListener(registry)},
	}
	if cfg.FTP.Enabled {
		deps.Upload = &files.FTPFileStore{
			Host:     cfg.FTP.Host,
			Port:     cfg.FTP.Port,
			User:     cfg.FTP.User,
			Password: cfg.FTP.Password,
			Dir:      cfg.FTP.Dir,
			Timeout:  cfg.FTP.Timeout,
		}
	}

	var job matchbatch.Job
	switch name {
	case pipeline.MatchJobName:
		job, err = pipeline.NewMatchJob(cfg, deps)
	case pipeline.ReconcileJobName:
		if deps.Roster, deps.Lineup, err = rosterStores(ctx, cfg, db); err != nil {
			return err
		}
		locker, client, err := newLocker(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		if client != nil {
			defer client.Close()
		}
		deps.Locker = locker
		job, err = pipeline.NewReconcileJob(cfg, deps)
		if err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}

	engine := matchbatch.NewEngine(repo)
	if err = engine.Register(job); err != nil {
		return err
	}
	id, runErr := engine.Start(ctx, name, params)
	if id > 0 {
		if execution, err := engine.Execution(ctx, id); err == nil {
			report(ctx, execution)
		}
	}
	if cfg.Metrics.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.TextfilePath, registry); err != nil {
			matchbatch.DefaultLogger.Error(ctx, "write metrics textfile:%v err:%v", cfg.Metrics.TextfilePath, err)
		}
	}
	return runErr
}

// openDB returns nil when no driver is configured.
func openDB(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	if c.Driver == "" {
		return nil, nil
	}
	db, err := sql.Open(c.Driver, c.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "open %v database", c.Driver)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect %v database", c.Driver)
	}
	return db, nil
}

func rosterStores(ctx context.Context, cfg *config.Config, db *sql.DB) (roster.Store, roster.Store, error) {
	rc := cfg.Reconcile
	if rc.RosterBackend == "sql" {
		if db == nil {
			return nil, nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "sql roster backend needs DB_DRIVER")
		}
		stores := make([]*roster.SQLStore, 0, 2)
		for _, table := range []string{rc.RosterTable, rc.LineupTable} {
			s, err := roster.NewSQLStore(db, cfg.Database.Driver, table)
			if err != nil {
				return nil, nil, err
			}
			if err = s.CreateTable(ctx); err != nil {
				return nil, nil, err
			}
			stores = append(stores, s)
		}
		return stores[0], stores[1], nil
	}
	rosterPath := filepath.Join(cfg.Files.Dir, cfg.Files.Roster)
	lineupPath := filepath.Join(cfg.Files.Dir, cfg.Files.Lineup)
	for _, p := range []string{rosterPath, lineupPath} {
		if err := roster.CreateXLSX(p, roster.SQLColumns); err != nil {
			return nil, nil, err
		}
	}
	return roster.NewXLSXStore(rosterPath, ""), roster.NewXLSXStore(lineupPath, ""), nil
}

// newLocker returns a redis locker when REDIS_URL is set; nil lets the job use an in-process lock.
func newLocker(ctx context.Context, c config.RedisConfig) (lock.Locker, *redis.Client, error) {
	if c.URL == "" {
		return nil, nil, nil
	}
	opt, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, errors.Wrap(err, "connect to redis")
	}
	return lock.NewRedisLocker(client, c.Prefix, c.LockTTL, c.LockWait), client, nil
}

func report(ctx context.Context, execution *matchbatch.JobExecution) {
	for _, step := range execution.StepExecutions {
		matchbatch.DefaultLogger.Info(ctx, "step:%v status:%v read:%v write:%v filter:%v skips:%v",
			step.StepName, step.StepStatus, step.ReadCount, step.WriteCount, step.FilterCount, step.Skips())
	}
	matchbatch.DefaultLogger.Info(ctx, "job:%v status:%v summary:%v",
		execution.JobName, execution.JobStatus, execution.JobContext.Summary())
}
