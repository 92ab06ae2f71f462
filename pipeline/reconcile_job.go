package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/config"
	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/lock"
	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/roster"
	"github.com/finploy/matchbatch/schema"
)

// job context keys of the reconcile job
const (
	keyRoster    = "reconcile.roster"
	keyEvents    = "reconcile.events"
	keyReconcile = "reconcile.result"
)

type reconcileJob struct {
	cfg  *config.Config
	deps Deps
	opts match.ReconcileOptions
}

// NewReconcileJob builds the reconcile job:
//
//	load_roster -> load_events -> reconcile -> apply_roster -> [lineup] -> export_reengagement
//
// The rosters stay locked from before load_roster until the job ends. The
// date job parameter selects the call log and the match export used to fill
// in candidate details.
func NewReconcileJob(cfg *config.Config, deps Deps) (matchbatch.Job, error) {
	if cfg == nil || deps.Repository == nil || deps.Data == nil || deps.Roster == nil {
		return nil, configError("reconcile job needs a config, a repository, a data store and a roster")
	}
	loc, err := cfg.Reconcile.Location()
	if err != nil {
		return nil, configError("timezone:%v", cfg.Reconcile.Timezone, err)
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	j := &reconcileJob{cfg: cfg, deps: deps}
	j.opts = cfg.Reconcile.Options(func() time.Time { return deps.now().In(loc) })

	names := []string{deps.Roster.Name()}
	if deps.Lineup != nil {
		names = append(names, deps.Lineup.Name())
	}
	steps := matchbatch.NewStepBuilderFactory(deps.Repository)
	builder := matchbatch.NewJobBuilderFactory(deps.Repository).Get(ReconcileJobName).
		Start(steps.Get("load_roster").Handler(matchbatch.Produce(keyRoster, j.loadRoster)).Build()).
		Next(steps.Get("load_events").Handler(matchbatch.Produce(keyEvents, j.loadEvents)).Build()).
		Next(steps.Get("reconcile").Handler(matchbatch.Transform(keyEvents, keyReconcile, j.reconcile)).Build()).
		Next(steps.Get("apply_roster").Handler(matchbatch.Consume(keyReconcile, j.applyRoster)).Build())
	if deps.Lineup != nil {
		builder = builder.Next(steps.Get("lineup").Handler(matchbatch.Consume(keyEvents, j.lineup)).Build())
	}
	builder = builder.Next(steps.Get("export_reengagement").Handler(matchbatch.Consume(keyReconcile, j.exportReengagement)).Build())
	return builder.Listener(newRosterLock(deps.Locker, names...)).Listener(deps.Listeners...).Build(), nil
}

func (j *reconcileJob) loadRoster(ctx context.Context, execution *matchbatch.StepExecution) (*roster.Sheet, error) {
	sheet, err := j.deps.Roster.Load(ctx)
	if err != nil {
		return nil, err
	}
	execution.ReadCount = int64(len(sheet.Rows))
	matchbatch.Put(execution, "reconcile.roster_rows", len(sheet.Rows))
	matchbatch.DefaultLogger.Info(ctx, "loaded %v rows from roster %v", len(sheet.Rows), j.deps.Roster.Name())
	return sheet, nil
}

func (j *reconcileJob) loadEvents(ctx context.Context, execution *matchbatch.StepExecution) ([]match.StatusEvent, error) {
	t, err := readTable(ctx, execution, j.deps.Data, j.cfg.Files.Events, j.cfg.Files.EventsEncoding)
	if err != nil {
		return nil, err
	}
	events, err := schema.DecodeEvents(t.Columns, t.Rows)
	if err != nil {
		return nil, err
	}
	execution.ReadCount = int64(len(t.Rows))
	execution.AddSkip("blank_row", int64(len(t.Rows)-len(events)))

	ok, err := exists(execution, j.deps.Data, j.cfg.Files.Matches)
	if err != nil {
		return nil, err
	}
	enriched := 0
	if ok {
		mt, err := readTable(ctx, execution, j.deps.Data, j.cfg.Files.Matches, "")
		if err != nil {
			return nil, err
		}
		contacts, err := contactIndex(mt)
		if err != nil {
			return nil, err
		}
		enriched = enrich(events, contacts)
	} else {
		matchbatch.DefaultLogger.Warn(ctx, "no match export for this run, events keep only call log details")
	}
	matchbatch.Put(execution, "reconcile.event_count", len(events))
	matchbatch.Put(execution, "reconcile.enriched_events", enriched)
	matchbatch.DefaultLogger.Info(ctx, "loaded %v events, %v enriched from the match export", len(events), enriched)
	return events, nil
}

func (j *reconcileJob) reconcile(ctx context.Context, execution *matchbatch.StepExecution, events []match.StatusEvent) (*match.ReconcileResult, error) {
	sheet, be := matchbatch.Get[*roster.Sheet](execution, keyRoster)
	if be != nil {
		return nil, be
	}
	result := match.Reconcile(sheet.Rows, events, j.opts)
	stats := result.Stats
	execution.ReadCount = int64(stats.Events)
	execution.WriteCount = int64(stats.Updated + stats.Appended)
	if j.opts.EmptyPhone == match.EmptyPhoneDrop {
		execution.AddSkip("empty_phone", int64(stats.EmptyPhone))
	}
	matchbatch.Put(execution, "reconcile.updated", stats.Updated)
	matchbatch.Put(execution, "reconcile.appended", stats.Appended)
	matchbatch.Put(execution, "reconcile.merged", stats.Merged)
	matchbatch.Put(execution, "reconcile.ambiguous", stats.Ambiguous)
	matchbatch.Put(execution, "reconcile.unparseable_dates", stats.UnparseableDates)
	matchbatch.Put(execution, "reconcile.suppressed", stats.Suppressed)
	matchbatch.Put(execution, "reconcile.reengage", len(result.Reengage))
	for _, phone := range result.Suppressed {
		matchbatch.DefaultLogger.Debug(ctx, "phone:%v held back from re-engagement", phone)
	}
	matchbatch.DefaultLogger.Info(ctx, "%v", stats)
	return result, nil
}

func (j *reconcileJob) applyRoster(ctx context.Context, execution *matchbatch.StepExecution, result *match.ReconcileResult) error {
	sheet, be := matchbatch.Get[*roster.Sheet](execution, keyRoster)
	if be != nil {
		return be
	}
	changes := roster.Plan(sheet.Header, result.Updates, result.Appends)
	if changes.Empty() {
		matchbatch.DefaultLogger.Info(ctx, "roster %v is up to date", j.deps.Roster.Name())
		return nil
	}
	if err := j.deps.Roster.Apply(ctx, changes); err != nil {
		return err
	}
	execution.WriteCount = int64(len(result.Updates) + len(result.Appends))
	matchbatch.DefaultLogger.Info(ctx, "roster %v: %v cells updated, %v rows appended",
		j.deps.Roster.Name(), len(changes.Updates), len(changes.Appends))
	return nil
}

func (j *reconcileJob) lineup(ctx context.Context, execution *matchbatch.StepExecution, events []match.StatusEvent) error {
	sheet, err := j.deps.Lineup.Load(ctx)
	if err != nil {
		return err
	}
	execution.ReadCount = int64(len(sheet.Rows))
	rows := match.Lineup(sheet.Rows, events, j.opts)
	if len(rows) == 0 {
		matchbatch.DefaultLogger.Info(ctx, "no lineups in this batch")
		return nil
	}
	if err = j.deps.Lineup.Apply(ctx, roster.Plan(sheet.Header, nil, rows)); err != nil {
		return err
	}
	execution.WriteCount = int64(len(rows))
	matchbatch.Put(execution, "reconcile.lineups", len(rows))
	matchbatch.DefaultLogger.Info(ctx, "appended %v rows to lineup %v", len(rows), j.deps.Lineup.Name())
	return nil
}

func (j *reconcileJob) exportReengagement(ctx context.Context, execution *matchbatch.StepExecution, result *match.ReconcileResult) error {
	sheet, be := matchbatch.Get[*roster.Sheet](execution, keyRoster)
	if be != nil {
		return be
	}
	t := &files.Table{Columns: sheet.Header.Columns, Rows: reengagementRows(sheet, result)}
	return writeTable(ctx, execution, j.deps.Data, j.cfg.Files.Reengagement, t)
}

// rosterLock holds the named locks for the whole of a job execution.
type rosterLock struct {
	locker lock.Locker
	names  []string

	mu   sync.Mutex
	held map[*matchbatch.JobExecution][]lock.Unlock
}

func newRosterLock(locker lock.Locker, names ...string) *rosterLock {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &rosterLock{locker: locker, names: sorted, held: make(map[*matchbatch.JobExecution][]lock.Unlock)}
}

func (l *rosterLock) BeforeJob(ctx context.Context, execution *matchbatch.JobExecution) matchbatch.BatchError {
	unlocks := make([]lock.Unlock, 0, len(l.names))
	for _, name := range l.names {
		unlock, err := l.locker.Lock(ctx, name)
		if err != nil {
			release(ctx, unlocks)
			return matchbatch.AsBatchError(err, matchbatch.ErrCodeLockBusy, "lock roster:%v", name)
		}
		unlocks = append(unlocks, unlock)
		matchbatch.DefaultLogger.Debug(ctx, "locked roster:%v", name)
	}
	l.mu.Lock()
	l.held[execution] = unlocks
	l.mu.Unlock()
	return nil
}

func (l *rosterLock) AfterJob(ctx context.Context, execution *matchbatch.JobExecution) matchbatch.BatchError {
	l.mu.Lock()
	unlocks := l.held[execution]
	delete(l.held, execution)
	l.mu.Unlock()
	release(ctx, unlocks)
	return nil
}

// release unlocks in reverse order, logging failures.
func release(ctx context.Context, unlocks []lock.Unlock) {
	for i := len(unlocks) - 1; i >= 0; i-- {
		if err := unlocks[i](context.WithoutCancel(ctx)); err != nil {
			matchbatch.DefaultLogger.Error(ctx, "release roster lock err:%v", err)
		}
	}
}
