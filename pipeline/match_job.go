package pipeline

import (
	"context"
	"path"
	"strconv"
	"time"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/config"
	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/schema"
)

// job context keys of the match job
const (
	keyCandidates = "match.candidate_set"
	keyJobs       = "match.job_records"
	keyResult     = "match.result"
)

type matchJob struct {
	cfg  *config.Config
	deps Deps
}

// NewMatchJob builds the match job:
//
//	load_candidates -> load_jobs -> match -> export -> [upload_dialer_list]
//
// Job parameters: date (yyyy-MM-dd, names the exports), department and
// product (used for candidate keys), hike_min and hike_max (override the
// configured band), resend_keep (first or last row of a resend group).
func NewMatchJob(cfg *config.Config, deps Deps) (matchbatch.Job, error) {
	if cfg == nil || deps.Repository == nil || deps.Data == nil {
		return nil, configError("match job needs a config, a repository and a data store")
	}
	j := &matchJob{cfg: cfg, deps: deps}
	steps := matchbatch.NewStepBuilderFactory(deps.Repository)
	builder := matchbatch.NewJobBuilderFactory(deps.Repository).Get(MatchJobName).
		Start(steps.Get("load_candidates").Handler(matchbatch.Produce(keyCandidates, j.loadCandidates)).Build()).
		Next(steps.Get("load_jobs").Handler(matchbatch.Produce(keyJobs, j.loadJobs)).Build()).
		Next(steps.Get("match").Handler(matchbatch.Transform(keyJobs, keyResult, j.match)).Build()).
		Next(steps.Get("export").Handler(matchbatch.Consume(keyResult, j.export)).Build())
	if deps.Upload != nil {
		builder = builder.Next(steps.Get("upload_dialer_list").Handler(files.NewCopier(files.FileMove{
			FromFileName:  cfg.Files.Dialer,
			FromFileStore: deps.Data,
			ToFileName:    path.Base(cfg.Files.Dialer),
			ToFileStore:   deps.Upload,
		})).Build())
	}
	return builder.Listener(deps.Listeners...).Build(), nil
}

func (j *matchJob) loadCandidates(ctx context.Context, execution *matchbatch.StepExecution) (*schema.CandidateSet, error) {
	params := execution.JobExecution.JobParams
	opts := schema.CandidateOptions{
		Department: params.Str("department", j.cfg.Match.Department),
		Product:    params.Str("product", j.cfg.Match.Product),
	}
	if j.cfg.Files.LocationMaster != "" {
		t, err := readTable(ctx, execution, j.deps.Data, j.cfg.Files.LocationMaster, "")
		if err != nil {
			return nil, err
		}
		if opts.Locations, err = schema.NewLocationIndex(t.Columns, t.Rows); err != nil {
			return nil, err
		}
		matchbatch.DefaultLogger.Info(ctx, "location master has %v areas and cities", opts.Locations.Len())
	}
	t, err := readTable(ctx, execution, j.deps.Data, j.cfg.Files.Candidates, "")
	if err != nil {
		return nil, err
	}
	set, err := schema.DecodeCandidates(t.Columns, t.Rows, opts)
	if err != nil {
		return nil, err
	}
	execution.ReadCount = int64(len(t.Rows))
	execution.AddSkip("blank_row", int64(set.BlankRows))
	matchbatch.Put(execution, "match.candidates", len(set.Records))
	matchbatch.Put(execution, "match.invalid_salaries", set.InvalidSalaries)
	matchbatch.Put(execution, "match.unmatched_locations", len(set.Unmatched))
	matchbatch.DefaultLogger.Info(ctx, "loaded %v candidates, %v invalid salaries, %v unmatched locations",
		len(set.Records), set.InvalidSalaries, len(set.Unmatched))
	return set, nil
}

func (j *matchJob) loadJobs(ctx context.Context, execution *matchbatch.StepExecution) ([]match.JobRecord, error) {
	t, err := readTable(ctx, execution, j.deps.Data, j.cfg.Files.Jobs, "")
	if err != nil {
		return nil, err
	}
	jobs, err := schema.DecodeJobs(t.Columns, t.Rows)
	if err != nil {
		return nil, err
	}
	execution.ReadCount = int64(len(t.Rows))
	execution.AddSkip("blank_row", int64(len(t.Rows)-len(jobs)))
	matchbatch.Put(execution, "match.jobs", len(jobs))
	matchbatch.DefaultLogger.Info(ctx, "loaded %v jobs", len(jobs))
	return jobs, nil
}

func (j *matchJob) band(execution *matchbatch.StepExecution) (match.HikeBand, error) {
	band, err := j.cfg.Match.Band()
	if err != nil {
		return band, configError("hike band", err)
	}
	params := execution.JobExecution.JobParams
	_, hasMin := params.Typed["hike_min"]
	_, hasMax := params.Typed["hike_max"]
	if hasMin || hasMax {
		lower, _ := band.Min.Float64()
		upper, _ := band.Max.Float64()
		if band, err = match.NewHikeBand(params.Float("hike_min", lower), params.Float("hike_max", upper)); err != nil {
			return band, configError("hike band from job parameters", err)
		}
	}
	return band, nil
}

func (j *matchJob) match(ctx context.Context, execution *matchbatch.StepExecution, jobs []match.JobRecord) (*match.MatchResult, error) {
	set, be := matchbatch.Get[*schema.CandidateSet](execution, keyCandidates)
	if be != nil {
		return nil, be
	}
	band, err := j.band(execution)
	if err != nil {
		return nil, err
	}
	result := match.Match(jobs, set.Records, match.MatchOptions{Band: band, RequireActive: j.cfg.Match.RequireActive})
	stats := result.Stats
	execution.ReadCount = int64(stats.Candidates + stats.Jobs)
	execution.WriteCount = int64(stats.Matches)
	execution.FilterCount = int64(stats.OutOfBand)
	execution.AddSkip("invalid_key", int64(stats.InvalidKeys()))
	execution.AddSkip("unmatchable_salary", int64(stats.UnmatchableSalaries))
	execution.AddSkip("inactive_job", int64(stats.InactiveJobs))
	matchbatch.Put(execution, "match.matches", stats.Matches)
	matchbatch.Put(execution, "match.band", band.String())
	for _, c := range result.InvalidCandidates {
		matchbatch.DefaultLogger.Debug(ctx, "candidate:%v has invalid key:%q", c.CandidateID, c.CompositeKey)
	}
	if stats.Matches == 0 {
		matchbatch.DefaultLogger.Warn(ctx, "no matches within %v: %v", band, stats)
	} else {
		matchbatch.DefaultLogger.Info(ctx, "band %v: %v", band, stats)
	}
	return result, nil
}

func (j *matchJob) export(ctx context.Context, execution *matchbatch.StepExecution, result *match.MatchResult) error {
	fc := j.cfg.Files
	keep, ok := match.ParseKeep(execution.JobExecution.JobParams.Str("resend_keep", j.cfg.Match.ResendKeep))
	if !ok {
		return configError("resend_keep must be first or last")
	}
	matches := result.Matches
	execution.AddSkip("no_name_location", int64(match.Unkeyed(matches, match.ByNameLocation)))
	execution.AddSkip("no_job_key", int64(match.Unkeyed(matches, match.ByCandidateJobKey)))
	unique, duplicates := match.SplitDuplicates(matches, match.ByNameLocation, match.KeepFirst)
	strict := match.Dedupe(matches, match.ByCandidateJobKey, match.KeepFirst)
	resend := match.Dedupe(matches, match.ByCandidateCompanyJob, keep)

	for _, out := range []struct {
		name string
		rows []match.MatchRecord
	}{
		{fc.Matches, matches},
		{fc.Unique, unique},
		{fc.Strict, strict},
		{fc.Resend, resend},
		{fc.Duplicates, duplicates},
	} {
		if err := writeTable(ctx, execution, j.deps.Data, out.name, matchTable(out.rows)); err != nil {
			return err
		}
	}

	chunks := match.SplitChunks(unique, j.cfg.Match.ChunkSize)
	for i, chunk := range chunks {
		name := fc.ChunkPrefix + "_" + strconv.Itoa(i+1) + ".xlsx"
		if err := writeTable(ctx, execution, j.deps.Data, name, matchTable(chunk)); err != nil {
			return err
		}
	}

	day, err := runDay(execution, j.location())
	if err != nil {
		return err
	}
	execution.AddSkip("no_phone", int64(match.Unkeyed(unique, match.ByContact)))
	leads := dialerLeads(unique)
	listID := match.ListID(j.cfg.Match.DialerPrefix, day, j.cfg.Match.DialerSuffix)
	dialer := &files.Table{Columns: match.DialerColumns, Rows: match.DialerList(leads, listID)}
	if err = writeTable(ctx, execution, j.deps.Data, fc.Dialer, dialer); err != nil {
		return err
	}

	set, err := matchbatch.Get[*schema.CandidateSet](execution, keyCandidates)
	if err != nil {
		return err
	}
	if err = writeTable(ctx, execution, j.deps.Data, fc.UnmatchedLocations, unmatchedTable(set.Unmatched)); err != nil {
		return err
	}

	matchbatch.Put(execution, "match.unique", len(unique))
	matchbatch.Put(execution, "match.strict", len(strict))
	matchbatch.Put(execution, "match.resend", len(resend))
	matchbatch.Put(execution, "match.duplicates", len(duplicates))
	matchbatch.Put(execution, "match.chunks", len(chunks))
	matchbatch.Put(execution, "match.dialer_list_id", listID)
	matchbatch.Put(execution, "match.dialer_leads", len(leads))
	matchbatch.DefaultLogger.Info(ctx, "exported %v matches: %v unique, %v strict, %v resend, %v chunks, %v dialer leads in list %v",
		len(matches), len(unique), len(strict), len(resend), len(chunks), len(leads), listID)
	return nil
}

func (j *matchJob) location() *time.Location {
	loc, err := j.cfg.Reconcile.Location()
	if err != nil {
		return time.Local
	}
	return loc
}
