package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/config"
	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/lock"
	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/roster"
)

func init() {
	matchbatch.SetLogger(matchbatch.NewLogger(io.Discard, matchbatch.Error))
}

const runParams = `{"date":"2025-12-01","department":"Sales","product":"CASA"}`

func loadConfig(t *testing.T) *config.Config {
	t.Setenv("MATCHBATCH_HIKE_MIN", "10")
	t.Setenv("MATCHBATCH_HIKE_MAX", "90")
	t.Setenv("MATCHBATCH_TIMEZONE", "UTC")
	t.Setenv("MATCHBATCH_CHUNK_SIZE", "1")
	t.Setenv("MATCHBATCH_LOCATION_MASTER_FILE", "locations.xlsx")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func write(t *testing.T, store files.FileStore, name string, columns []string, rows ...[]string) {
	t.Helper()
	require.NoError(t, files.WriteTable(files.FileObjectModel{FileStore: store, FileName: name}, &files.Table{Columns: columns, Rows: rows}))
}

func read(t *testing.T, store files.FileStore, name string) *files.Table {
	t.Helper()
	table, err := files.ReadTable(files.FileObjectModel{FileStore: store, FileName: name})
	require.NoError(t, err)
	return table
}

func run(t *testing.T, ctx context.Context, repo matchbatch.Repository, job matchbatch.Job, params string) (*matchbatch.JobExecution, error) {
	t.Helper()
	engine := matchbatch.NewEngine(repo)
	require.NoError(t, engine.Register(job))
	id, runErr := engine.Start(ctx, job.Name(), params)
	execution, err := engine.Execution(context.Background(), id)
	require.NoError(t, err)
	return execution, runErr
}

func writeMatchInputs(t *testing.T, store files.FileStore) {
	write(t, store, "locations.xlsx", []string{"id", "area", "city"},
		[]string{"12", "Andheri", "Mumbai"},
		[]string{"15", "Koramangala", "Bangalore"},
	)
	write(t, store, "candidates.xlsx", []string{"Name", "Phone", "Current Location", "Current Salary"},
		[]string{"Asha", "+91 98765 43210", "Andheri", "5 Lacs"},
		[]string{"Ravi", "9123456780", "Mumbai", "450000"},
		[]string{"Asha", "9876543210", "Andheri", "5"},
		[]string{"Meera", "9000000001", "Pune", "5"},
		[]string{"Kiran", "9000000002", "Koramangala", "10"},
	)
	write(t, store, "jobs.xlsx", []string{"job_id", "job_composit_key", "job_company", "job_designation", "company_code", "job_status"},
		[]string{"J1", "12_Sales_CASA_6", "HDFC", "RM", "HD", "Active"},
		[]string{"J2", "12_Sales_CASA_9", "ICICI", "SM", "IC", "Active"},
		[]string{"J3", "15_Sales_CASA_11", "Axis", "BM", "AX", "Inactive"},
	)
}

func TestMatchJobExports(t *testing.T) {
	cfg := loadConfig(t)
	data := &files.LocalFileStore{Root: t.TempDir()}
	upload := &files.LocalFileStore{Root: t.TempDir()}
	writeMatchInputs(t, data)

	repo := matchbatch.NewMemoryRepository()
	job, err := NewMatchJob(cfg, Deps{Repository: repo, Data: data, Upload: upload})
	require.NoError(t, err)
	execution, err := run(t, context.Background(), repo, job, runParams)
	require.NoError(t, err)
	assert.Equal(t, matchbatch.COMPLETED, execution.JobStatus)
	require.Len(t, execution.StepExecutions, 5)

	matchStep := execution.StepExecutions[2]
	assert.Equal(t, "match", matchStep.StepName)
	assert.Equal(t, int64(1), matchStep.Skips()["inactive_job"])
	assert.Equal(t, int64(1), matchStep.FilterCount)

	matches := read(t, data, "exports/matches_20251201.xlsx")
	assert.Equal(t, MatchColumns, matches.Columns)
	require.Len(t, matches.Rows, 5)
	first := matches.Rows[0]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "12_Sales_CASA_5", first[7])
	assert.Equal(t, []string{"J1", "Active", "12_Sales_CASA_6", "HDFC", "RM", "", "", "HD", "HD_12_Sales_CASA_6", "6", "20.0%"}, first[len(first)-11:])

	assert.Len(t, read(t, data, "exports/unique_20251201.xlsx").Rows, 2)
	assert.Len(t, read(t, data, "exports/strict_20251201.xlsx").Rows, 5)
	assert.Len(t, read(t, data, "exports/resend_20251201.xlsx").Rows, 5)
	duplicates := read(t, data, "exports/duplicates_20251201.xlsx")
	require.Len(t, duplicates.Rows, 3)
	assert.Equal(t, "3", duplicates.Rows[0][0])
	assert.Empty(t, execution.StepExecutions[3].Skips())

	for _, chunk := range []string{"unique_20251201_1.xlsx", "unique_20251201_2.xlsx"} {
		assert.Len(t, read(t, data, "exports/chunks/"+chunk).Rows, 1)
	}
	_, err = os.Stat(filepath.Join(data.Root, "exports/chunks/unique_20251201_3.xlsx"))
	assert.True(t, os.IsNotExist(err))

	dialer := read(t, data, "exports/dialer_20251201.csv")
	assert.Equal(t, match.DialerColumns, dialer.Columns)
	require.Len(t, dialer.Rows, 2)
	assert.Equal(t, "1001122501", dialer.Rows[0][2])
	assert.Equal(t, "9876543210", dialer.Rows[0][4])
	assert.Equal(t, "Asha", dialer.Rows[0][8])
	assert.Equal(t, "9123456780", dialer.Rows[1][4])
	assert.Equal(t, "4.5", dialer.Rows[1][13])

	unmatched := read(t, data, "exports/additional_locations_20251201.xlsx")
	assert.Equal(t, [][]string{{"5", "Meera", "Pune", "not_in_master"}}, unmatched.Rows)

	uploaded := read(t, upload, "dialer_20251201.csv")
	assert.Equal(t, dialer.Rows, uploaded.Rows)

	n, _ := execution.JobContext.GetInt("match.matches")
	assert.Equal(t, 5, n)
	n, _ = execution.JobContext.GetInt("match.unique")
	assert.Equal(t, 2, n)
	listID, _ := execution.JobContext.GetString("match.dialer_list_id")
	assert.Equal(t, "1001122501", listID)
}

func TestMatchJobHikeBandFromParams(t *testing.T) {
	cfg := loadConfig(t)
	data := &files.LocalFileStore{Root: t.TempDir()}
	writeMatchInputs(t, data)

	repo := matchbatch.NewMemoryRepository()
	job, err := NewMatchJob(cfg, Deps{Repository: repo, Data: data})
	require.NoError(t, err)
	execution, err := run(t, context.Background(), repo, job, `{"date":"2025-12-01","department":"Sales","product":"CASA","hike_min":50}`)
	require.NoError(t, err)
	n, _ := execution.JobContext.GetInt("match.matches")
	assert.Equal(t, 2, n)
	band, _ := execution.JobContext.GetString("match.band")
	assert.Equal(t, "[50%, 90%]", band)
}

func TestMatchJobResendKeepFromParams(t *testing.T) {
	cfg := loadConfig(t)
	data := &files.LocalFileStore{Root: t.TempDir()}
	writeMatchInputs(t, data)

	repo := matchbatch.NewMemoryRepository()
	job, err := NewMatchJob(cfg, Deps{Repository: repo, Data: data})
	require.NoError(t, err)
	execution, err := run(t, context.Background(), repo, job, `{"date":"2025-12-01","department":"Sales","product":"CASA","resend_keep":"middle"}`)
	require.Error(t, err)
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig), "err: %v", err)
	require.Len(t, execution.StepExecutions, 4)
	assert.Equal(t, matchbatch.FAILED, execution.StepExecutions[3].StepStatus)

	execution, err = run(t, context.Background(), repo, job, `{"date":"2025-12-01","department":"Sales","product":"CASA","resend_keep":"first"}`)
	require.NoError(t, err)
	n, _ := execution.JobContext.GetInt("match.resend")
	assert.Equal(t, 5, n)
}

func TestMatchJobStopsOnMissingColumn(t *testing.T) {
	cfg := loadConfig(t)
	data := &files.LocalFileStore{Root: t.TempDir()}
	writeMatchInputs(t, data)
	write(t, data, "candidates.xlsx", []string{"Name", "Phone", "Current Location"}, []string{"Asha", "9876543210", "Andheri"})

	repo := matchbatch.NewMemoryRepository()
	job, err := NewMatchJob(cfg, Deps{Repository: repo, Data: data})
	require.NoError(t, err)
	execution, err := run(t, context.Background(), repo, job, runParams)
	require.Error(t, err)
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeMissingColumn), "err: %v", err)
	assert.Equal(t, matchbatch.FAILED, execution.JobStatus)
	require.Len(t, execution.StepExecutions, 1)
	assert.Equal(t, matchbatch.FAILED, execution.StepExecutions[0].StepStatus)

	_, err = os.Stat(filepath.Join(data.Root, "exports"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewJobsValidateDeps(t *testing.T) {
	cfg := loadConfig(t)
	_, err := NewMatchJob(cfg, Deps{Repository: matchbatch.NewMemoryRepository()})
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig))
	_, err = NewReconcileJob(cfg, Deps{Repository: matchbatch.NewMemoryRepository(), Data: &files.LocalFileStore{}})
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig))
}

var rosterColumns = []string{"candidate_id", "Date", "Rec", "Contact", "Name", "Remark", "Comment", "computer_time"}

type reconcileFixture struct {
	cfg    *config.Config
	data   *files.LocalFileStore
	roster *roster.XLSXStore
	lineup *roster.XLSXStore
	now    time.Time
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	cfg := loadConfig(t)
	data := &files.LocalFileStore{Root: t.TempDir()}
	write(t, data, "roster/screening.xlsx", rosterColumns,
		[]string{"1", "25-11-2025", "Soham", "9876543210", "Asha", "Not Interested", "", "10:00:00"},
		[]string{"2", "01-06-2025", "Antara", "9123456780", "Ravi", "Ringing", "", "11:00:00"},
	)
	write(t, data, "roster/lineup.xlsx", []string{"candidate_id", "Contact", "Name", "Remark", "Date", "Rec"},
		[]string{"7", "9999999999", "Old", "Lineup", "20-11-2025", "Soham"},
	)
	write(t, data, "calls/call_log_20251201.csv", []string{"phone_number", "status", "user", "comments", "entry_date"},
		[]string{"9876543210", "NI", "COMP4", "still no", "2025-12-01 09:30:00"},
		[]string{"9123456780", "INTSTD", "COMP3", "keen", "2025-12-01 10:00:00"},
		[]string{"9000000001", "", "COMP9", "", "2025-12-01 10:05:00"},
		[]string{"", "NI", "COMP5", "", "2025-12-01 10:10:00"},
	)
	write(t, data, "exports/matches_20251201.xlsx", []string{"candidate_id", "name", "phone", "location", "company"},
		[]string{"4", "Meera", "+91 90000 00001", "Pune", "Kotak"},
	)
	return &reconcileFixture{
		cfg:    cfg,
		data:   data,
		roster: roster.NewXLSXStore(filepath.Join(data.Root, "roster/screening.xlsx"), ""),
		lineup: roster.NewXLSXStore(filepath.Join(data.Root, "roster/lineup.xlsx"), ""),
		now:    time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *reconcileFixture) deps(repo matchbatch.Repository, locker lock.Locker) Deps {
	return Deps{
		Repository: repo,
		Data:       f.data,
		Roster:     f.roster,
		Lineup:     f.lineup,
		Locker:     locker,
		Now:        func() time.Time { return f.now },
	}
}

func TestReconcileJob(t *testing.T) {
	f := newReconcileFixture(t)
	repo := matchbatch.NewMemoryRepository()
	job, err := NewReconcileJob(f.cfg, f.deps(repo, nil))
	require.NoError(t, err)
	execution, err := run(t, context.Background(), repo, job, `{"date":"2025-12-01"}`)
	require.NoError(t, err)
	assert.Equal(t, matchbatch.COMPLETED, execution.JobStatus)
	require.Len(t, execution.StepExecutions, 6)
	assert.Equal(t, int64(1), execution.StepExecutions[2].Skips()["empty_phone"])

	sheet, err := f.roster.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)
	asha := sheet.Rows[0]
	assert.Equal(t, "Not Interested", asha.Status)
	assert.Equal(t, "01-12-2025", asha.ContactDate)
	assert.Equal(t, "09:30:00", asha.ContactTime)
	assert.Equal(t, "still no", asha.Comment)
	ravi := sheet.Rows[1]
	assert.Equal(t, "Lineup", ravi.Status)
	assert.Equal(t, "Antara", ravi.Recruiter)
	meera := sheet.Rows[2]
	assert.Equal(t, int64(3), meera.CandidateID)
	assert.Equal(t, "9000000001", meera.Phone)
	assert.Equal(t, "Ringing", meera.Status)
	assert.Equal(t, "Shraddha", meera.Recruiter)
	assert.Equal(t, "Meera", meera.Attributes["name"])

	lineup, err := f.lineup.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, lineup.Rows, 2)
	assert.Equal(t, int64(8), lineup.Rows[1].CandidateID)
	assert.Equal(t, "9123456780", lineup.Rows[1].Phone)
	assert.Equal(t, "Antara", lineup.Rows[1].Recruiter)

	reengage := read(t, f.data, "exports/reengage_20251201.xlsx")
	assert.Equal(t, rosterColumns, reengage.Columns)
	assert.Equal(t, [][]string{
		{"2", "01-12-2025", "Antara", "9123456780", "Ravi", "Lineup", "keen", "10:00:00"},
		{"3", "01-12-2025", "Shraddha", "9000000001", "Meera", "Ringing", "", "10:05:00"},
	}, reengage.Rows)

	suppressed, _ := execution.JobContext.GetInt("reconcile.suppressed")
	assert.Equal(t, 1, suppressed)
	enriched, _ := execution.JobContext.GetInt("reconcile.enriched_events")
	assert.Equal(t, 1, enriched)
}

func TestReconcileJobWaitsForRosterLock(t *testing.T) {
	f := newReconcileFixture(t)
	locker := lock.NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), f.roster.Name())
	require.NoError(t, err)

	repo := matchbatch.NewMemoryRepository()
	job, err := NewReconcileJob(f.cfg, f.deps(repo, locker))
	require.NoError(t, err)
	engine := matchbatch.NewEngine(repo)
	require.NoError(t, engine.Register(job))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	id, err := engine.Start(ctx, ReconcileJobName, `{"date":"2025-12-01"}`)
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeLockBusy), "err: %v", err)
	execution, err := engine.Execution(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, matchbatch.FAILED, execution.JobStatus)
	assert.Empty(t, execution.StepExecutions)

	require.NoError(t, unlock(context.Background()))
	_, err = engine.Start(context.Background(), ReconcileJobName, `{"date":"2025-12-01"}`)
	require.NoError(t, err)
	sheet, err := f.roster.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, sheet.Rows, 3)
}

func TestEnrichKeepsEventValues(t *testing.T) {
	contacts, err := contactIndex(&files.Table{
		Columns: []string{"phone", "name", "company"},
		Rows:    [][]string{{"9000000001", "Meera", "Kotak"}, {"9000000001", "Other", "Other"}, {"", "Nobody", ""}},
	})
	require.NoError(t, err)
	events := []match.StatusEvent{
		{Phone: "+91 9000000001", Attributes: map[string]string{"company": "Axis"}},
		{Phone: "9111111111"},
	}
	assert.Equal(t, 1, enrich(events, contacts))
	assert.Equal(t, map[string]string{"name": "Meera", "company": "Axis"}, events[0].Attributes)
	assert.Nil(t, events[1].Attributes)
}
