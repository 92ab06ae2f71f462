package roster

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/schema"
)

var sheetColumns = []string{"candidate_id", "Date", "Rec", "Contact", "Name", "Remark", "Comment", "computer_time"}

func reconcileAt(sheet *Sheet, events []match.StatusEvent) *match.ReconcileResult {
	return match.Reconcile(sheet.Rows, events, match.ReconcileOptions{
		SuppressWindowDays: 90,
		SuppressedStatuses: []string{match.StatusNotInterested, match.StatusDrop},
	})
}

func TestPlan(t *testing.T) {
	header, err := schema.Resolve(sheetColumns, schema.RosterFields)
	require.NoError(t, err)
	changes := Plan(header,
		[]match.RosterPatch{
			{Index: 4, CandidateID: 9, Status: "Drop", ContactDate: "01-12-2025", ContactTime: "10:00:00", Recruiter: "Soham", Comment: "no", Attributes: map[string]string{"name": "Asha", "company": "Acme"}},
			{Index: 7, CandidateID: 3, Status: "Drop", ContactDate: "01-12-2025", ContactTime: "10:00:00", StatusOnly: true},
		},
		[]match.RosterRow{{CandidateID: 10, Phone: "9000000001", Status: "Ringing", ContactDate: "01-12-2025", Recruiter: "Antara", CreatedDate: "01-12-2025", Attributes: map[string]string{"name": "Ravi"}}},
	)
	assert.Equal(t, []CellUpdate{
		{Row: 4, Column: 5, Value: "Drop"},
		{Row: 4, Column: 1, Value: "01-12-2025"},
		{Row: 4, Column: 7, Value: "10:00:00"},
		{Row: 4, Column: 2, Value: "Soham"},
		{Row: 4, Column: 6, Value: "no"},
		{Row: 4, Column: 4, Value: "Asha"},
		{Row: 7, Column: 5, Value: "Drop"},
		{Row: 7, Column: 1, Value: "01-12-2025"},
		{Row: 7, Column: 7, Value: "10:00:00"},
	}, changes.Updates)
	assert.Equal(t, [][]string{{"10", "01-12-2025", "Antara", "9000000001", "Ravi", "Ringing", "", ""}}, changes.Appends)
	assert.True(t, (&Changes{}).Empty())
}

func writeRoster(t *testing.T, path string, rows [][]string) {
	require.NoError(t, CreateXLSX(path, sheetColumns))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())
}

func TestXLSXStoreReconcileCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	writeRoster(t, path, [][]string{
		{"1", "01-11-2025", "Soham", "9876543210", "Asha", "Ringing", "", "09:00:00"},
		{"2", "02-11-2025", "Antara", "9000000001", "Ravi", "Ringing", "", "09:30:00"},
	})
	store := NewXLSXStore(path, "")
	ctx := context.Background()

	sheet, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	res := reconcileAt(sheet, []match.StatusEvent{
		{Phone: "+91 90000 00001", StatusCode: "NI", ActorCode: "COMP4", Timestamp: "2025-12-01 10:00:00"},
		{Phone: "9111111111", StatusCode: "INTSTD", ActorCode: "COMP3", Timestamp: "2025-12-01 11:00:00", Attributes: map[string]string{"name": "Meera"}},
	})
	require.NoError(t, store.Apply(ctx, Plan(sheet.Header, res.Updates, res.Appends)))

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded.Rows, 3)
	assert.Equal(t, "Ringing", reloaded.Rows[0].Status)
	ravi := reloaded.Rows[1]
	assert.Equal(t, "Not Interested", ravi.Status)
	assert.Equal(t, "01-12-2025", ravi.ContactDate)
	assert.Equal(t, "Soham", ravi.Recruiter)
	assert.Equal(t, "Ravi", ravi.Attributes["name"])
	meera := reloaded.Rows[2]
	assert.Equal(t, int64(3), meera.CandidateID)
	assert.Equal(t, "9111111111", meera.Phone)
	assert.Equal(t, "Lineup", meera.Status)
	assert.Equal(t, "Antara", meera.Recruiter)
	assert.Equal(t, "Meera", meera.Attributes["name"])
}

func TestXLSXStoreMissingFile(t *testing.T) {
	_, err := NewXLSXStore(filepath.Join(t.TempDir(), "none.xlsx"), "").Load(context.Background())
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeIO))
}

func openSQLite(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLStoreReconcileCycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLStore(openSQLite(t), DialectSQLite, "candidate_jobs")
	require.NoError(t, err)
	require.NoError(t, store.CreateTable(ctx))

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)

	first := reconcileAt(empty, []match.StatusEvent{
		{Phone: "9876543210", StatusCode: "Ringing", ActorCode: "COMP9", Timestamp: "2025-11-01 09:00:00", Attributes: map[string]string{"name": "Asha"}},
		{Phone: "9000000001", StatusCode: "DROP", ActorCode: "COMP5", Timestamp: "2025-11-02 09:00:00"},
	})
	require.NoError(t, store.Apply(ctx, Plan(empty.Header, first.Updates, first.Appends)))

	sheet, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, int64(1), sheet.Rows[0].CandidateID)
	assert.Equal(t, "Shraddha", sheet.Rows[0].Recruiter)
	assert.Equal(t, "Drop", sheet.Rows[1].Status)
	assert.Equal(t, "02-11-2025", sheet.Rows[1].CreatedDate)

	second := reconcileAt(sheet, []match.StatusEvent{
		{Phone: "9876543210", StatusCode: "NI", ActorCode: "COMP4", Comment: "busy", Timestamp: "2025-12-01 10:00:00"},
	})
	require.Len(t, second.Updates, 1)
	require.NoError(t, store.Apply(ctx, Plan(sheet.Header, second.Updates, second.Appends)))

	sheet, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	asha := sheet.Rows[0]
	assert.Equal(t, "Not Interested", asha.Status)
	assert.Equal(t, "busy", asha.Comment)
	assert.Equal(t, "01-11-2025", asha.CreatedDate)
	assert.Equal(t, "Asha", asha.Attributes["name"])
}

func TestNewSQLStoreValidates(t *testing.T) {
	_, err := NewSQLStore(nil, DialectSQLite, "roster; drop")
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig))
	_, err = NewSQLStore(nil, "postgres", "roster")
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeConfig))
}
