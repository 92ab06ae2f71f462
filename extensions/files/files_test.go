package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/finploy/matchbatch"
)

func stepExecution(t *testing.T, params string) *matchbatch.StepExecution {
	p, err := matchbatch.ParseJobParams(params)
	require.NoError(t, err)
	return &matchbatch.StepExecution{
		StepName: "test",
		JobExecution: &matchbatch.JobExecution{
			JobName:    "test",
			JobParams:  p,
			JobContext: matchbatch.NewBatchContext(),
			StartTime:  time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestTableRoundTrip(t *testing.T) {
	store := &LocalFileStore{Root: t.TempDir()}
	table := &Table{
		Columns: []string{"name", "location"},
		Rows:    [][]string{{"Asha", "Andheri, Mumbai"}, {"Ravi", ""}},
	}
	for _, name := range []string{"out/t.csv", "out/t.tsv", "out/t.xlsx"} {
		t.Run(name, func(t *testing.T) {
			fd := FileObjectModel{FileStore: store, FileName: name}
			require.NoError(t, WriteTable(fd, table))
			got, err := ReadTable(fd)
			require.NoError(t, err)
			assert.Equal(t, table.Columns, got.Columns)
			assert.Equal(t, table.Rows, got.Rows)
		})
	}
}

func TestReadTableDecodesCallLogEncodings(t *testing.T) {
	dir := t.TempDir()
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("phone_number\tstatus\n9876543210\tNI\n")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calls.tsv"), []byte(utf16), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "names.csv"), []byte("name\nJos\xe9\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bom.csv"), []byte("\xef\xbb\xbfphone\n1\n"), 0o644))

	store := &LocalFileStore{Root: dir}
	calls, err := ReadTable(FileObjectModel{FileStore: store, FileName: "calls.tsv", Encoding: "utf-16"})
	require.NoError(t, err)
	assert.Equal(t, []string{"phone_number", "status"}, calls.Columns)
	assert.Equal(t, [][]string{{"9876543210", "NI"}}, calls.Rows)

	names, err := ReadTable(FileObjectModel{FileStore: store, FileName: "names.csv", Encoding: "latin1"})
	require.NoError(t, err)
	assert.Equal(t, "José", names.Rows[0][0])

	bom, err := ReadTable(FileObjectModel{FileStore: store, FileName: "bom.csv"})
	require.NoError(t, err)
	assert.Equal(t, "phone", bom.Columns[0])
}

func TestReadTableErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), nil, 0o644))
	store := &LocalFileStore{Root: dir}

	_, err := ReadTable(FileObjectModel{FileStore: store, FileName: "empty.csv"})
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeEmptySource))

	_, err = ReadTable(FileObjectModel{FileStore: store, FileName: "missing.csv"})
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeIO))

	_, err = ReadTable(FileObjectModel{FileStore: store, FileName: "x.csv", Encoding: "ebcdic"})
	assert.True(t, matchbatch.IsCode(err, matchbatch.ErrCodeIO))
}

func TestFilePathFormat(t *testing.T) {
	execution := stepExecution(t, `{"date":"2025-11-30","department":"Sales"}`)
	fp := &FilePath{"exports/{department}/list_{date,yyyyMMdd}.csv"}
	got, err := fp.Format(execution)
	require.NoError(t, err)
	assert.Equal(t, "exports/Sales/list_20251130.csv", got)

	fp = &FilePath{"run_{run,ddMMyy}.csv"}
	got, err = fp.Format(execution)
	require.NoError(t, err)
	assert.Equal(t, "run_011225.csv", got)

	fp = &FilePath{"{product}.csv"}
	_, err = fp.Format(execution)
	assert.Error(t, err)
}

func TestCopier(t *testing.T) {
	from := &LocalFileStore{Root: t.TempDir()}
	to := &LocalFileStore{Root: t.TempDir()}
	require.NoError(t, WriteTable(FileObjectModel{FileStore: from, FileName: "dialer_20251130.xlsx"}, &Table{
		Columns: []string{"phone_number"},
		Rows:    [][]string{{"9876543210"}},
	}))

	execution := stepExecution(t, `{"date":"2025-11-30"}`)
	copier := NewCopier(
		FileMove{FromFileName: "dialer_{date,yyyyMMdd}.xlsx", FromFileStore: from, ToFileName: "upload/dialer.xlsx", ToFileStore: to},
		FileMove{FromFileName: "absent.csv", FromFileStore: from, ToFileName: "absent.csv", ToFileStore: to, Optional: true},
	)
	require.Nil(t, copier.Handle(context.Background(), execution))
	assert.Equal(t, int64(1), execution.WriteCount)
	assert.Equal(t, map[string]int64{"missing_file": 1}, execution.Skips())

	got, err := ReadTable(FileObjectModel{FileStore: to, FileName: "upload/dialer.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"9876543210"}}, got.Rows)
}
