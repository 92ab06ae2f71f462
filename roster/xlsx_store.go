package roster

import (
	"context"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/schema"
)

// XLSXStore keeps the roster in the first (or the named) worksheet of a
// workbook; row 1 is the header. Other sheets and untouched cells are kept.
type XLSXStore struct {
	Path  string
	Sheet string
}

func NewXLSXStore(path, sheet string) *XLSXStore {
	return &XLSXStore{Path: path, Sheet: sheet}
}

func (s *XLSXStore) Name() string {
	return "xlsx:" + filepath.Clean(s.Path)
}

func (s *XLSXStore) sheet(f *excelize.File) string {
	if s.Sheet != "" {
		return s.Sheet
	}
	return f.GetSheetName(0)
}

func (s *XLSXStore) Load(ctx context.Context) (*Sheet, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeIO, "open roster:%v err", s.Path, err)
	}
	defer f.Close()
	records, err := f.GetRows(s.sheet(f))
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeIO, "read roster:%v err", s.Path, err)
	}
	if len(records) == 0 {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeEmptySource, "roster:%v has no header row", s.Path)
	}
	rows, header, err := schema.DecodeRoster(records[0], records[1:])
	if err != nil {
		return nil, err
	}
	return &Sheet{Header: header, Rows: rows}, nil
}

// Apply edits the workbook and replaces the file through a rename, so a
// failed write leaves the previous roster in place.
func (s *XLSXStore) Apply(ctx context.Context, changes *Changes) error {
	if changes.Empty() {
		return nil
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "open roster:%v err", s.Path, err)
	}
	defer f.Close()
	sheet := s.sheet(f)
	for _, u := range changes.Updates {
		// data row i lives on sheet row i+2
		cell, err := excelize.CoordinatesToCellName(u.Column+1, u.Row+2)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "roster cell row:%v col:%v", u.Row, u.Column, err)
		}
		if err = f.SetCellStr(sheet, cell, u.Value); err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "set roster cell:%v err", cell, err)
		}
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "read roster:%v err", s.Path, err)
	}
	next := len(records) + 1
	for i, row := range changes.Appends {
		cell, _ := excelize.CoordinatesToCellName(1, next+i)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "append roster row:%v err", cell, err)
		}
	}
	tmp := s.Path + ".tmp.xlsx"
	if err = f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "save roster:%v err", s.Path, err)
	}
	if err = os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "replace roster:%v err", s.Path, err)
	}
	return nil
}

// CreateXLSX writes an empty roster with the given header when path does not exist yet.
func CreateXLSX(path string, columns []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "create roster dir:%v err", path, err)
	}
	f := excelize.NewFile()
	defer f.Close()
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := f.SetSheetRow("Sheet1", "A1", &values); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "write roster header:%v err", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "save roster:%v err", path, err)
	}
	return nil
}
