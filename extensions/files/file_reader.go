package files

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/finploy/matchbatch"
)

const (
	CSV  = "csv"
	TSV  = "tsv"
	XLSX = "xlsx"
)

// Table is a whole sheet: a header row and its data rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// FileObjectModel describes a table file.
type FileObjectModel struct {
	FileStore FileStore
	FileName  string
	// Type is CSV, TSV or XLSX; empty means by file extension.
	Type     string
	Encoding string
	// Sheet selects the worksheet of an xlsx file; empty means the first one.
	Sheet string
}

func (fd FileObjectModel) fileType() string {
	if fd.Type != "" {
		return strings.ToLower(fd.Type)
	}
	switch strings.ToLower(filepath.Ext(fd.FileName)) {
	case ".xlsx", ".xlsm":
		return XLSX
	case ".tsv", ".txt":
		return TSV
	}
	return CSV
}

// Format returns a copy of fd with its file name pattern resolved for execution.
func (fd FileObjectModel) Format(execution *matchbatch.StepExecution) (FileObjectModel, error) {
	fp := &FilePath{fd.FileName}
	fileName, err := fp.Format(execution)
	if err != nil {
		return fd, err
	}
	fd.FileName = fileName
	return fd, nil
}

// TableReader decodes a table of one file type.
type TableReader interface {
	ReadTable(r io.Reader, fd FileObjectModel) (*Table, error)
}

var tableReaders = map[string]TableReader{
	CSV:  &delimitedReader{comma: ','},
	TSV:  &delimitedReader{comma: '\t'},
	XLSX: &xlsxReader{},
}

func GetTableReader(fileType string) TableReader {
	return tableReaders[fileType]
}

// ReadTable opens fd in its store and decodes it. A file without a header row
// is an ErrCodeEmptySource error.
func ReadTable(fd FileObjectModel) (*Table, error) {
	reader := GetTableReader(fd.fileType())
	if reader == nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "no table reader for file type:%v", fd.fileType())
	}
	if fd.FileStore == nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "no file store for file:%v", fd.FileName)
	}
	encoding := fd.Encoding
	if fd.fileType() == XLSX {
		encoding = Binary
	}
	rc, err := fd.FileStore.Open(fd.FileName, encoding)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeIO, "open file:%v err", fd.FileName, err)
	}
	defer rc.Close()
	t, err := reader.ReadTable(rc, fd)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeIO, "read file:%v err", fd.FileName, err)
	}
	if len(t.Columns) == 0 {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeEmptySource, "file:%v has no header row", fd.FileName)
	}
	return t, nil
}

func newTable(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}
	t.Columns = records[0]
	for _, rec := range records[1:] {
		row := make([]string, len(t.Columns))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

type delimitedReader struct {
	comma rune
}

func (d *delimitedReader) ReadTable(r io.Reader, fd FileObjectModel) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = d.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return newTable(records), nil
}

type xlsxReader struct{}

func (x *xlsxReader) ReadTable(r io.Reader, fd FileObjectModel) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheet := fd.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return &Table{}, nil
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet:%v", sheet)
	}
	return newTable(records), nil
}
