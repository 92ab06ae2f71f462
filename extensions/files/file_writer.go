package files

import (
	"encoding/csv"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/xuri/excelize/v2"

	"github.com/finploy/matchbatch"
)

// TableWriter encodes a table of one file type.
type TableWriter interface {
	WriteTable(w io.Writer, fd FileObjectModel, t *Table) error
}

var tableWriters = map[string]TableWriter{
	CSV:  &delimitedWriter{comma: ','},
	TSV:  &delimitedWriter{comma: '\t'},
	XLSX: &xlsxWriter{},
}

func GetTableWriter(fileType string) TableWriter {
	return tableWriters[fileType]
}

// WriteTable creates fd in its store, replacing an existing file.
func WriteTable(fd FileObjectModel, t *Table) (err error) {
	writer := GetTableWriter(fd.fileType())
	if writer == nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "no table writer for file type:%v", fd.fileType())
	}
	if fd.FileStore == nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "no file store for file:%v", fd.FileName)
	}
	encoding := fd.Encoding
	if fd.fileType() == XLSX {
		encoding = Binary
	}
	wc, err := fd.FileStore.Create(fd.FileName, encoding)
	if err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "create file:%v err", fd.FileName, err)
	}
	var merr *multierror.Error
	if e := writer.WriteTable(wc, fd, t); e != nil {
		merr = multierror.Append(merr, e)
	}
	if e := wc.Close(); e != nil {
		merr = multierror.Append(merr, e)
	}
	if e := merr.ErrorOrNil(); e != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeIO, "write file:%v err", fd.FileName, e)
	}
	return nil
}

type delimitedWriter struct {
	comma rune
}

func (d *delimitedWriter) WriteTable(w io.Writer, fd FileObjectModel, t *Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = d.comma
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

type xlsxWriter struct{}

func (x *xlsxWriter) WriteTable(w io.Writer, fd FileObjectModel, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"
	if fd.Sheet != "" {
		if err := f.SetSheetName(sheet, fd.Sheet); err != nil {
			return err
		}
		sheet = fd.Sheet
	}
	rows := append([][]string{t.Columns}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err = f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}
