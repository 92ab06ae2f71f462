package roster

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/adapters/txn"
	"github.com/finploy/matchbatch/schema"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLColumns are the roster table columns after row_no, one per roster field.
var SQLColumns = func() []string {
	cols := make([]string, len(schema.RosterFields))
	for i, f := range schema.RosterFields {
		cols[i] = string(f)
	}
	return cols
}()

// SQLStore keeps a roster in a table keyed by an auto-increment row_no. Rows
// it loads carry row_no as their Index.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect string
	txm     matchbatch.TransactionManager
}

func NewSQLStore(db *sql.DB, dialect, table string) (*SQLStore, error) {
	if !identifier.MatchString(table) {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "invalid roster table name:%q", table)
	}
	if dialect != DialectMySQL && dialect != DialectSQLite {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "unsupported sql dialect:%v", dialect)
	}
	return &SQLStore{db: db, table: table, dialect: dialect, txm: txn.NewTransactionManager(db)}, nil
}

func (s *SQLStore) Name() string {
	return "sql:" + s.table
}

func quote(name string) string {
	return "`" + name + "`"
}

// CreateTable creates the roster table when it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	defs := make([]string, 0, len(SQLColumns)+1)
	if s.dialect == DialectMySQL {
		defs = append(defs, "`row_no` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
		for _, c := range SQLColumns {
			defs = append(defs, quote(c)+" VARCHAR(512) NULL")
		}
	} else {
		defs = append(defs, "`row_no` INTEGER PRIMARY KEY AUTOINCREMENT")
		for _, c := range SQLColumns {
			defs = append(defs, quote(c)+" TEXT NULL")
		}
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(s.table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "create roster table:%v err", s.table, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (*Sheet, error) {
	cols := make([]string, len(SQLColumns))
	for i, c := range SQLColumns {
		cols[i] = quote(c)
	}
	query := fmt.Sprintf("SELECT `row_no`, %s FROM %s ORDER BY `row_no`", strings.Join(cols, ", "), quote(s.table))
	rs, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "query roster:%v err", s.table, err)
	}
	defer rs.Close()

	var keys []int64
	var records [][]string
	for rs.Next() {
		var rowNo int64
		values := make([]sql.NullString, len(SQLColumns))
		dest := make([]interface{}, 0, len(values)+1)
		dest = append(dest, &rowNo)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err = rs.Scan(dest...); err != nil {
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "scan roster:%v err", s.table, err)
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = v.String
		}
		keys = append(keys, rowNo)
		records = append(records, record)
	}
	if err = rs.Err(); err != nil {
		return nil, matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "iterate roster:%v err", s.table, err)
	}

	rows, header, err := schema.DecodeRoster(SQLColumns, records)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Index = int(keys[rows[i].Index])
	}
	return &Sheet{Header: header, Rows: rows}, nil
}

// Apply runs all updates and inserts in one transaction.
func (s *SQLStore) Apply(ctx context.Context, changes *Changes) error {
	if changes.Empty() {
		return nil
	}
	byRow := map[int][]CellUpdate{}
	for _, u := range changes.Updates {
		byRow[u.Row] = append(byRow[u.Row], u)
	}
	rowKeys := make([]int, 0, len(byRow))
	for k := range byRow {
		rowKeys = append(rowKeys, k)
	}
	sort.Ints(rowKeys)

	return txn.Run(ctx, s.txm, func(tx *sql.Tx) error {
		for _, rowNo := range rowKeys {
			cells := byRow[rowNo]
			sets := make([]string, 0, len(cells))
			args := make([]interface{}, 0, len(cells)+1)
			for _, c := range cells {
				if c.Column < 0 || c.Column >= len(SQLColumns) {
					return matchbatch.NewBatchError(matchbatch.ErrCodeGeneral, "roster column:%v out of range", c.Column)
				}
				sets = append(sets, quote(SQLColumns[c.Column])+" = ?")
				args = append(args, c.Value)
			}
			args = append(args, rowNo)
			stmt := fmt.Sprintf("UPDATE %s SET %s WHERE `row_no` = ?", quote(s.table), strings.Join(sets, ", "))
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "update roster row:%v err", rowNo, err)
			}
		}
		if len(changes.Appends) == 0 {
			return nil
		}
		cols := make([]string, len(SQLColumns))
		marks := make([]string, len(SQLColumns))
		for i, c := range SQLColumns {
			cols[i] = quote(c)
			marks[i] = "?"
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.table), strings.Join(cols, ", "), strings.Join(marks, ", "))
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "prepare roster insert err", err)
		}
		defer stmt.Close()
		for _, row := range changes.Appends {
			args := make([]interface{}, len(SQLColumns))
			for i := range args {
				if i < len(row) && row[i] != "" {
					args[i] = row[i]
				}
			}
			if _, err = stmt.ExecContext(ctx, args...); err != nil {
				return matchbatch.NewBatchError(matchbatch.ErrCodeDbFail, "insert roster row err", err)
			}
		}
		return nil
	})
}
