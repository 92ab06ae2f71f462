// Package roster loads the roster of record and applies reconciliation
// results to it, either in an xlsx workbook or in a SQL table.
package roster

import (
	"context"
	"strconv"

	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/schema"
)

// Sheet is a loaded roster.
type Sheet struct {
	Header *schema.Header
	Rows   []match.RosterRow
}

// CellUpdate overwrites one cell. Row is the row key the store gave the
// RosterRow on Load; Column is a position in Sheet.Header.
type CellUpdate struct {
	Row    int
	Column int
	Value  string
}

// Changes is everything one reconciliation writes to a roster.
type Changes struct {
	Updates []CellUpdate
	// Appends are full rows laid out like Sheet.Header.
	Appends [][]string
}

func (c *Changes) Empty() bool {
	return c == nil || (len(c.Updates) == 0 && len(c.Appends) == 0)
}

// Store is a roster of record.
type Store interface {
	// Name identifies the roster, e.g. for locking.
	Name() string
	Load(ctx context.Context) (*Sheet, error)
	// Apply writes all changes or none.
	Apply(ctx context.Context, changes *Changes) error
}

// Plan lays patches and appended rows out as cell changes against header.
// Fields the roster has no column for are dropped. A patch never writes
// candidate_id or created_date; a StatusOnly patch writes only status and
// contact date and time.
func Plan(header *schema.Header, updates []match.RosterPatch, appends []match.RosterRow) *Changes {
	changes := &Changes{}
	set := func(row int, f schema.Field, v string) {
		if col, ok := header.Index(f); ok {
			changes.Updates = append(changes.Updates, CellUpdate{Row: row, Column: col, Value: v})
		}
	}
	for _, p := range updates {
		set(p.Index, schema.FieldStatus, p.Status)
		set(p.Index, schema.FieldContactDate, p.ContactDate)
		set(p.Index, schema.FieldContactTime, p.ContactTime)
		if p.StatusOnly {
			continue
		}
		set(p.Index, schema.FieldRecruiter, p.Recruiter)
		set(p.Index, schema.FieldComment, p.Comment)
		for _, f := range schema.DescriptiveFields {
			if v := p.Attributes[string(f)]; v != "" {
				set(p.Index, f, v)
			}
		}
	}
	for _, r := range appends {
		changes.Appends = append(changes.Appends, Layout(header, r))
	}
	return changes
}

// Layout renders r as a row of header.
func Layout(header *schema.Header, r match.RosterRow) []string {
	row := make([]string, len(header.Columns))
	put := func(f schema.Field, v string) {
		if col, ok := header.Index(f); ok {
			row[col] = v
		}
	}
	for _, f := range schema.DescriptiveFields {
		put(f, r.Attributes[string(f)])
	}
	if r.CandidateID > 0 {
		put(schema.FieldCandidateID, strconv.FormatInt(r.CandidateID, 10))
	}
	put(schema.FieldPhone, r.Phone)
	put(schema.FieldStatus, r.Status)
	put(schema.FieldContactDate, r.ContactDate)
	put(schema.FieldContactTime, r.ContactTime)
	put(schema.FieldRecruiter, r.Recruiter)
	put(schema.FieldComment, r.Comment)
	put(schema.FieldCreatedDate, r.CreatedDate)
	return row
}
