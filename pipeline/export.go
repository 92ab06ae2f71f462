package pipeline

import (
	"strconv"

	"github.com/samber/lo"

	"github.com/finploy/matchbatch/extensions/files"
	"github.com/finploy/matchbatch/match"
	"github.com/finploy/matchbatch/roster"
	"github.com/finploy/matchbatch/schema"
)

var candidateExportFields = []schema.Field{
	schema.FieldCandidateID, schema.FieldName, schema.FieldPhone, schema.FieldLocation,
	schema.FieldCompany, schema.FieldDesignation, schema.FieldCleanSalary, schema.FieldCompositeKey,
	schema.FieldNameLocation, schema.FieldLocationID, schema.FieldCity, schema.FieldCityID,
	schema.FieldDepartment, schema.FieldProduct, schema.FieldExperience, schema.FieldEducation,
	schema.FieldGraduationYear,
}

var jobExportFields = []schema.Field{
	schema.FieldJobID, schema.FieldJobStatus, schema.FieldJobCompositeKey, schema.FieldJobCompany,
	schema.FieldJobDesignation, schema.FieldJobLocation, schema.FieldJobHRName, schema.FieldCompanyCode,
}

// MatchColumns is the header of every match export.
var MatchColumns = append(append(
	lo.Map(candidateExportFields, func(f schema.Field, _ int) string { return string(f) }),
	lo.Map(jobExportFields, func(f schema.Field, _ int) string { return string(f) })...),
	"new_composite_key", "job_salary", "hike",
)

func matchRow(m match.MatchRecord) []string {
	c := m.Candidate
	row := []string{
		strconv.FormatInt(m.CandidateID, 10), c.Name, c.Phone, c.Location, c.Company, c.Designation,
	}
	for _, f := range candidateExportFields[6:] {
		row = append(row, c.Attributes[string(f)])
	}
	j := m.Job
	return append(row,
		j.JobID, lo.Ternary(j.Active, "Active", "Inactive"), j.CompositeKey, j.Company,
		j.Designation, j.ClientLocation, j.HRName, j.CompanyCode,
		m.JobKey(), m.JobSalary.String(), m.HikeText,
	)
}

func matchTable(matches []match.MatchRecord) *files.Table {
	return &files.Table{Columns: MatchColumns, Rows: lo.Map(matches, func(m match.MatchRecord, _ int) []string { return matchRow(m) })}
}

// UnmatchedColumns is the header of the additional locations export.
var UnmatchedColumns = []string{"row", "name", "location", "reason"}

func unmatchedTable(unmatched []schema.UnmatchedLocation) *files.Table {
	return &files.Table{
		Columns: UnmatchedColumns,
		Rows: lo.Map(unmatched, func(u schema.UnmatchedLocation, _ int) []string {
			// spreadsheet row number: one header row, counted from 1
			return []string{strconv.Itoa(u.Row + 2), u.Name, u.Location, u.Reason}
		}),
	}
}

// dialerLeads keeps one match per candidate phone; rows without a usable phone are dropped.
func dialerLeads(unique []match.MatchRecord) []match.MatchRecord {
	withPhone := lo.Filter(unique, func(m match.MatchRecord, _ int) bool {
		_, ok := match.ByContact(m)
		return ok
	})
	return match.Dedupe(withPhone, match.ByContact, match.KeepFirst)
}

// contactIndex maps normalized phones of a match export to the descriptive
// attributes of their first row.
func contactIndex(t *files.Table) (map[string]map[string]string, error) {
	h, err := schema.Resolve(t.Columns, schema.DescriptiveFields, schema.FieldPhone)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		phone := match.NormalizePhone(h.Get(row, schema.FieldPhone))
		if phone == "" {
			continue
		}
		if _, ok := idx[phone]; !ok {
			idx[phone] = h.Attributes(row, schema.DescriptiveFields)
		}
	}
	return idx, nil
}

// enrich fills event attributes from contacts; values the event carries itself win.
func enrich(events []match.StatusEvent, contacts map[string]map[string]string) int {
	n := 0
	for i := range events {
		attrs, ok := contacts[match.NormalizePhone(events[i].Phone)]
		if !ok {
			continue
		}
		events[i].Attributes = lo.Assign(attrs, events[i].Attributes)
		n++
	}
	return n
}

// reengagementRows renders, for every phone cleared for re-engagement, its
// roster row as it reads after the batch.
func reengagementRows(sheet *roster.Sheet, result *match.ReconcileResult) [][]string {
	byIndex := make(map[int]match.RosterRow, len(sheet.Rows))
	for _, r := range sheet.Rows {
		byIndex[r.Index] = r
	}
	current := make(map[string]match.RosterRow)
	for _, p := range result.Updates {
		if p.StatusOnly {
			continue
		}
		row := byIndex[p.Index]
		row.Status, row.ContactDate, row.ContactTime = p.Status, p.ContactDate, p.ContactTime
		row.Recruiter, row.Comment = p.Recruiter, p.Comment
		row.Attributes = lo.Assign(row.Attributes, p.Attributes)
		current[match.NormalizePhone(p.Phone)] = row
	}
	for _, r := range result.Appends {
		if phone := match.NormalizePhone(r.Phone); phone != "" {
			current[phone] = r
		}
	}
	rows := make([][]string, 0, len(result.Reengage))
	for _, phone := range result.Reengage {
		if r, ok := current[phone]; ok {
			rows = append(rows, roster.Layout(sheet.Header, r))
		}
	}
	return rows
}
