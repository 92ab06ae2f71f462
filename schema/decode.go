package schema

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/match"
)

func emptySource(what string) error {
	return matchbatch.NewBatchError(matchbatch.ErrCodeEmptySource, "%v table has no data rows", what)
}

// CandidateOptions controls how composite keys are built for candidate rows without one.
type CandidateOptions struct {
	// Department and Product are used when the row has no department/product column.
	Department string
	Product    string
	// Locations resolves a location id when the row has none; optional.
	Locations *LocationIndex
	// NextID is the first id given to rows without candidate_id; 0 means 1.
	NextID int64
}

// UnmatchedLocation is a candidate row whose location the master does not know.
type UnmatchedLocation struct {
	Row      int
	Name     string
	Location string
	Reason   string
}

type CandidateSet struct {
	Records         []match.CandidateRecord
	Unmatched       []UnmatchedLocation
	InvalidSalaries int
	BlankRows       int
}

var candidateFields = []Field{
	FieldCandidateID, FieldName, FieldPhone, FieldLocation, FieldSalary, FieldCleanSalary,
	FieldCompany, FieldDesignation, FieldCompositeKey, FieldNameLocation, FieldLocationID,
	FieldCity, FieldCityID, FieldDepartment, FieldProduct, FieldExperience, FieldEducation,
	FieldGraduationYear,
}

// DecodeCandidates decodes candidate rows. A row's own composite key is used
// as is; otherwise one is built from its location id, department, product and
// salary in lacs. Tables without a composite key column need a salary column
// and either a location id column or a location column plus opts.Locations.
func DecodeCandidates(columns []string, rows [][]string, opts CandidateOptions) (*CandidateSet, error) {
	h, err := Resolve(columns, candidateFields)
	if err != nil {
		return nil, err
	}
	if !h.Has(FieldCompositeKey) {
		required := []Field{FieldSalary}
		if !h.Has(FieldLocationID) {
			required = append(required, FieldLocation)
		}
		if _, err := Resolve(columns, nil, required...); err != nil {
			return nil, err
		}
		if !h.Has(FieldLocationID) && opts.Locations == nil {
			return nil, matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "candidate table has no location id column and no location master was given")
		}
	}
	if len(rows) == 0 {
		return nil, emptySource("candidate")
	}

	nextID := opts.NextID
	if nextID <= 0 {
		nextID = 1
	}
	set := &CandidateSet{Records: make([]match.CandidateRecord, 0, len(rows))}
	for i, row := range rows {
		if blank(row) {
			set.BlankRows++
			continue
		}
		rec := match.CandidateRecord{
			Phone:       h.Get(row, FieldPhone),
			Name:        h.Get(row, FieldName),
			Company:     h.Get(row, FieldCompany),
			Designation: h.Get(row, FieldDesignation),
			Location:    h.Get(row, FieldLocation),
			Attributes:  h.Attributes(row, DescriptiveFields),
		}
		if id, err := strconv.ParseInt(h.Get(row, FieldCandidateID), 10, 64); err == nil && id > 0 {
			rec.CandidateID = id
			if id >= nextID {
				nextID = id + 1
			}
		}
		rec.NameLocation = h.Get(row, FieldNameLocation)
		if rec.NameLocation == "" {
			rec.NameLocation = rec.Name + rec.Location
		}
		rec.CompositeKey = h.Get(row, FieldCompositeKey)
		if rec.CompositeKey == "" {
			salaryCell := h.Get(row, FieldCleanSalary)
			if salaryCell == "" {
				salaryCell = h.Get(row, FieldSalary)
			}
			salary, ok := NormalizeSalaryLacs(salaryCell)
			if !ok {
				set.InvalidSalaries++
			}
			locationID := h.Get(row, FieldLocationID)
			if locationID == "" && opts.Locations != nil {
				var found bool
				locationID, found = opts.Locations.Lookup(rec.Location)
				if !found {
					reason := "not_in_master"
					if rec.Location == "" {
						reason = "blank"
					}
					set.Unmatched = append(set.Unmatched, UnmatchedLocation{Row: i, Name: rec.Name, Location: rec.Location, Reason: reason})
				}
			}
			if locationID == "" {
				locationID = NotAvailable
			}
			department := lo.Ternary(h.Get(row, FieldDepartment) != "", h.Get(row, FieldDepartment), opts.Department)
			product := lo.Ternary(h.Get(row, FieldProduct) != "", h.Get(row, FieldProduct), opts.Product)
			rec.CompositeKey = match.Encode(locationID, department, product, salary)
			rec.Attributes[string(FieldCleanSalary)] = salary.String()
			rec.Attributes[string(FieldLocationID)] = locationID
			rec.Attributes[string(FieldDepartment)] = department
			rec.Attributes[string(FieldProduct)] = product
		}
		rec.Attributes[string(FieldCompositeKey)] = rec.CompositeKey
		rec.Attributes[string(FieldNameLocation)] = rec.NameLocation
		set.Records = append(set.Records, rec)
	}
	for i := range set.Records {
		if set.Records[i].CandidateID == 0 {
			set.Records[i].CandidateID = nextID
			nextID++
		}
	}
	return set, nil
}

var jobFields = []Field{
	FieldJobID, FieldJobCompositeKey, FieldJobCompany, FieldJobDesignation, FieldJobLocation,
	FieldJobHRName, FieldJobStatus, FieldCompanyCode,
}

// DecodeJobs decodes job rows. A job without a status column is active; with
// one, only active/open/yes/true/1 mark it active.
func DecodeJobs(columns []string, rows [][]string) ([]match.JobRecord, error) {
	h, err := Resolve(columns, jobFields, FieldJobCompositeKey)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, emptySource("job")
	}
	jobs := make([]match.JobRecord, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		job := match.JobRecord{
			JobID:          h.Get(row, FieldJobID),
			CompositeKey:   h.Get(row, FieldJobCompositeKey),
			Company:        h.Get(row, FieldJobCompany),
			Designation:    h.Get(row, FieldJobDesignation),
			ClientLocation: h.Get(row, FieldJobLocation),
			HRName:         h.Get(row, FieldJobHRName),
			CompanyCode:    h.Get(row, FieldCompanyCode),
			Active:         !h.Has(FieldJobStatus) || activeStatus(h.Get(row, FieldJobStatus)),
		}
		if job.JobID == "" {
			job.JobID = strconv.Itoa(i + 1)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func activeStatus(s string) bool {
	switch strings.ToLower(s) {
	case "active", "open", "yes", "y", "true", "1":
		return true
	}
	return false
}

var eventFields = append([]Field{FieldPhone, FieldStatusCode, FieldActorCode, FieldComment, FieldEventTime}, DescriptiveFields...)

// DecodeEvents decodes call-log rows. Only the phone column is required.
func DecodeEvents(columns []string, rows [][]string) ([]match.StatusEvent, error) {
	h, err := Resolve(columns, eventFields, FieldPhone)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, emptySource("event")
	}
	events := make([]match.StatusEvent, 0, len(rows))
	for _, row := range rows {
		if blank(row) {
			continue
		}
		events = append(events, match.StatusEvent{
			Phone:      h.Get(row, FieldPhone),
			StatusCode: h.Get(row, FieldStatusCode),
			ActorCode:  h.Get(row, FieldActorCode),
			Comment:    h.Get(row, FieldComment),
			Timestamp:  h.Get(row, FieldEventTime),
			Attributes: h.Attributes(row, DescriptiveFields),
		})
	}
	return events, nil
}

// RosterFields are the fields a roster may carry.
var RosterFields = append([]Field{
	FieldCandidateID, FieldPhone, FieldStatus, FieldContactDate, FieldContactTime,
	FieldRecruiter, FieldComment, FieldCreatedDate,
}, DescriptiveFields...)

// DecodeRoster decodes roster rows. Row Index is the data-row position, so
// blank rows keep their slot. An empty roster is valid.
func DecodeRoster(columns []string, rows [][]string) ([]match.RosterRow, *Header, error) {
	h, err := Resolve(columns, RosterFields, FieldPhone)
	if err != nil {
		return nil, nil, err
	}
	out := make([]match.RosterRow, 0, len(rows))
	for i, row := range rows {
		if blank(row) {
			continue
		}
		id, _ := strconv.ParseInt(strings.TrimSuffix(h.Get(row, FieldCandidateID), ".0"), 10, 64)
		out = append(out, match.RosterRow{
			Index:       i,
			CandidateID: id,
			Phone:       h.Get(row, FieldPhone),
			Status:      h.Get(row, FieldStatus),
			ContactDate: h.Get(row, FieldContactDate),
			ContactTime: h.Get(row, FieldContactTime),
			Recruiter:   h.Get(row, FieldRecruiter),
			Comment:     h.Get(row, FieldComment),
			CreatedDate: h.Get(row, FieldCreatedDate),
			Attributes:  h.Attributes(row, DescriptiveFields),
		})
	}
	return out, h, nil
}
