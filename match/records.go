package match

import "github.com/shopspring/decimal"

// CandidateRecord is one candidate of a run. It is not modified after decoding.
type CandidateRecord struct {
	CandidateID  int64
	Phone        string
	CompositeKey string
	Name         string
	Company      string
	Designation  string
	Location     string
	NameLocation string
	// Attributes carries the remaining source columns by canonical field name.
	Attributes map[string]string
}

// JobRecord is an open position; its composite key holds the salary the job pays.
type JobRecord struct {
	JobID          string
	CompositeKey   string
	Company        string
	Designation    string
	ClientLocation string
	HRName         string
	Active         bool
	CompanyCode    string
	Attributes     map[string]string
}

// MatchRecord is a (job, candidate) pair within the hike band, with copies of both records.
type MatchRecord struct {
	JobID           string
	CandidateID     int64
	Prefix          string
	Hike            decimal.Decimal
	HikeText        string
	JobSalary       decimal.Decimal
	CandidateSalary decimal.Decimal
	Job             JobRecord
	Candidate       CandidateRecord
}

// JobKey is the company code joined with the job's composite key.
func (m MatchRecord) JobKey() string {
	return m.Job.CompanyCode + keySep + m.Job.CompositeKey
}
