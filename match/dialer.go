package match

import (
	"time"
)

// DialerColumns is the header of a dialer lead list.
var DialerColumns = []string{
	"vendor_lead_code", "source_id", "list_id", "phone_code", "Phone_number",
	"title", "first_name", "middle_initial", "last_name", "address1",
	"address2", "address3", "city", "state", "province", "postal_code",
	"country", "gender", "birth_date", "alt_phone", "email",
	"security_phrase", "comments",
}

// ListID is prefix + DDMMYY of day + suffix, e.g. "10" "071025" "01".
func ListID(prefix string, day time.Time, suffix string) string {
	return prefix + day.Format("020106") + suffix
}

// DialerList renders one lead row per match under DialerColumns. Unused
// columns are "0"; state carries the candidate salary.
func DialerList(matches []MatchRecord, listID string) [][]string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		row := make([]string, len(DialerColumns))
		for i := range row {
			row[i] = "0"
		}
		row[2] = listID
		row[4] = orZero(NormalizePhone(m.Candidate.Phone))
		row[8] = orZero(m.Candidate.Name)
		row[9] = orZero(m.Candidate.CompositeKey)
		row[10] = orZero(m.Candidate.Company)
		row[11] = orZero(m.Candidate.Designation)
		row[12] = orZero(m.Candidate.Location)
		row[13] = m.CandidateSalary.String()
		rows = append(rows, row)
	}
	return rows
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
