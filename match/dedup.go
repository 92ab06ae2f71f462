package match

import (
	"strings"

	"github.com/samber/lo"
)

// Keep selects which row of a duplicate group survives.
type Keep int

const (
	// KeepFirst keeps the earliest row of each group in input order.
	KeepFirst Keep = iota
	// KeepLast keeps the latest row of each group in input order.
	KeepLast
)

// ParseKeep maps "first"/"last" to a Keep.
func ParseKeep(s string) (Keep, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return KeepFirst, true
	case "last":
		return KeepLast, true
	}
	return KeepFirst, false
}

// Key functions derive the grouping key of a match; ok=false means the row has no key.

// ByContact groups by the candidate's normalized phone.
func ByContact(m MatchRecord) (string, bool) {
	p := NormalizePhone(m.Candidate.Phone)
	return p, p != ""
}

// ByNameLocation groups by the candidate's name_location identity.
func ByNameLocation(m MatchRecord) (string, bool) {
	nl := m.Candidate.NameLocation
	if nl == "" {
		nl = strings.TrimSpace(m.Candidate.Name) + strings.TrimSpace(m.Candidate.Location)
	}
	return nl, nl != ""
}

type CandidateJobKey struct {
	CandidateID int64
	JobKey      string
}

// ByCandidateJobKey groups by candidate id and company_code + "_" + job key.
func ByCandidateJobKey(m MatchRecord) (CandidateJobKey, bool) {
	return CandidateJobKey{CandidateID: m.CandidateID, JobKey: m.JobKey()}, m.Job.CompositeKey != ""
}

type CandidateCompanyJob struct {
	CandidateID  int64
	CompanyCode  string
	CompositeKey string
}

// ByCandidateCompanyJob groups by candidate id, company code and job key as separate columns.
func ByCandidateCompanyJob(m MatchRecord) (CandidateCompanyJob, bool) {
	return CandidateCompanyJob{
		CandidateID:  m.CandidateID,
		CompanyCode:  m.Job.CompanyCode,
		CompositeKey: m.Job.CompositeKey,
	}, m.Job.CompositeKey != ""
}

// Dedupe keeps one row per key. Rows without a key are dropped. Kept rows stay
// in input order and the input is never modified. When nothing survives but
// matches is non-empty, the full input is returned.
func Dedupe[K comparable](matches []MatchRecord, key func(MatchRecord) (K, bool), keep Keep) []MatchRecord {
	kept, _ := split(matches, key, keep)
	if len(kept) == 0 && len(matches) > 0 {
		return append([]MatchRecord(nil), matches...)
	}
	return kept
}

// SplitDuplicates returns the rows Dedupe keeps and the rows it discards.
// When no row is a duplicate the duplicate set is the full input, so downstream
// resend exports always have rows to work with.
func SplitDuplicates[K comparable](matches []MatchRecord, key func(MatchRecord) (K, bool), keep Keep) (unique, duplicates []MatchRecord) {
	unique, duplicates = split(matches, key, keep)
	if len(unique) == 0 && len(matches) > 0 {
		unique = append([]MatchRecord(nil), matches...)
	}
	if len(duplicates) == 0 {
		duplicates = append([]MatchRecord(nil), matches...)
	}
	return unique, duplicates
}

func split[K comparable](matches []MatchRecord, key func(MatchRecord) (K, bool), keep Keep) (kept, dropped []MatchRecord) {
	chosen := make(map[K]int, len(matches))
	keys := make([]K, len(matches))
	keyed := make([]bool, len(matches))
	for i, m := range matches {
		k, ok := key(m)
		if !ok {
			continue
		}
		keys[i], keyed[i] = k, true
		if _, seen := chosen[k]; !seen || keep == KeepLast {
			chosen[k] = i
		}
	}
	kept = make([]MatchRecord, 0, len(chosen))
	for i, m := range matches {
		if keyed[i] && chosen[keys[i]] == i {
			kept = append(kept, m)
		} else {
			dropped = append(dropped, m)
		}
	}
	return kept, dropped
}

// Unkeyed counts the rows key gives no key. Dedupe and SplitDuplicates drop
// them unless nothing else survives.
func Unkeyed[K comparable](matches []MatchRecord, key func(MatchRecord) (K, bool)) int {
	return lo.CountBy(matches, func(m MatchRecord) bool {
		_, ok := key(m)
		return !ok
	})
}

// SplitChunks cuts rows into consecutive groups of at most size rows.
func SplitChunks(rows []MatchRecord, size int) [][]MatchRecord {
	if size <= 0 || len(rows) == 0 {
		return nil
	}
	return lo.Chunk(rows, size)
}
