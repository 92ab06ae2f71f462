package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(candidateID int64, phone, jobID, companyCode, jobKey string) MatchRecord {
	return MatchRecord{
		JobID:       jobID,
		CandidateID: candidateID,
		Job:         JobRecord{JobID: jobID, CompanyCode: companyCode, CompositeKey: jobKey},
		Candidate:   CandidateRecord{CandidateID: candidateID, Phone: phone, Name: "n", Location: "l"},
	}
}

func jobIDs(ms []MatchRecord) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.JobID)
	}
	return out
}

func TestDedupeKeepFirstAndLast(t *testing.T) {
	in := []MatchRecord{
		rec(1, "9876543210", "J1", "C1", "1_d_p_6"),
		rec(2, "9000000001", "J1", "C1", "1_d_p_6"),
		rec(1, "+91 98765 43210", "J2", "C2", "1_d_p_7"),
		rec(3, "9000000003", "J3", "C1", "1_d_p_6"),
	}
	first := Dedupe(in, ByContact, KeepFirst)
	assert.Equal(t, []string{"J1", "J1", "J3"}, jobIDs(first))
	assert.Equal(t, int64(1), first[0].CandidateID)

	last := Dedupe(in, ByContact, KeepLast)
	assert.Equal(t, []string{"J1", "J2", "J3"}, jobIDs(last))
	assert.Equal(t, int64(2), last[0].CandidateID)
	assert.Equal(t, int64(1), last[1].CandidateID)
}

func TestDedupeIsIdempotent(t *testing.T) {
	in := []MatchRecord{
		rec(1, "9876543210", "J1", "C1", "1_d_p_6"),
		rec(1, "9876543210", "J1", "C1", "1_d_p_6"),
		rec(1, "9876543210", "J2", "C1", "1_d_p_7"),
	}
	once := Dedupe(in, ByCandidateJobKey, KeepFirst)
	twice := Dedupe(once, ByCandidateJobKey, KeepFirst)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	in := []MatchRecord{
		rec(1, "9876543210", "J1", "C1", "k"),
		rec(1, "9876543210", "J2", "C1", "k"),
	}
	before := append([]MatchRecord(nil), in...)
	_ = Dedupe(in, ByContact, KeepLast)
	assert.Equal(t, before, in)
}

func TestDedupeFallsBackToInputWhenEmpty(t *testing.T) {
	in := []MatchRecord{
		rec(1, "", "J1", "C1", "k"),
		rec(2, "123", "J2", "C1", "k"),
	}
	out := Dedupe(in, ByContact, KeepFirst)
	assert.Equal(t, in, out)
	assert.Empty(t, Dedupe(nil, ByContact, KeepFirst))
}

func TestByNameLocation(t *testing.T) {
	a := rec(1, "", "J1", "C1", "k")
	a.Candidate.NameLocation = "AshaPune"
	b := rec(2, "", "J2", "C1", "k")
	b.Candidate.Name, b.Candidate.Location = "Asha", "Pune"
	out := Dedupe([]MatchRecord{a, b}, ByNameLocation, KeepFirst)
	require.Len(t, out, 1)
	assert.Equal(t, "J1", out[0].JobID)
}

func TestSplitDuplicates(t *testing.T) {
	in := []MatchRecord{
		rec(1, "", "J1", "C1", "k1"),
		rec(1, "", "J2", "C1", "k1"),
		rec(2, "", "J3", "C1", "k1"),
	}
	unique, dups := SplitDuplicates(in, ByCandidateCompanyJob, KeepLast)
	assert.Equal(t, []string{"J2", "J3"}, jobIDs(unique))
	assert.Equal(t, []string{"J1"}, jobIDs(dups))

	distinct := []MatchRecord{rec(1, "", "J1", "C1", "k1"), rec(2, "", "J2", "C1", "k1")}
	unique, dups = SplitDuplicates(distinct, ByCandidateCompanyJob, KeepLast)
	assert.Len(t, unique, 2)
	assert.Equal(t, distinct, dups)
}

func TestSplitChunks(t *testing.T) {
	in := make([]MatchRecord, 65)
	chunks := SplitChunks(in, 30)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 30)
	assert.Len(t, chunks[2], 5)
	assert.Nil(t, SplitChunks(in, 0))
}

func TestParseKeep(t *testing.T) {
	k, ok := ParseKeep(" LAST ")
	assert.True(t, ok)
	assert.Equal(t, KeepLast, k)
	_, ok = ParseKeep("middle")
	assert.False(t, ok)
}

func TestUnkeyed(t *testing.T) {
	in := []MatchRecord{
		rec(1, "9876543210", "J1", "C1", "k"),
		rec(2, "", "J2", "C1", "k"),
		rec(3, "123", "J3", "C1", "k"),
	}
	assert.Equal(t, 2, Unkeyed(in, ByContact))
	assert.Equal(t, 0, Unkeyed(in, ByCandidateJobKey))
	assert.Len(t, Dedupe(in, ByContact, KeepFirst), 1)
}
