package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HikeBand is an inclusive range of hike percentages.
type HikeBand struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewHikeBand builds a band; min must not exceed max.
func NewHikeBand(min, max float64) (HikeBand, error) {
	if min > max {
		return HikeBand{}, fmt.Errorf("hike band min %v exceeds max %v", min, max)
	}
	return HikeBand{Min: decimal.NewFromFloat(min), Max: decimal.NewFromFloat(max)}, nil
}

func (b HikeBand) Contains(hike decimal.Decimal) bool {
	return hike.GreaterThanOrEqual(b.Min) && hike.LessThanOrEqual(b.Max)
}

func (b HikeBand) String() string {
	return fmt.Sprintf("[%s%%, %s%%]", b.Min, b.Max)
}

type MatchOptions struct {
	Band HikeBand
	// RequireActive skips jobs whose Active flag is false.
	RequireActive bool
}

// MatchStats counts what the matcher skipped. Per-record problems never fail a run.
type MatchStats struct {
	Candidates           int
	Jobs                 int
	InvalidCandidateKeys int
	InvalidJobKeys       int
	InactiveJobs         int
	UnmatchableSalaries  int
	OutOfBand            int
	Matches              int
}

func (s MatchStats) InvalidKeys() int {
	return s.InvalidCandidateKeys + s.InvalidJobKeys
}

func (s MatchStats) String() string {
	return fmt.Sprintf("%d matches from %d jobs x %d candidates, %d invalid keys skipped, %d salary pairs skipped, %d inactive jobs, %d pairs out of band",
		s.Matches, s.Jobs, s.Candidates, s.InvalidKeys(), s.UnmatchableSalaries, s.InactiveJobs, s.OutOfBand)
}

type MatchResult struct {
	Matches []MatchRecord
	Stats   MatchStats
	// InvalidCandidates lists candidates whose composite key did not decode.
	InvalidCandidates []CandidateRecord
}

type keyedCandidate struct {
	record CandidateRecord
	key    Key
}

// Match pairs every job with the candidates sharing its key prefix whose salary
// hike (job - candidate) / candidate * 100 lies within opts.Band. Output is
// job-major, candidate-minor, in input order.
func Match(jobs []JobRecord, candidates []CandidateRecord, opts MatchOptions) *MatchResult {
	result := &MatchResult{Matches: make([]MatchRecord, 0)}
	result.Stats.Candidates = len(candidates)
	result.Stats.Jobs = len(jobs)

	index := make(map[string][]keyedCandidate)
	for _, c := range candidates {
		key, ok := Decode(c.CompositeKey)
		if !ok {
			result.Stats.InvalidCandidateKeys++
			result.InvalidCandidates = append(result.InvalidCandidates, c)
			continue
		}
		prefix := key.Prefix()
		index[prefix] = append(index[prefix], keyedCandidate{record: c, key: key})
	}

	for _, job := range jobs {
		if opts.RequireActive && !job.Active {
			result.Stats.InactiveJobs++
			continue
		}
		jobKey, ok := Decode(job.CompositeKey)
		if !ok {
			result.Stats.InvalidJobKeys++
			continue
		}
		prefix := jobKey.Prefix()
		for _, kc := range index[prefix] {
			if !kc.key.Salary.IsPositive() {
				result.Stats.UnmatchableSalaries++
				continue
			}
			hike := jobKey.Salary.Sub(kc.key.Salary).Mul(hundred).Div(kc.key.Salary)
			if !opts.Band.Contains(hike) {
				result.Stats.OutOfBand++
				continue
			}
			result.Matches = append(result.Matches, MatchRecord{
				JobID:           job.JobID,
				CandidateID:     kc.record.CandidateID,
				Prefix:          prefix,
				Hike:            hike,
				HikeText:        hike.StringFixed(1) + "%",
				JobSalary:       jobKey.Salary,
				CandidateSalary: kc.key.Salary,
				Job:             job,
				Candidate:       kc.record,
			})
		}
	}
	result.Stats.Matches = len(result.Matches)
	return result
}
