package match

import (
	"fmt"
	"strings"
	"time"
)

// RosterRow is one row of the roster of record, identified by its phone.
type RosterRow struct {
	// Index is the data-row position in the roster, -1 for rows not stored yet.
	Index       int
	CandidateID int64
	Phone       string
	Status      string
	ContactDate string
	ContactTime string
	Recruiter   string
	Comment     string
	// CreatedDate is the first-seen date; updates never touch it.
	CreatedDate string
	Attributes  map[string]string
}

// StatusEvent is one call-log outcome.
type StatusEvent struct {
	Phone      string
	StatusCode string
	ActorCode  string
	Comment    string
	Timestamp  string
	Attributes map[string]string
}

// RosterPatch rewrites fields of an existing roster row. CandidateID and
// CreatedDate are never part of a patch.
type RosterPatch struct {
	Index       int
	CandidateID int64
	Phone       string
	Status      string
	ContactDate string
	ContactTime string
	Recruiter   string
	Comment     string
	Attributes  map[string]string
	// StatusOnly limits the patch to status, date and time.
	StatusOnly bool
}

func (p *RosterPatch) merge(q RosterPatch) {
	p.Status, p.ContactDate, p.ContactTime = q.Status, q.ContactDate, q.ContactTime
	if q.StatusOnly {
		return
	}
	p.StatusOnly = false
	p.Recruiter, p.Comment = q.Recruiter, q.Comment
	p.Attributes = mergeAttributes(p.Attributes, q.Attributes)
}

type EmptyPhonePolicy string

const (
	// EmptyPhoneDrop skips events whose phone does not normalize.
	EmptyPhoneDrop EmptyPhonePolicy = "drop"
	// EmptyPhoneAppend appends them as fresh rows that can never be matched again.
	EmptyPhoneAppend EmptyPhonePolicy = "append"
)

func ParseEmptyPhonePolicy(s string) (EmptyPhonePolicy, error) {
	switch EmptyPhonePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmptyPhoneDrop:
		return EmptyPhoneDrop, nil
	case EmptyPhoneAppend:
		return EmptyPhoneAppend, nil
	}
	return "", fmt.Errorf("unknown empty phone policy %q", s)
}

type ReconcileOptions struct {
	SuppressWindowDays int
	SuppressedStatuses []string
	EmptyPhone         EmptyPhonePolicy
	Statuses           *StatusTable
	Actors             *ActorTable
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o ReconcileOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o ReconcileOptions) statuses() *StatusTable {
	if o.Statuses != nil {
		return o.Statuses
	}
	return DefaultStatusTable()
}

func (o ReconcileOptions) actors() *ActorTable {
	if o.Actors != nil {
		return o.Actors
	}
	return DefaultActorTable()
}

type ReconcileStats struct {
	Events           int
	Updated          int
	Appended         int
	Merged           int
	EmptyPhone       int
	Ambiguous        int
	UnparseableDates int
	Suppressed       int
}

func (s ReconcileStats) String() string {
	return fmt.Sprintf("%d events: %d rows updated, %d rows appended, %d events merged, %d empty phones, %d ambiguous phones, %d unparseable dates, %d suppressed",
		s.Events, s.Updated, s.Appended, s.Merged, s.EmptyPhone, s.Ambiguous, s.UnparseableDates, s.Suppressed)
}

type ReconcileResult struct {
	Updates []RosterPatch
	Appends []RosterRow
	// Reengage lists phones eligible for the re-engagement export, in first-event order.
	Reengage []string
	// Suppressed lists phones held back because their status before this batch
	// was negative and recent.
	Suppressed []string
	Stats      ReconcileStats
}

type reconciler struct {
	opts       ReconcileOptions
	now        time.Time
	statuses   *StatusTable
	actors     *ActorTable
	suppressed map[string]bool
	roster     []RosterRow
	byPhone    map[string][]int
	maxID      int64
	patchAt    map[int]int
	appendAt   map[string]int
	decided    map[string]bool
	result     *ReconcileResult
}

// Reconcile decides, for each event, whether to append a new roster row or
// update the existing rows with the same normalized phone. New rows get ids
// after the largest existing candidate id. Several events for one phone are
// folded into a single patch or append, the later event winning. Roster
// statuses outside the allowed set are read as the default status.
func Reconcile(roster []RosterRow, events []StatusEvent, opts ReconcileOptions) *ReconcileResult {
	r := &reconciler{
		opts:       opts,
		now:        opts.now(),
		statuses:   opts.statuses(),
		actors:     opts.actors(),
		suppressed: make(map[string]bool, len(opts.SuppressedStatuses)),
		roster:     make([]RosterRow, len(roster)),
		byPhone:    make(map[string][]int),
		patchAt:    make(map[int]int),
		appendAt:   make(map[string]int),
		decided:    make(map[string]bool),
		result: &ReconcileResult{
			Updates:    make([]RosterPatch, 0),
			Appends:    make([]RosterRow, 0),
			Reengage:   make([]string, 0),
			Suppressed: make([]string, 0),
		},
	}
	for _, s := range opts.SuppressedStatuses {
		r.suppressed[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for i, row := range roster {
		row.Status = r.statuses.Validate(row.Status)
		r.roster[i] = row
		if row.CandidateID > r.maxID {
			r.maxID = row.CandidateID
		}
		if p := NormalizePhone(row.Phone); p != "" {
			r.byPhone[p] = append(r.byPhone[p], i)
		}
	}
	for _, ev := range events {
		r.apply(ev)
	}
	r.result.Stats.Updated = len(r.result.Updates)
	r.result.Stats.Appended = len(r.result.Appends)
	r.result.Stats.Suppressed = len(r.result.Suppressed)
	return r.result
}

func (r *reconciler) eventTime(ev StatusEvent) (string, string) {
	ts, ok := ParseEventTime(ev.Timestamp, r.now.Location())
	if !ok {
		r.result.Stats.UnparseableDates++
		ts = r.now
	}
	return ts.Format(RosterDateLayout), ts.Format(RosterTimeLayout)
}

func (r *reconciler) apply(ev StatusEvent) {
	r.result.Stats.Events++
	date, clock := r.eventTime(ev)
	status := r.statuses.Canonical(ev.StatusCode)
	recruiter := r.actors.Name(ev.ActorCode)
	comment := strings.TrimSpace(ev.Comment)

	phone := NormalizePhone(ev.Phone)
	if phone == "" {
		r.result.Stats.EmptyPhone++
		if r.opts.EmptyPhone == EmptyPhoneAppend {
			r.maxID++
			r.result.Appends = append(r.result.Appends, RosterRow{
				Index:       -1,
				CandidateID: r.maxID,
				Phone:       strings.TrimSpace(ev.Phone),
				Status:      status,
				ContactDate: date,
				ContactTime: clock,
				Recruiter:   recruiter,
				Comment:     comment,
				CreatedDate: date,
				Attributes:  mergeAttributes(nil, ev.Attributes),
			})
		}
		return
	}

	rows := r.byPhone[phone]
	if len(rows) == 0 {
		if i, ok := r.appendAt[phone]; ok {
			row := &r.result.Appends[i]
			row.Status, row.ContactDate, row.ContactTime = status, date, clock
			row.Recruiter, row.Comment = recruiter, comment
			row.Attributes = mergeAttributes(row.Attributes, ev.Attributes)
			r.result.Stats.Merged++
		} else {
			r.maxID++
			r.appendAt[phone] = len(r.result.Appends)
			r.result.Appends = append(r.result.Appends, RosterRow{
				Index:       -1,
				CandidateID: r.maxID,
				Phone:       phone,
				Status:      status,
				ContactDate: date,
				ContactTime: clock,
				Recruiter:   recruiter,
				Comment:     comment,
				CreatedDate: date,
				Attributes:  mergeAttributes(nil, ev.Attributes),
			})
		}
		r.decide(phone, false)
		return
	}

	primary := r.latest(rows)
	if !r.decided[phone] {
		if len(rows) > 1 {
			r.result.Stats.Ambiguous++
		}
		r.decide(phone, r.isSuppressed(r.roster[primary]))
	}
	for _, ri := range rows {
		row := r.roster[ri]
		patch := RosterPatch{
			Index:       row.Index,
			CandidateID: row.CandidateID,
			Phone:       row.Phone,
			Status:      status,
			ContactDate: date,
			ContactTime: clock,
			StatusOnly:  ri != primary,
		}
		if ri == primary {
			patch.Recruiter = recruiter
			patch.Comment = comment
			patch.Attributes = mergeAttributes(nil, ev.Attributes)
		}
		if pi, ok := r.patchAt[ri]; ok {
			r.result.Updates[pi].merge(patch)
			r.result.Stats.Merged++
			continue
		}
		r.patchAt[ri] = len(r.result.Updates)
		r.result.Updates = append(r.result.Updates, patch)
	}
}

func (r *reconciler) decide(phone string, suppressed bool) {
	if r.decided[phone] {
		return
	}
	r.decided[phone] = true
	if suppressed {
		r.result.Suppressed = append(r.result.Suppressed, phone)
		return
	}
	r.result.Reengage = append(r.result.Reengage, phone)
}

// latest picks the most recently contacted row; ties go to the later row.
func (r *reconciler) latest(rows []int) int {
	best := rows[0]
	bestTime := r.contactTime(r.roster[best])
	for _, ri := range rows[1:] {
		t := r.contactTime(r.roster[ri])
		if !t.Before(bestTime) {
			best, bestTime = ri, t
		}
	}
	return best
}

func (r *reconciler) contactTime(row RosterRow) time.Time {
	s := strings.TrimSpace(row.ContactDate)
	if row.ContactTime != "" {
		if t, ok := ParseEventTime(s+" "+strings.TrimSpace(row.ContactTime), r.now.Location()); ok {
			return t
		}
	}
	t, _ := ParseEventTime(s, r.now.Location())
	return t
}

// isSuppressed reports whether the row's current status is negative and its
// last contact lies within the suppression window.
func (r *reconciler) isSuppressed(row RosterRow) bool {
	if !r.suppressed[strings.ToLower(strings.TrimSpace(row.Status))] {
		return false
	}
	last, ok := ParseEventTime(row.ContactDate, r.now.Location())
	if !ok {
		return false
	}
	days := int(r.now.Sub(last).Hours() / 24)
	return days <= r.opts.SuppressWindowDays
}

// Lineup appends one row per event whose status canonicalizes to Lineup. Rows
// are never merged or updated, even for a repeated phone; ids continue after
// the largest id already in lineup.
func Lineup(lineup []RosterRow, events []StatusEvent, opts ReconcileOptions) []RosterRow {
	statuses := opts.statuses()
	actors := opts.actors()
	now := opts.now()
	var maxID int64
	for _, row := range lineup {
		if row.CandidateID > maxID {
			maxID = row.CandidateID
		}
	}
	out := make([]RosterRow, 0)
	for _, ev := range events {
		if statuses.Canonical(ev.StatusCode) != StatusLineup {
			continue
		}
		phone := NormalizePhone(ev.Phone)
		if phone == "" {
			if opts.EmptyPhone != EmptyPhoneAppend {
				continue
			}
			phone = strings.TrimSpace(ev.Phone)
		}
		ts, ok := ParseEventTime(ev.Timestamp, now.Location())
		if !ok {
			ts = now
		}
		maxID++
		out = append(out, RosterRow{
			Index:       -1,
			CandidateID: maxID,
			Phone:       phone,
			Status:      StatusLineup,
			ContactDate: ts.Format(RosterDateLayout),
			ContactTime: ts.Format(RosterTimeLayout),
			Recruiter:   actors.Name(ev.ActorCode),
			Comment:     strings.TrimSpace(ev.Comment),
			CreatedDate: ts.Format(RosterDateLayout),
			Attributes:  mergeAttributes(nil, ev.Attributes),
		})
	}
	return out
}

func mergeAttributes(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
