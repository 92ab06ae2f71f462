package match

import (
	"strings"
	"time"
)

// Canonical statuses.
const (
	StatusRinging       = "Ringing"
	StatusLineup        = "Lineup"
	StatusNotInterested = "Not Interested"
	StatusDrop          = "Drop"
)

// AllowedStatuses is the closed set of canonical roster statuses.
var AllowedStatuses = []string{
	"#N/A", "Call back", StatusDrop, "Hold", "Ignore",
	"Interested", StatusLineup, "Location Not Available",
	StatusNotInterested, "Remark", StatusRinging, "Switchoff", "Duplicate",
}

// StatusTable maps raw call-log status codes to canonical statuses.
type StatusTable struct {
	codes   map[string]string
	allowed map[string]bool
	folded  map[string]string
	def     string
}

// NewStatusTable builds a table. Codes are matched case-insensitively; a mapped
// value outside allowed, or an unknown code, canonicalizes to def.
func NewStatusTable(codes map[string]string, allowed []string, def string) *StatusTable {
	t := &StatusTable{
		codes:   make(map[string]string, len(codes)),
		allowed: make(map[string]bool, len(allowed)),
		folded:  make(map[string]string, len(allowed)),
		def:     def,
	}
	for k, v := range codes {
		t.codes[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	for _, s := range allowed {
		t.allowed[s] = true
		t.folded[strings.ToLower(s)] = s
	}
	return t
}

func DefaultStatusTable() *StatusTable {
	return NewStatusTable(map[string]string{
		"NI":     StatusNotInterested,
		"INTSTD": StatusLineup,
		"DROP":   StatusDrop,
	}, AllowedStatuses, StatusRinging)
}

// Canonical maps a raw code. Empty and unknown codes give the default status.
func (t *StatusTable) Canonical(code string) string {
	mapped, ok := t.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok || !t.allowed[mapped] {
		return t.def
	}
	return mapped
}

// Validate returns the allowed status status names, ignoring case, and the
// default otherwise.
func (t *StatusTable) Validate(status string) string {
	if s, ok := t.folded[strings.ToLower(strings.TrimSpace(status))]; ok {
		return s
	}
	return t.def
}

// ActorTable maps dialer user codes to recruiter names.
type ActorTable struct {
	prefix string
	names  map[string]string
}

func NewActorTable(prefix string, names map[string]string) *ActorTable {
	t := &ActorTable{prefix: strings.ToUpper(prefix), names: make(map[string]string, len(names))}
	for k, v := range names {
		t.names[strings.ToUpper(k)] = v
	}
	return t
}

func DefaultActorTable() *ActorTable {
	return NewActorTable("COMP", map[string]string{
		"4":    "Soham",
		"3":    "Antara",
		"9":    "Shraddha",
		"5":    "Nandhini",
		"VDAD": "",
	})
}

// Name uppercases code, strips the prefix and looks it up. Unmapped codes are
// returned in that normalized form.
func (t *ActorTable) Name(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	if t.prefix != "" {
		c = strings.TrimPrefix(c, t.prefix)
	}
	if name, ok := t.names[c]; ok {
		return name
	}
	return c
}

const (
	RosterDateLayout = "02-01-2006"
	RosterTimeLayout = "15:04:05"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
}

// ParseEventTime parses the timestamp formats seen in call-log exports and rosters.
// Date-only values are midnight in loc.
func ParseEventTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
