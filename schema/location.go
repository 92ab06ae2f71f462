package schema

import (
	"regexp"
	"strings"
)

// NotAvailable is the location id of a location the master does not know.
const NotAvailable = "NA"

var trailingPunct = regexp.MustCompile(`[.,;:]+$`)

// CleanLocation folds a location name for lookup.
func CleanLocation(s string) string {
	return strings.TrimSpace(trailingPunct.ReplaceAllString(FoldText(s), ""))
}

// LocationIndex resolves location names to location-master ids.
type LocationIndex struct {
	byArea map[string]string
	byCity map[string]string
}

// NewLocationIndex builds an index from a location master table with id, area and city columns.
// The first row wins for a repeated area or city.
func NewLocationIndex(columns []string, rows [][]string) (*LocationIndex, error) {
	h, err := Resolve(columns, nil, FieldMasterID, FieldArea, FieldCity)
	if err != nil {
		return nil, err
	}
	idx := &LocationIndex{byArea: map[string]string{}, byCity: map[string]string{}}
	for _, row := range rows {
		id := h.Get(row, FieldMasterID)
		if id == "" {
			continue
		}
		if area := CleanLocation(h.Get(row, FieldArea)); area != "" {
			if _, ok := idx.byArea[area]; !ok {
				idx.byArea[area] = id
			}
		}
		if city := CleanLocation(h.Get(row, FieldCity)); city != "" {
			if _, ok := idx.byCity[city]; !ok {
				idx.byCity[city] = id
			}
		}
	}
	return idx, nil
}

func (x *LocationIndex) Len() int {
	return len(x.byArea) + len(x.byCity)
}

// Lookup matches by area first, then by city. Unknown or blank locations give NotAvailable.
func (x *LocationIndex) Lookup(location string) (string, bool) {
	loc := CleanLocation(location)
	if loc == "" {
		return NotAvailable, false
	}
	if id, ok := x.byArea[loc]; ok {
		return id, true
	}
	if id, ok := x.byCity[loc]; ok {
		return id, true
	}
	return NotAvailable, false
}
