package schema

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	rupeesThreshold = decimal.NewFromInt(1000)
	lac             = decimal.NewFromInt(100000)
	lacsWord        = regexp.MustCompile(`(?i)\s*(lacs?|lakhs?|lpa)\b`)
)

// NormalizeSalaryLacs converts a salary cell to lacs rounded to two decimals.
// Rupee signs, commas and a "Lacs" suffix are ignored; an empty cell is 0;
// values above 1000 are taken as rupees. ok is false when the cell is not a number.
func NormalizeSalaryLacs(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(raw, "₹", "")
	s = strings.ReplaceAll(s, ",", "")
	s = lacsWord.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	v, err := decimal.NewFromString(s)
	if err != nil || v.IsNegative() {
		return decimal.Zero, false
	}
	if v.GreaterThan(rupeesThreshold) {
		v = v.Div(lac)
	}
	return v.Round(2), true
}
