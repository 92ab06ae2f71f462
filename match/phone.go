package match

import "strings"

const phoneDigits = 10

// NormalizePhone keeps the last ten digits of raw. Fewer than ten digits
// yields "", which never matches anything.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < phoneDigits {
		return ""
	}
	return digits[len(digits)-phoneDigits:]
}
