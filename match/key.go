// Package match holds the candidate/job matching core: composite keys,
// the salary-hike matcher, match deduplication and roster reconciliation.
package match

import (
	"strings"

	"github.com/shopspring/decimal"
)

const keySep = "_"

// Key is a decoded composite key "<location>_<department>_<product>_<salary>".
type Key struct {
	LocationID string
	Department string
	Product    string
	// Salary in lacs, never negative.
	Salary decimal.Decimal
}

// Prefix is the location/department/product part used to bucket records.
func (k Key) Prefix() string {
	return k.LocationID + keySep + k.Department + keySep + k.Product
}

func (k Key) String() string {
	return Encode(k.LocationID, k.Department, k.Product, k.Salary)
}

// Encode joins the four parts with "_". Trailing zeros of the salary are
// dropped, so 5.0 encodes as "5" and 8.50 as "8.5".
func Encode(locationID, department, product string, salary decimal.Decimal) string {
	return strings.Join([]string{locationID, department, product, salary.String()}, keySep)
}

// Decode parses a composite key. It fails unless s has exactly three
// underscores and the last segment is a non-negative number.
func Decode(s string) (Key, bool) {
	if strings.Count(s, keySep) != 3 {
		return Key{}, false
	}
	parts := strings.Split(s, keySep)
	salary, err := decimal.NewFromString(strings.TrimSpace(parts[3]))
	if err != nil || salary.IsNegative() {
		return Key{}, false
	}
	return Key{
		LocationID: parts[0],
		Department: parts[1],
		Product:    parts[2],
		Salary:     salary,
	}, true
}
