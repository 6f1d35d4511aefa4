package governance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxPower bounds a single power value so that float64 sums over any
// realistic number of votes stay finite.
var maxPower = decimal.New(1, 300)

// ParsePower parses a raw voting power value. Chains report power as integer
// token amounts far beyond float64 precision as well as normalised fractions,
// so parsing goes through an exact decimal. The bool is false for empty,
// unparsable, negative or out of range input; callers treat that as zero power.
func ParsePower(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if d.IsNegative() || d.GreaterThan(maxPower) {
		return decimal.Zero, false
	}
	return d, true
}

// PowerFloat is ParsePower converted for float consumers; unparsable input is 0.
func PowerFloat(raw string) (float64, bool) {
	d, ok := ParsePower(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}
