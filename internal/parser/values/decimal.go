package values

import (
	"strings"

	"github.com/shopspring/decimal"

	"hringest/internal/errs"
)

// DecimalPlaces is the fixed precision ParseDecimal rounds to.
const DecimalPlaces = 2

// ParseDecimal parses s as a decimal number rounded half-to-even to two
// places. Empty and non-numeric input yields a DecimalParseError.
func ParseDecimal(s string) (decimal.Decimal, error) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return decimal.Decimal{}, &errs.DecimalParseError{Input: s}
	}
	d, err := decimal.NewFromString(txt)
	if err != nil {
		return decimal.Decimal{}, &errs.DecimalParseError{Input: s}
	}
	return d.RoundBank(DecimalPlaces), nil
}
