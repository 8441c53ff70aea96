package sales

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("sales: invalid amount")

var currencyMarkers = []string{"₽", "руб.", "руб", "rub", "р."}

// plainNumber is an optionally signed decimal without exponent
var plainNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)

var amountSpaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// ParseAmount parses a decimal as written in seller exports. Grouping spaces,
// a trailing currency marker and a decimal comma are accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, marker := range currencyMarkers {
		if strings.HasSuffix(s, marker) {
			s = strings.TrimSuffix(s, marker)
			break
		}
	}
	s = amountSpaces.Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	s, ok := normalizeSeparators(s)
	if !ok || !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// normalizeSeparators rewrites s to use a decimal point. When both a point and
// a comma occur, the last one is the decimal separator and the other groups
// thousands.
func normalizeSeparators(s string) (string, bool) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma < 0:
		return s, true
	case lastDot < 0:
		// 1299,50
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		return strings.Replace(s, ",", ".", 1), true
	case lastComma > lastDot:
		// 1.299,50
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1), true
	default:
		// 1,299.50
		if strings.Count(s, ".") > 1 {
			return "", false
		}
		return strings.ReplaceAll(s, ",", ""), true
	}
}

// ParseQuantity parses a whole number of units. "2", "2.0" and "2,0" are accepted.
func ParseQuantity(raw string) (int, error) {
	d, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidAmount, raw)
	}
	if d.GreaterThan(decimal.NewFromInt(1<<31-1)) || d.LessThan(decimal.NewFromInt(-(1 << 31))) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, raw)
	}
	return int(d.IntPart()), nil
}
