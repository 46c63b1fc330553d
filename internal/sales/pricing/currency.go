package pricing

import (
	"strings"

	"golang.org/x/text/currency"
)

const defaultMinorUnits int32 = 2

// MinorUnits returns the number of decimal places used by a currency, falling
// back to two for unknown or empty codes.
func MinorUnits(code string) int32 {
	code = strings.TrimSpace(code)
	if code == "" {
		return defaultMinorUnits
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return defaultMinorUnits
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// ValidCurrency reports whether code is a recognised ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	return err == nil
}
