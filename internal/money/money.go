/**
 * @description
 * Integer-cents helpers for monetary values. All stored amounts in the
 * service are int64 cents; conversion to a decimal representation happens
 * only at formatting boundaries, never in business logic.
 */

package money

import "fmt"

// Percent returns the funding percentage of collected against target,
// rounded to the nearest whole percent and capped at 100. A target of zero
// or less yields 0.
func Percent(collected, target int64) int {
	if target <= 0 {
		return 0
	}
	pct := (collected*100 + target/2) / target
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return int(pct)
}

// FormatCents renders cents as a euro display string, e.g. 1250 -> "€12,50".
// Display-only; never feed the result back into arithmetic.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%d,%02d", sign, cents/100, cents%100)
}
