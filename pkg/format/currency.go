// Package format renders amounts and durations for human-facing output.
package format

import (
	"fmt"
	"strings"

	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/money"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	rounded := money.RoundFloat(amount)
	if rounded < 0 {
		return "-$" + NumericCurrency(-rounded)
	}
	return "$" + NumericCurrency(rounded)
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", money.RoundFloat(amount))
}

// Months renders a month count as years and months, e.g. "9 years 3 months".
func Months(months int) string {
	if months == 0 {
		return "0 months"
	}
	sign := ""
	if months < 0 {
		sign = "-"
		months = -months
	}
	years := months / constants.MonthsPerYear
	rest := months % constants.MonthsPerYear

	var parts []string
	if years > 0 {
		parts = append(parts, plural(years, "year"))
	}
	if rest > 0 {
		parts = append(parts, plural(rest, "month"))
	}
	return sign + strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
