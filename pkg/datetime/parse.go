// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/iwvelando/loan-simulator/pkg/constants"
)

const (
	// DateLayout is the full calendar date format accepted in config files.
	DateLayout = constants.DateLayout

	// MonthLayout is the month-granular format, resolved to the first day.
	MonthLayout = constants.MonthLayout
)

// ParseDate parses either a full date (2006-01-02) or a month (2006-01). A
// bare month resolves to its first day.
func ParseDate(value string) (civil.Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return civil.Date{}, fmt.Errorf("date cannot be empty")
	}
	if d, err := civil.ParseDate(trimmed); err == nil {
		return d, nil
	}
	t, err := time.Parse(MonthLayout, trimmed)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: expected %s or %s", value, DateLayout, MonthLayout)
	}
	return civil.DateOf(t), nil
}

// MustParseDate parses a date string and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseDate(value string) civil.Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths offsets a date by whole calendar months. When the source day does
// not exist in the target month it is clamped to that month's last day, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func AddMonths(date civil.Date, months int) civil.Date {
	total := date.Year*constants.MonthsPerYear + int(date.Month) - 1 + months
	year := total / constants.MonthsPerYear
	month := total % constants.MonthsPerYear
	if month < 0 {
		month += constants.MonthsPerYear
		year--
	}
	target := civil.Date{Year: year, Month: time.Month(month + 1)}
	target.Day = date.Day
	if last := DaysIn(target.Year, target.Month); target.Day > last {
		target.Day = last
	}
	return target
}
