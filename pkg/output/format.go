// Package output provides utilities for formatting and displaying loan
// comparison results.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/iwvelando/loan-simulator/internal/forecast"
	"github.com/iwvelando/loan-simulator/pkg/format"
	"github.com/iwvelando/loan-simulator/pkg/money"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable summary,
// optionally followed by the month-by-month table.
func PrettyFormat(w io.Writer, results []forecast.Forecast, withSchedule bool) error {
	p := message.NewPrinter(language.English)
	for i, result := range results {
		report := NewReport(result, withSchedule)
		if _, err := fmt.Fprintf(w, "--- Results for scenario %s ---\n", report.Name); err != nil {
			return err
		}
		if result.Summary == nil {
			continue
		}

		lines := []string{
			p.Sprintf("Loan:            $%.2f at %.3f%% for %d years from %s", report.Principal, report.AnnualRate, report.TermYears, report.StartDate),
			fmt.Sprintf("Extra payments:  %s", describePolicy(result)),
			fmt.Sprintf("Monthly payment: %s standard, %s with extras", format.Currency(report.Standard.MonthlyPayment), format.Currency(report.Extra.MonthlyPayment)),
			fmt.Sprintf("Payoff:          month %d (%s) standard, month %d (%s) with extras",
				report.Standard.PayoffMonth, report.Standard.PayoffDate, report.Extra.PayoffMonth, report.Extra.PayoffDate),
			fmt.Sprintf("Total interest:  %s standard, %s with extras", format.Currency(report.Standard.TotalInterest), format.Currency(report.Extra.TotalInterest)),
			fmt.Sprintf("Total paid:      %s standard, %s with extras", format.Currency(report.Standard.TotalPaid), format.Currency(report.Extra.TotalPaid)),
			fmt.Sprintf("Interest saved:  %s", format.Currency(report.InterestSaved)),
			fmt.Sprintf("Time saved:      %s", format.Months(report.MonthsSaved)),
		}
		for _, opt := range report.Optimizations {
			status := "converged"
			if !opt.Converged {
				status = "not converged"
			}
			lines = append(lines, fmt.Sprintf("Optimized:       %s %s -> %s for a %d-month target (%s after %d iterations)",
				opt.Field, opt.OriginalDisplay, opt.ValueDisplay, opt.TargetPayoffMonths, status, opt.Iterations))
			for _, note := range opt.Notes {
				lines = append(lines, "  note: "+note)
			}
		}
		for _, warning := range report.Warnings {
			lines = append(lines, "Warning:         "+warning)
		}
		if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
			return err
		}

		if err := prettyYearly(w, p, report); err != nil {
			return err
		}
		if withSchedule {
			if err := prettySchedule(w, p, report); err != nil {
				return err
			}
		} else {
			for _, month := range NoteMonths(report.Notes) {
				if _, err := fmt.Fprintf(w, "Month %d: %s\n", month, strings.Join(report.Notes[month], ", ")); err != nil {
					return err
				}
			}
		}
		if len(results) > 1 && i < len(results)-1 {
			if _, err := fmt.Fprintf(w, "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func prettySchedule(w io.Writer, p *message.Printer, report ScenarioReport) error {
	if _, err := fmt.Fprintf(w, "\nMonth | Date       | Standard Balance | Extra Interest | Extra Principal | Extra Balance | Notes\n"+
		"_____ | __________ | ________________ | ______________ | _______________ | _____________ | _____\n"); err != nil {
		return err
	}
	for _, row := range report.Schedule {
		if _, err := p.Fprintf(w, "%s | %s | $%.2f | $%.2f | $%.2f | $%.2f | %s\n",
			fmt.Sprintf("%5d", row.MonthIndex), row.Date, row.StandardBalance, row.ExtraInterest, row.ExtraPrincipal, row.ExtraBalance,
			strings.Join(report.Notes[row.MonthIndex], ", ")); err != nil {
			return err
		}
	}
	return nil
}

func prettyYearly(w io.Writer, p *message.Printer, report ScenarioReport) error {
	if len(report.Yearly) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nYear | Year End   | Standard Principal | Standard Interest | Standard Remaining | Extra Principal | Extra Interest | Extra Remaining\n"+
		"____ | __________ | __________________ | _________________ | __________________ | _______________ | ______________ | _______________\n"); err != nil {
		return err
	}
	for _, row := range report.Yearly {
		if _, err := p.Fprintf(w, "%s | %s | $%.2f | $%.2f | $%.2f | $%.2f | $%.2f | $%.2f\n",
			fmt.Sprintf("%4d", row.Year), row.EndDate, row.StandardPrincipal, row.StandardInterest, row.StandardBalance,
			row.ExtraPrincipal, row.ExtraInterest, row.ExtraBalance); err != nil {
			return err
		}
	}
	return nil
}

func describePolicy(result forecast.Forecast) string {
	policy := result.Summary.Policy
	var parts []string
	if policy.AppliesMonthly() {
		parts = append(parts, fmt.Sprintf("%s every month", format.Currency(policy.ExtraMonthlyAmount)))
	}
	if policy.AppliesYearly() {
		parts = append(parts, fmt.Sprintf("%s each year for %d years", format.Currency(policy.YearlyLumpSum), policy.LumpSumYears))
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, " and "), policy.Mode)
}

// CsvFormat outputs the aligned schedules of every scenario in
// comma-separated value format, one row per month.
func CsvFormat(w io.Writer, results []forecast.Forecast) error {
	writer := csv.NewWriter(w)

	header := []string{"month", "date"}
	reports := NewReports(results, true)
	for _, report := range reports {
		header = append(header,
			fmt.Sprintf("standard balance (%s)", report.Name),
			fmt.Sprintf("standard principal (%s)", report.Name),
			fmt.Sprintf("extra balance (%s)", report.Name),
			fmt.Sprintf("extra principal (%s)", report.Name),
			fmt.Sprintf("notes (%s)", report.Name),
		)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	rows := 0
	for _, report := range reports {
		rows = max(rows, len(report.Schedule))
	}
	for i := 0; i < rows; i++ {
		record := []string{strconv.Itoa(i + 1), ""}
		for _, report := range reports {
			if i >= len(report.Schedule) {
				record = append(record, "", "", "", "", "")
				continue
			}
			row := report.Schedule[i]
			record[1] = row.Date
			record = append(record,
				money.New(row.StandardBalance).String(),
				money.New(row.StandardPrincipal).String(),
				money.New(row.ExtraBalance).String(),
				money.New(row.ExtraPrincipal).String(),
				strings.Join(report.Notes[row.MonthIndex], ","),
			)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// CsvString renders CsvFormat output into a string.
func CsvString(results []forecast.Forecast) (string, error) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, results); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// YearlyCsvFormat outputs the per-year totals of every scenario in
// comma-separated value format, one row per scenario and loan year.
func YearlyCsvFormat(w io.Writer, results []forecast.Forecast) error {
	writer := csv.NewWriter(w)
	header := []string{
		"scenario", "year", "year end",
		"standard principal", "standard interest", "standard balance",
		"extra principal", "extra interest", "extra balance",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, report := range NewReports(results, false) {
		for _, row := range report.Yearly {
			record := []string{
				report.Name,
				strconv.Itoa(row.Year),
				row.EndDate,
				money.New(row.StandardPrincipal).String(),
				money.New(row.StandardInterest).String(),
				money.New(row.StandardBalance).String(),
				money.New(row.ExtraPrincipal).String(),
				money.New(row.ExtraInterest).String(),
				money.New(row.ExtraBalance).String(),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// YearlyCsvString renders YearlyCsvFormat output into a string.
func YearlyCsvString(results []forecast.Forecast) (string, error) {
	var buf bytes.Buffer
	if err := YearlyCsvFormat(&buf, results); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// JSONFormat outputs the cent-rounded reports as an indented JSON array.
func JSONFormat(w io.Writer, results []forecast.Forecast, withSchedule bool) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewReports(results, withSchedule))
}

// NoteMonths returns the months that carry notes, in order.
func NoteMonths(notes map[int][]string) []int {
	months := make([]int, 0, len(notes))
	for month := range notes {
		months = append(months, month)
	}
	sort.Ints(months)
	return months
}
