package output

import (
	"github.com/iwvelando/loan-simulator/internal/forecast"
	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/loans"
	"github.com/iwvelando/loan-simulator/pkg/money"
	"github.com/iwvelando/loan-simulator/pkg/optimization"
)

// ScenarioReport is the cent-rounded, presentation form of one forecast.
type ScenarioReport struct {
	Name          string                 `json:"name"`
	Principal     float64                `json:"principal"`
	AnnualRate    float64                `json:"annualRate"`
	TermYears     int                    `json:"termYears"`
	StartDate     string                 `json:"startDate"`
	Mode          loans.PaymentMode      `json:"mode"`
	BasePayment   float64                `json:"basePayment"`
	Standard      ResultReport           `json:"standard"`
	Extra         ResultReport           `json:"extra"`
	InterestSaved float64                `json:"interestSaved"`
	MonthsSaved   int                    `json:"monthsSaved"`
	Warnings      []string               `json:"warnings,omitempty"`
	Notes         map[int][]string       `json:"notes,omitempty"`
	Optimizations []optimization.Summary `json:"optimizations,omitempty"`
	Yearly        []YearRow              `json:"yearly,omitempty"`
	Schedule      []ScheduleRow          `json:"schedule,omitempty"`
}

// ResultReport summarizes one repayment strategy.
type ResultReport struct {
	MonthlyPayment   float64 `json:"monthlyPayment"`
	PayoffMonth      int     `json:"payoffMonth"`
	PayoffDate       string  `json:"payoffDate"`
	FullyAmortized   bool    `json:"fullyAmortized"`
	RemainingBalance float64 `json:"remainingBalance"`
	PrincipalRepaid  float64 `json:"principalRepaid"`
	TotalInterest    float64 `json:"totalInterest"`
	TotalPaid        float64 `json:"totalPaid"`
	TotalExtraPaid   float64 `json:"totalExtraPaid"`
}

// ScheduleRow is one aligned month of both ledgers.
type ScheduleRow struct {
	MonthIndex       int     `json:"monthIndex"`
	Date             string  `json:"date"`
	StandardInterest  float64 `json:"standardInterest"`
	StandardPrincipal float64 `json:"standardPrincipal"`
	StandardBalance   float64 `json:"standardBalance"`
	ExtraInterest     float64 `json:"extraInterest"`
	ExtraPrincipal    float64 `json:"extraPrincipal"`
	ExtraBalance      float64 `json:"extraBalance"`
}

// YearRow totals one loan year (months 1-12, 13-24, ...) of both ledgers.
// Balances are the closing balances of the year's last month.
type YearRow struct {
	Year              int     `json:"year"`
	EndDate           string  `json:"endDate"`
	StandardPrincipal float64 `json:"standardPrincipal"`
	StandardInterest  float64 `json:"standardInterest"`
	StandardBalance   float64 `json:"standardBalance"`
	ExtraPrincipal    float64 `json:"extraPrincipal"`
	ExtraInterest     float64 `json:"extraInterest"`
	ExtraBalance      float64 `json:"extraBalance"`
}

// NewReport rounds a forecast for display. The month-by-month schedule is
// included only when withSchedule is set.
func NewReport(result forecast.Forecast, withSchedule bool) ScenarioReport {
	report := ScenarioReport{
		Name:          result.Name,
		Notes:         result.Notes,
		Optimizations: result.Optimizations,
	}
	summary := result.Summary
	if summary == nil {
		return report
	}

	report.Principal = money.RoundFloat(summary.Terms.Principal)
	report.AnnualRate = summary.Terms.AnnualRatePercent
	report.TermYears = summary.Terms.TermYears
	report.StartDate = summary.Terms.StartDate.String()
	report.Mode = summary.Policy.Mode
	report.BasePayment = money.RoundFloat(summary.BasePayment)
	report.Standard = newResultReport(summary.Terms.Principal, summary.Standard)
	report.Extra = newResultReport(summary.Terms.Principal, summary.Extra)
	report.InterestSaved = money.New(summary.Standard.TotalInterest).Round().Sub(money.New(summary.Extra.TotalInterest).Round()).Float()
	report.MonthsSaved = summary.MonthsSaved
	report.Warnings = summary.Warnings
	report.Yearly = YearlyRows(summary)

	if withSchedule {
		report.Schedule = make([]ScheduleRow, 0, len(summary.Months))
		for _, month := range summary.Months {
			report.Schedule = append(report.Schedule, ScheduleRow{
				MonthIndex:        month.MonthIndex,
				Date:              month.Date.String(),
				StandardInterest:  money.RoundFloat(month.Standard.InterestAccrued),
				StandardPrincipal: money.RoundFloat(month.Standard.PrincipalPaid),
				StandardBalance:   money.RoundFloat(month.Standard.ClosingBalance),
				ExtraInterest:     money.RoundFloat(month.Extra.InterestAccrued),
				ExtraPrincipal:    money.RoundFloat(month.Extra.PrincipalPaid),
				ExtraBalance:      money.RoundFloat(month.Extra.ClosingBalance),
			})
		}
	}

	return report
}

// YearlyRows aggregates the aligned months of a comparison by loan year. The
// last year may be partial when both ledgers finish mid-year.
func YearlyRows(summary *loans.ComparisonSummary) []YearRow {
	if summary == nil || len(summary.Months) == 0 {
		return nil
	}

	type totals struct {
		standardPrincipal, standardInterest money.Money
		extraPrincipal, extraInterest       money.Money
		last                                loans.AlignedMonth
	}
	years := make([]totals, 0, (len(summary.Months)+constants.MonthsPerYear-1)/constants.MonthsPerYear)
	for _, month := range summary.Months {
		year := (month.MonthIndex - 1) / constants.MonthsPerYear
		for len(years) <= year {
			years = append(years, totals{
				standardPrincipal: money.Zero(),
				standardInterest:  money.Zero(),
				extraPrincipal:    money.Zero(),
				extraInterest:     money.Zero(),
			})
		}
		t := &years[year]
		t.standardPrincipal = t.standardPrincipal.Add(money.New(month.Standard.PrincipalPaid))
		t.standardInterest = t.standardInterest.Add(money.New(month.Standard.InterestAccrued))
		t.extraPrincipal = t.extraPrincipal.Add(money.New(month.Extra.PrincipalPaid))
		t.extraInterest = t.extraInterest.Add(money.New(month.Extra.InterestAccrued))
		t.last = month
	}

	rows := make([]YearRow, 0, len(years))
	for i, t := range years {
		rows = append(rows, YearRow{
			Year:              i + 1,
			EndDate:           t.last.Date.String(),
			StandardPrincipal: t.standardPrincipal.Float(),
			StandardInterest:  t.standardInterest.Float(),
			StandardBalance:   money.RoundFloat(t.last.Standard.ClosingBalance),
			ExtraPrincipal:    t.extraPrincipal.Float(),
			ExtraInterest:     t.extraInterest.Float(),
			ExtraBalance:      money.RoundFloat(t.last.Extra.ClosingBalance),
		})
	}
	return rows
}

// NewReports rounds every forecast for display.
func NewReports(results []forecast.Forecast, withSchedule bool) []ScenarioReport {
	reports := make([]ScenarioReport, 0, len(results))
	for _, result := range results {
		reports = append(reports, NewReport(result, withSchedule))
	}
	return reports
}

func newResultReport(principal float64, result loans.ScenarioResult) ResultReport {
	repaid := money.Zero()
	for _, entry := range result.Ledger {
		repaid = repaid.Add(money.New(entry.PrincipalPaid))
	}
	return ResultReport{
		MonthlyPayment:   money.RoundFloat(result.MonthlyPayment),
		PayoffMonth:      result.PayoffMonth,
		PayoffDate:       result.PayoffDate.String(),
		FullyAmortized:   result.FullyAmortized,
		RemainingBalance: money.RoundFloat(result.RemainingBalance),
		PrincipalRepaid:  repaid.Round().Float(),
		TotalInterest:    money.RoundFloat(result.TotalInterest),
		TotalPaid:        money.Sum(principal, result.TotalInterest).Round().Float(),
		TotalExtraPaid:   money.RoundFloat(result.TotalExtraPaid),
	}
}
