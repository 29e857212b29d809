// Package forecast defines the data structures related to a given forecast and
// includes functions for computing the forecasts.
package forecast

import (
	"fmt"

	"github.com/iwvelando/loan-simulator/internal/config"
	"github.com/iwvelando/loan-simulator/pkg/format"
	"github.com/iwvelando/loan-simulator/pkg/loans"
	"github.com/iwvelando/loan-simulator/pkg/money"
	"github.com/iwvelando/loan-simulator/pkg/optimization"
	"go.uber.org/zap"
)

// Forecast holds the comparison for one scenario plus notes keyed by month
// index.
type Forecast struct {
	Name          string                   `json:"name"`
	Summary       *loans.ComparisonSummary `json:"summary"`
	Notes         map[int][]string         `json:"notes,omitempty"`
	Optimizations []optimization.Summary   `json:"optimizations,omitempty"`
}

// GetForecast processes the Forecasts for all active Scenarios, in the order
// they appear in the configuration.
func GetForecast(logger *zap.Logger, conf config.Configuration) ([]Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	terms, err := conf.Loan.ToLoanTerms()
	if err != nil {
		return nil, fmt.Errorf("loan: %w", err)
	}

	comparator := loans.NewComparator(logger)
	var results []Forecast
	for _, scenario := range conf.Scenarios {
		if !scenario.Active {
			logger.Debug(fmt.Sprintf("skipping scenario %s because it is inactive", scenario.Name),
				zap.String("op", "forecast.GetForecast"),
			)
			continue
		}

		policy, err := scenario.ToPolicy()
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}

		summary, err := comparator.Compare(terms, policy)
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}

		results = append(results, Forecast{
			Name:    scenario.Name,
			Summary: summary,
			Notes:   BuildNotes(summary),
		})
	}

	return results, nil
}

// BuildNotes annotates the months where something notable happens: lump sums,
// each scenario's payoff and balances left at the end of the term.
func BuildNotes(summary *loans.ComparisonSummary) map[int][]string {
	notes := make(map[int][]string)
	if summary == nil {
		return notes
	}

	for _, entry := range summary.Extra.Ledger {
		if entry.LumpSum <= 0 {
			continue
		}
		requested := summary.Policy.LumpSumFor(entry.MonthIndex)
		note := fmt.Sprintf("lump sum of %s applied", format.Currency(entry.LumpSum))
		if money.New(requested).Round().GreaterThan(money.New(entry.LumpSum).Round()) {
			note = fmt.Sprintf("lump sum of %s applied (capped from %s at the remaining balance)",
				format.Currency(entry.LumpSum), format.Currency(requested))
		}
		notes[entry.MonthIndex] = append(notes[entry.MonthIndex], note)
	}

	for _, result := range []loans.ScenarioResult{summary.Standard, summary.Extra} {
		if result.FullyAmortized {
			notes[result.PayoffMonth] = append(notes[result.PayoffMonth],
				fmt.Sprintf("%s scenario paid off on %s", result.Name, result.PayoffDate))
			continue
		}
		notes[result.PayoffMonth] = append(notes[result.PayoffMonth],
			fmt.Sprintf("%s scenario not fully paid off: %s remains", result.Name, format.Currency(result.RemainingBalance)))
	}

	return notes
}
