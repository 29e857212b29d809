package loans

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/iwvelando/loan-simulator/pkg/datetime"
	"go.uber.org/zap"
)

// Scenario names used in results and notes.
const (
	StandardScenario = "standard"
	ExtraScenario    = "extra payments"
)

// ScenarioResult summarizes one simulated repayment strategy.
type ScenarioResult struct {
	Name             string               `json:"name"`
	MonthlyPayment   float64              `json:"monthlyPayment"`
	Ledger           []MonthlyLedgerEntry `json:"ledger"`
	PayoffMonth      int                  `json:"payoffMonth"`
	FullyAmortized   bool                 `json:"fullyAmortized"`
	RemainingBalance float64              `json:"remainingBalance"`
	TotalInterest    float64              `json:"totalInterest"`
	TotalPaid        float64              `json:"totalPaid"`
	TotalExtraPaid   float64              `json:"totalExtraPaid"`
	PayoffDate       civil.Date           `json:"payoffDate"`
}

// AlignedMonth pairs the two scenarios' ledger entries for the same month. A
// scenario that has already paid off contributes a zero-balance entry.
type AlignedMonth struct {
	MonthIndex int                `json:"monthIndex"`
	Date       civil.Date         `json:"date"`
	Standard   MonthlyLedgerEntry `json:"standard"`
	Extra      MonthlyLedgerEntry `json:"extra"`
}

// ComparisonSummary is the outcome of comparing the standard schedule against
// an extra-payment policy over the same loan.
type ComparisonSummary struct {
	Terms         LoanTerms          `json:"terms"`
	Policy        ExtraPaymentPolicy `json:"policy"`
	BasePayment   float64            `json:"basePayment"`
	Standard      ScenarioResult     `json:"standard"`
	Extra         ScenarioResult     `json:"extra"`
	Months        []AlignedMonth     `json:"months"`
	InterestSaved float64            `json:"interestSaved"`
	MonthsSaved   int                `json:"monthsSaved"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// Err returns ErrNotFullyAmortized, wrapped with the scenario name, when either
// scenario ends the term with a balance. Callers that prefer a hard failure
// over the FullyAmortized flag can use it.
func (s *ComparisonSummary) Err() error {
	var errs []error
	for _, result := range []ScenarioResult{s.Standard, s.Extra} {
		if !result.FullyAmortized {
			errs = append(errs, fmt.Errorf("%s: %w", result.Name, ErrNotFullyAmortized))
		}
	}
	return errors.Join(errs...)
}

// Comparator runs the standard and extra-payment scenarios for a loan.
type Comparator struct {
	logger    *zap.Logger
	simulator *Simulator
}

// NewComparator creates a comparator that logs through logger.
func NewComparator(logger *zap.Logger) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{logger: logger, simulator: NewSimulator(logger)}
}

// Compare is a convenience wrapper around a Comparator without logging.
func Compare(terms LoanTerms, policy ExtraPaymentPolicy) (*ComparisonSummary, error) {
	return NewComparator(nil).Compare(terms, policy)
}

// Compare validates both inputs, simulates the standard and extra-payment
// ledgers and derives payoff dates and savings. Nothing is computed when the
// inputs are invalid.
func (c *Comparator) Compare(terms LoanTerms, policy ExtraPaymentPolicy) (*ComparisonSummary, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	basePayment, err := FixedPayment(terms.Principal, terms.AnnualRatePercent, terms.TermYears)
	if err != nil {
		return nil, err
	}

	summary := &ComparisonSummary{
		Terms:       terms,
		Policy:      policy,
		BasePayment: basePayment,
	}
	summary.Standard = c.runScenario(StandardScenario, terms, basePayment, nil)
	summary.Extra = c.runScenario(ExtraScenario, terms, basePayment, &policy)
	summary.Months = alignLedgers(terms.StartDate, summary.Standard.Ledger, summary.Extra.Ledger)
	summary.InterestSaved = summary.Standard.TotalInterest - summary.Extra.TotalInterest
	summary.MonthsSaved = summary.Standard.PayoffMonth - summary.Extra.PayoffMonth

	for _, result := range []ScenarioResult{summary.Standard, summary.Extra} {
		if result.FullyAmortized {
			continue
		}
		warning := fmt.Sprintf("%s scenario is not fully paid off within the %d-month term: %.2f remains",
			result.Name, terms.TotalPayments(), result.RemainingBalance)
		summary.Warnings = append(summary.Warnings, warning)
		c.logger.Warn(warning,
			zap.String("op", "loans.Compare"),
			zap.String("scenario", result.Name),
			zap.Float64("remainingBalance", result.RemainingBalance),
		)
	}

	c.logger.Debug("loan comparison computed",
		zap.String("op", "loans.Compare"),
		zap.Float64("basePayment", basePayment),
		zap.Int("standardPayoffMonth", summary.Standard.PayoffMonth),
		zap.Int("extraPayoffMonth", summary.Extra.PayoffMonth),
		zap.Float64("interestSaved", summary.InterestSaved),
	)

	return summary, nil
}

func (c *Comparator) runScenario(name string, terms LoanTerms, basePayment float64, policy *ExtraPaymentPolicy) ScenarioResult {
	totalPayments := terms.TotalPayments()
	ledger := c.simulator.Schedule(terms.Principal, terms.MonthlyRate(), totalPayments, basePayment, policy)

	result := ScenarioResult{
		Name:           name,
		MonthlyPayment: basePayment,
		Ledger:         ledger,
		PayoffMonth:    totalPayments,
	}
	if policy != nil {
		result.MonthlyPayment += policy.MonthlyExtra()
	}

	for _, entry := range ledger {
		result.TotalInterest += entry.InterestAccrued
		result.TotalExtraPaid += entry.ExtraPrincipal + entry.LumpSum
	}
	for _, entry := range ledger {
		if entry.ClosingBalance == 0 {
			result.PayoffMonth = entry.MonthIndex
			result.FullyAmortized = true
			break
		}
	}
	if len(ledger) > 0 {
		result.RemainingBalance = ledger[len(ledger)-1].ClosingBalance
	}

	result.TotalPaid = terms.Principal + result.TotalInterest
	result.PayoffDate = datetime.AddMonths(terms.StartDate, result.PayoffMonth)
	return result
}

func alignLedgers(start civil.Date, standard, extra []MonthlyLedgerEntry) []AlignedMonth {
	months := max(len(standard), len(extra))
	aligned := make([]AlignedMonth, months)
	for i := range aligned {
		index := i + 1
		aligned[i] = AlignedMonth{
			MonthIndex: index,
			Date:       datetime.AddMonths(start, index),
			Standard:   entryAt(standard, index),
			Extra:      entryAt(extra, index),
		}
	}
	return aligned
}

func entryAt(ledger []MonthlyLedgerEntry, index int) MonthlyLedgerEntry {
	if index <= len(ledger) {
		return ledger[index-1]
	}
	return MonthlyLedgerEntry{MonthIndex: index}
}
