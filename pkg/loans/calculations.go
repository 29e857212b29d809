// Package loans implements fixed-rate amortization: the fixed monthly payment,
// the month-by-month ledger under standard or extra-payment policies, and the
// comparison of the two.
package loans

import (
	"math"

	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/mathutil"
)

// MonthlyRate converts an annual percentage rate into the monthly periodic rate.
func MonthlyRate(annualRatePercent float64) float64 {
	return mathutil.PercentToMonthlyRate(annualRatePercent)
}

// TotalPayments returns the number of monthly payments in a term of whole years.
func TotalPayments(termYears int) int {
	return termYears * constants.MonthsPerYear
}

// FixedPayment calculates the monthly payment for a loan using the standard amortization formula.
func FixedPayment(principal, annualRatePercent float64, termYears int) (float64, error) {
	if err := validateLoanAmounts(principal, annualRatePercent, termYears); err != nil {
		return 0, err
	}

	totalPayments := float64(TotalPayments(termYears))
	if annualRatePercent == 0 {
		// For zero interest, simply divide the principal by term
		return principal / totalPayments, nil
	}

	periodicInterestRate := MonthlyRate(annualRatePercent)
	return principal * periodicInterestRate / (1 - math.Pow(1+periodicInterestRate, -totalPayments)), nil
}

// InterestPayment calculates the interest accrued on an opening balance for one month.
func InterestPayment(openingBalance, monthlyRate float64) float64 {
	if openingBalance <= 0 {
		return 0
	}
	return openingBalance * monthlyRate
}
