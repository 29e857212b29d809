package loans

import (
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/iwvelando/loan-simulator/pkg/constants"
)

// LoanTerms holds the immutable parameters of a fixed-rate, monthly-payment loan.
type LoanTerms struct {
	Principal         float64    `json:"principal" yaml:"principal"`
	AnnualRatePercent float64    `json:"annualRate" yaml:"annualRate"`
	TermYears         int        `json:"termYears" yaml:"termYears"`
	StartDate         civil.Date `json:"startDate" yaml:"startDate"`
}

// Validate rejects terms that cannot describe an amortizing loan.
func (t LoanTerms) Validate() error {
	if err := validateLoanAmounts(t.Principal, t.AnnualRatePercent, t.TermYears); err != nil {
		return err
	}
	if !t.StartDate.IsValid() {
		return invalidInput("startDate", t.StartDate, "must be a valid calendar date")
	}
	return nil
}

// MonthlyRate returns the periodic rate applied to the opening balance each month.
func (t LoanTerms) MonthlyRate() float64 {
	return MonthlyRate(t.AnnualRatePercent)
}

// TotalPayments returns the number of scheduled monthly payments.
func (t LoanTerms) TotalPayments() int {
	return TotalPayments(t.TermYears)
}

func validateLoanAmounts(principal, annualRatePercent float64, termYears int) error {
	if math.IsNaN(principal) || math.IsInf(principal, 0) {
		return invalidInput("principal", principal, "must be a finite number")
	}
	if principal <= 0 {
		return invalidInput("principal", principal, "must be positive")
	}
	if termYears <= 0 {
		return invalidInput("termYears", termYears, "must be positive")
	}
	if termYears > constants.MaxTermYears {
		return invalidInput("termYears", termYears,
			fmt.Sprintf("must not exceed %d years", constants.MaxTermYears))
	}
	if math.IsNaN(annualRatePercent) || math.IsInf(annualRatePercent, 0) {
		return invalidInput("annualRate", annualRatePercent, "must be a finite number")
	}
	if annualRatePercent < 0 {
		return invalidInput("annualRate", annualRatePercent, "must not be negative")
	}
	if annualRatePercent > constants.MaxAnnualRatePercent {
		return invalidInput("annualRate", annualRatePercent,
			fmt.Sprintf("must not exceed %.0f percent", constants.MaxAnnualRatePercent))
	}
	return nil
}

// PaymentMode selects which extra payments a policy applies.
type PaymentMode string

const (
	// ModeMonthly adds a fixed amount to every monthly payment.
	ModeMonthly PaymentMode = "monthly"
	// ModeYearly adds a lump sum on each of the first N loan anniversaries.
	ModeYearly PaymentMode = "yearly"
	// ModeBoth applies the monthly extra and the yearly lump sum.
	ModeBoth PaymentMode = "both"
)

// ParsePaymentMode accepts the canonical names plus the "...only" spellings,
// ignoring case, spaces, dashes and underscores.
func ParsePaymentMode(value string) (PaymentMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	switch normalized {
	case "monthly", "monthlyonly":
		return ModeMonthly, nil
	case "yearly", "yearlyonly", "annual", "annually":
		return ModeYearly, nil
	case "both":
		return ModeBoth, nil
	default:
		return "", invalidInput("mode", value, "expected monthly, yearly or both")
	}
}

// InferPaymentMode picks the mode implied by which amounts are set. It is used
// when a caller supplies amounts without naming a mode.
func InferPaymentMode(extraMonthly, yearlyLumpSum float64) PaymentMode {
	switch {
	case extraMonthly > 0 && yearlyLumpSum > 0:
		return ModeBoth
	case yearlyLumpSum > 0:
		return ModeYearly
	default:
		return ModeMonthly
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m PaymentMode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PaymentMode) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ExtraPaymentPolicy describes the additional principal a borrower pays on top
// of the fixed monthly payment.
type ExtraPaymentPolicy struct {
	Mode               PaymentMode `json:"mode" yaml:"mode"`
	ExtraMonthlyAmount float64     `json:"extraMonthlyAmount" yaml:"extraMonthlyAmount"`
	YearlyLumpSum      float64     `json:"yearlyLumpSum" yaml:"yearlyLumpSum"`
	LumpSumYears       int         `json:"lumpSumYears" yaml:"lumpSumYears"`
}

// Validate rejects negative amounts, unknown modes and a lump sum window
// shorter than one year.
func (p ExtraPaymentPolicy) Validate() error {
	switch p.Mode {
	case ModeMonthly, ModeYearly, ModeBoth:
	default:
		return invalidInput("mode", p.Mode, "expected monthly, yearly or both")
	}
	if math.IsNaN(p.ExtraMonthlyAmount) || math.IsInf(p.ExtraMonthlyAmount, 0) || p.ExtraMonthlyAmount < 0 {
		return invalidInput("extraMonthlyAmount", p.ExtraMonthlyAmount, "must be a non-negative number")
	}
	if math.IsNaN(p.YearlyLumpSum) || math.IsInf(p.YearlyLumpSum, 0) || p.YearlyLumpSum < 0 {
		return invalidInput("yearlyLumpSum", p.YearlyLumpSum, "must be a non-negative number")
	}
	if p.LumpSumYears < 1 {
		return invalidInput("lumpSumYears", p.LumpSumYears, "must be at least 1")
	}
	return nil
}

// AppliesMonthly reports whether the monthly extra amount is in effect.
func (p ExtraPaymentPolicy) AppliesMonthly() bool {
	return p.Mode == ModeMonthly || p.Mode == ModeBoth
}

// AppliesYearly reports whether the yearly lump sum is in effect.
func (p ExtraPaymentPolicy) AppliesYearly() bool {
	return p.Mode == ModeYearly || p.Mode == ModeBoth
}

// MonthlyExtra returns the extra amount added to every payment, or 0 when the
// mode ignores it.
func (p ExtraPaymentPolicy) MonthlyExtra() float64 {
	if !p.AppliesMonthly() {
		return 0
	}
	return p.ExtraMonthlyAmount
}

// LumpSumFor returns the lump sum due in the given 1-based month: only on
// anniversaries (month 12, 24, ...) up to and including year LumpSumYears.
func (p ExtraPaymentPolicy) LumpSumFor(month int) float64 {
	if !p.AppliesYearly() || month <= 0 || month%constants.MonthsPerYear != 0 {
		return 0
	}
	if month/constants.MonthsPerYear > p.LumpSumYears {
		return 0
	}
	return p.YearlyLumpSum
}

// IsZero reports whether the policy never changes a ledger.
func (p ExtraPaymentPolicy) IsZero() bool {
	return p.MonthlyExtra() == 0 && (!p.AppliesYearly() || p.YearlyLumpSum == 0)
}
