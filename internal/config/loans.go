package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/loan-simulator/pkg/datetime"
	"github.com/iwvelando/loan-simulator/pkg/loans"
)

// Loan indicates the loan every scenario is compared against.
type Loan struct {
	Principal  float64 `yaml:"principal" mapstructure:"principal" json:"principal"`
	AnnualRate float64 `yaml:"annualRate" mapstructure:"annualRate" json:"annualRate"` // percent, e.g. 8 for 8%
	TermYears  int     `yaml:"termYears" mapstructure:"termYears" json:"termYears"`
	StartDate  string  `yaml:"startDate" mapstructure:"startDate" json:"startDate"` // YYYY-MM-DD or YYYY-MM
}

// Scenario holds one extra-payment strategy and an optional optimizer
// directive that tunes it.
type Scenario struct {
	Name          string           `yaml:"name" mapstructure:"name" json:"name"`
	Active        bool             `yaml:"active" mapstructure:"active" json:"active"`
	ExtraPayments ExtraPayments    `yaml:"extraPayments" mapstructure:"extraPayments" json:"extraPayments"`
	Optimize      *OptimizerConfig `yaml:"optimize,omitempty" mapstructure:"optimize" json:"optimize,omitempty"`
}

// ExtraPayments is the config-file form of loans.ExtraPaymentPolicy. An empty
// mode is inferred from which amounts are set. An omitted lumpSumYears means
// one year; an explicit value, zero included, is validated as given.
type ExtraPayments struct {
	Mode               string  `yaml:"mode,omitempty" mapstructure:"mode" json:"mode,omitempty"`
	ExtraMonthlyAmount float64 `yaml:"extraMonthlyAmount,omitempty" mapstructure:"extraMonthlyAmount" json:"extraMonthlyAmount,omitempty"`
	YearlyLumpSum      float64 `yaml:"yearlyLumpSum,omitempty" mapstructure:"yearlyLumpSum" json:"yearlyLumpSum,omitempty"`
	LumpSumYears       *int    `yaml:"lumpSumYears,omitempty" mapstructure:"lumpSumYears" json:"lumpSumYears,omitempty"`
}

// ToLoanTerms converts the loan section into validated simulation terms.
func (loan Loan) ToLoanTerms() (loans.LoanTerms, error) {
	startDate, err := datetime.ParseDate(loan.StartDate)
	if err != nil {
		return loans.LoanTerms{}, fmt.Errorf("startDate: %w", err)
	}

	terms := loans.LoanTerms{
		Principal:         loan.Principal,
		AnnualRatePercent: loan.AnnualRate,
		TermYears:         loan.TermYears,
		StartDate:         startDate,
	}
	if err := terms.Validate(); err != nil {
		return loans.LoanTerms{}, err
	}
	return terms, nil
}

// ToPolicy converts the scenario's extra payments into a validated policy.
func (s Scenario) ToPolicy() (loans.ExtraPaymentPolicy, error) {
	return s.ExtraPayments.ToPolicy()
}

// ToPolicy converts the extra payments into a validated policy. A lump sum
// window left unset defaults to one year.
func (e ExtraPayments) ToPolicy() (loans.ExtraPaymentPolicy, error) {
	var mode loans.PaymentMode
	if strings.TrimSpace(e.Mode) == "" {
		mode = loans.InferPaymentMode(e.ExtraMonthlyAmount, e.YearlyLumpSum)
	} else {
		parsed, err := loans.ParsePaymentMode(e.Mode)
		if err != nil {
			return loans.ExtraPaymentPolicy{}, err
		}
		mode = parsed
	}

	lumpSumYears := 1
	if e.LumpSumYears != nil {
		lumpSumYears = *e.LumpSumYears
	}

	policy := loans.ExtraPaymentPolicy{
		Mode:               mode,
		ExtraMonthlyAmount: e.ExtraMonthlyAmount,
		YearlyLumpSum:      e.YearlyLumpSum,
		LumpSumYears:       lumpSumYears,
	}
	if err := policy.Validate(); err != nil {
		return loans.ExtraPaymentPolicy{}, err
	}
	return policy, nil
}

// FromPolicy renders a policy back into its config-file form.
func FromPolicy(policy loans.ExtraPaymentPolicy) ExtraPayments {
	return ExtraPayments{
		Mode:               string(policy.Mode),
		ExtraMonthlyAmount: policy.ExtraMonthlyAmount,
		YearlyLumpSum:      policy.YearlyLumpSum,
		LumpSumYears:       &policy.LumpSumYears,
	}
}
