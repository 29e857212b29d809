// Package optimizer tunes a scenario's extra payments so the loan is paid off
// within a target number of months.
package optimizer

import (
	"fmt"
	"math"

	"github.com/iwvelando/loan-simulator/internal/config"
	"github.com/iwvelando/loan-simulator/internal/forecast"
	"github.com/iwvelando/loan-simulator/pkg/constants"
	"github.com/iwvelando/loan-simulator/pkg/format"
	"github.com/iwvelando/loan-simulator/pkg/loans"
	"github.com/iwvelando/loan-simulator/pkg/mathutil"
	"github.com/iwvelando/loan-simulator/pkg/optimization"
	"go.uber.org/zap"
)

type Runner struct {
	logger *zap.Logger
	conf   *config.Configuration
}

type evaluation struct {
	value   float64
	summary *loans.ComparisonSummary
	target  int
}

func (e evaluation) feasible() bool {
	return e.summary.Extra.FullyAmortized && e.summary.Extra.PayoffMonth <= e.target
}

// Result summarizes optimizer adjustments keyed by scenario name.
type Result struct {
	Summaries map[string][]optimization.Summary
}

// Empty indicates whether any optimizer adjustments were produced.
func (r Result) Empty() bool {
	return len(r.Summaries) == 0
}

// Apply attaches optimizer summaries to the provided forecast results.
func (r Result) Apply(forecasts []forecast.Forecast) {
	if len(r.Summaries) == 0 {
		return
	}
	for i := range forecasts {
		summaries, ok := r.Summaries[forecasts[i].Name]
		if !ok {
			continue
		}
		forecasts[i].Optimizations = append(forecasts[i].Optimizations, summaries...)
	}
}

// Solution is the outcome of one goal seek.
type Solution struct {
	Policy     loans.ExtraPaymentPolicy
	Comparison *loans.ComparisonSummary
	Summary    optimization.Summary
}

// NewRunner constructs a Runner for the provided configuration.
func NewRunner(logger *zap.Logger, conf *config.Configuration) (*Runner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, conf: conf}, nil
}

// Run executes all optimizer directives and mutates the configuration in place
// so a later forecast uses the optimized amounts.
func (r *Runner) Run() (*Result, error) {
	summaries := make(map[string][]optimization.Summary)

	var terms loans.LoanTerms
	termsLoaded := false
	for i := range r.conf.Scenarios {
		scenario := &r.conf.Scenarios[i]
		if !scenario.Active || scenario.Optimize == nil {
			continue
		}
		if !termsLoaded {
			var err error
			terms, err = r.conf.Loan.ToLoanTerms()
			if err != nil {
				return nil, fmt.Errorf("optimizer: loan: %w", err)
			}
			termsLoaded = true
		}

		policy, err := scenario.ToPolicy()
		if err != nil {
			return nil, fmt.Errorf("optimizer: scenario %s: %w", scenario.Name, err)
		}
		solution, err := Solve(terms, policy, *scenario.Optimize)
		if err != nil {
			return nil, fmt.Errorf("optimizer: scenario %s: %w", scenario.Name, err)
		}

		scenario.ExtraPayments = config.FromPolicy(solution.Policy)
		summary := solution.Summary
		summary.TargetName = scenario.Name
		summaries[scenario.Name] = append(summaries[scenario.Name], summary)

		r.logger.Info("optimizer adjusted extra payment field",
			zap.String("op", "optimizer.Run"),
			zap.String("scenario", scenario.Name),
			zap.String("field", summary.Field),
			zap.Float64("original", summary.Original),
			zap.Float64("optimized", summary.Value),
			zap.Int("targetPayoffMonths", summary.TargetPayoffMonths),
			zap.Int("payoffMonth", summary.PayoffMonth),
			zap.Int("iterations", summary.Iterations),
			zap.Bool("converged", summary.Converged),
		)
	}

	return &Result{Summaries: summaries}, nil
}

// Solve finds the smallest value of the directive's field, within its bounds,
// that pays the loan off by TargetPayoffMonths. Payoff month never increases
// as either extra amount grows, so a bisection between an infeasible lower
// bound and a feasible upper bound converges on the threshold.
func Solve(terms loans.LoanTerms, policy loans.ExtraPaymentPolicy, directive config.OptimizerConfig) (*Solution, error) {
	if err := directive.Validate(); err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	minVal, maxVal := bounds(terms, directive)
	if minVal > maxVal {
		return nil, fmt.Errorf("optimizer minimum %.2f must not exceed maximum %.2f", minVal, maxVal)
	}

	original := fieldValue(policy, directive.Field)
	evaluate := func(value float64) (evaluation, error) {
		candidate := withFieldValue(policy, directive.Field, value)
		summary, err := loans.Compare(terms, candidate)
		if err != nil {
			return evaluation{}, err
		}
		return evaluation{value: value, summary: summary, target: directive.TargetPayoffMonths}, nil
	}

	lowerEval, err := evaluate(minVal)
	if err != nil {
		return nil, err
	}

	var (
		finalEval  = lowerEval
		iterations = 0
		converged  = true
		notes      []string
	)

	if !lowerEval.feasible() {
		upperEval, err := evaluate(maxVal)
		if err != nil {
			return nil, err
		}
		finalEval = upperEval

		if !upperEval.feasible() {
			converged = false
			notes = append(notes, fmt.Sprintf(
				"unable to pay off within %s using %s between %s and %s",
				format.Months(directive.TargetPayoffMonths),
				directive.Field,
				format.Currency(minVal),
				format.Currency(maxVal),
			))
		} else {
			lower := minVal
			upper := maxVal
			for iterations < directive.MaxIterations && upper-lower > directive.Tolerance {
				mid := lower + (upper-lower)/2
				evalMid, err := evaluate(mid)
				if err != nil {
					return nil, err
				}
				iterations++
				if evalMid.feasible() {
					finalEval = evalMid
					upper = mid
				} else {
					lower = mid
				}
			}

			if upper-lower > directive.Tolerance {
				converged = false
				notes = append(notes, fmt.Sprintf("stopped after %d iterations with %s still between %s and %s",
					iterations, directive.Field, format.Currency(lower), format.Currency(upper)))
			}

			// Round up to the cent so the reported amount still meets the target.
			rounded := math.Min(math.Ceil(upper*constants.DecimalPrecision)/constants.DecimalPrecision, maxVal)
			if rounded != finalEval.value {
				evalRounded, err := evaluate(rounded)
				if err != nil {
					return nil, err
				}
				if evalRounded.feasible() {
					finalEval = evalRounded
				}
			}
		}
	}

	chosen := withFieldValue(policy, directive.Field, finalEval.value)
	extra := finalEval.summary.Extra
	return &Solution{
		Policy:     chosen,
		Comparison: finalEval.summary,
		Summary: optimization.Summary{
			Scope:              "scenario",
			Field:              directive.Field,
			Original:           original,
			OriginalDisplay:    format.Currency(original),
			Value:              finalEval.value,
			ValueDisplay:       format.Currency(finalEval.value),
			TargetPayoffMonths: directive.TargetPayoffMonths,
			PayoffMonth:        extra.PayoffMonth,
			InterestSaved:      mathutil.Round(finalEval.summary.InterestSaved),
			Iterations:         iterations,
			Converged:          converged && finalEval.feasible(),
			Notes:              notes,
		},
	}, nil
}

// bounds defaults to searching from zero up to the principal, which pays any
// loan off in the first month it is applied.
func bounds(terms loans.LoanTerms, directive config.OptimizerConfig) (float64, float64) {
	minVal := 0.0
	if directive.Min != nil {
		minVal = *directive.Min
	}
	maxVal := terms.Principal
	if directive.Max != nil {
		maxVal = *directive.Max
	}
	return minVal, maxVal
}

func fieldValue(policy loans.ExtraPaymentPolicy, field string) float64 {
	switch field {
	case config.OptimizerFieldYearlyLumpSum:
		if !policy.AppliesYearly() {
			return 0
		}
		return policy.YearlyLumpSum
	default:
		return policy.MonthlyExtra()
	}
}

// withFieldValue sets the optimized amount and widens the mode so it applies.
func withFieldValue(policy loans.ExtraPaymentPolicy, field string, value float64) loans.ExtraPaymentPolicy {
	switch field {
	case config.OptimizerFieldYearlyLumpSum:
		if !policy.AppliesYearly() {
			policy.Mode = loans.ModeYearly
			if policy.MonthlyExtra() > 0 {
				policy.Mode = loans.ModeBoth
			}
		}
		policy.YearlyLumpSum = value
	default:
		if !policy.AppliesMonthly() {
			policy.Mode = loans.ModeMonthly
			if policy.AppliesYearly() && policy.YearlyLumpSum > 0 {
				policy.Mode = loans.ModeBoth
			}
		}
		policy.ExtraMonthlyAmount = value
	}
	return policy
}
