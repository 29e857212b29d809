package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/loan-simulator/pkg/constants"
)

const (
	OptimizerFieldExtraMonthly  = "extraMonthlyAmount"
	OptimizerFieldYearlyLumpSum = "yearlyLumpSum"
)

// OptimizerConfig defines a single-parameter goal seek: the smallest value of
// Field that pays the loan off within TargetPayoffMonths.
type OptimizerConfig struct {
	Field              string   `yaml:"field,omitempty" mapstructure:"field" json:"field,omitempty"`
	TargetPayoffMonths int      `yaml:"targetPayoffMonths" mapstructure:"targetPayoffMonths" json:"targetPayoffMonths"`
	Min                *float64 `yaml:"min,omitempty" mapstructure:"min" json:"min,omitempty"`
	Max                *float64 `yaml:"max,omitempty" mapstructure:"max" json:"max,omitempty"`
	Tolerance          float64  `yaml:"tolerance,omitempty" mapstructure:"tolerance" json:"tolerance,omitempty"`
	MaxIterations      int      `yaml:"maxIterations,omitempty" mapstructure:"maxIterations" json:"maxIterations,omitempty"`
}

// CanonicalOptimizerField returns the canonical identifier for an optimizer field.
func CanonicalOptimizerField(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return OptimizerFieldExtraMonthly
	}
	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(trimmed))
	switch normalized {
	case "extramonthlyamount", "extramonthly", "monthly":
		return OptimizerFieldExtraMonthly
	case "yearlylumpsum", "lumpsum", "yearly":
		return OptimizerFieldYearlyLumpSum
	default:
		return trimmed
	}
}

// Normalize ensures defaults and canonical values are applied before validation.
// Bounds stay nil so the optimizer can derive them from the loan.
func (o *OptimizerConfig) Normalize() {
	if o == nil {
		return
	}
	o.Field = CanonicalOptimizerField(o.Field)
	if o.Tolerance <= 0 {
		o.Tolerance = constants.DefaultOptimizerTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = constants.DefaultOptimizerMaxIterations
	}
}

// Validate returns an error when the optimizer configuration is unsupported.
func (o *OptimizerConfig) Validate() error {
	if o == nil {
		return fmt.Errorf("optimizer configuration cannot be nil")
	}

	o.Normalize()

	switch o.Field {
	case OptimizerFieldExtraMonthly, OptimizerFieldYearlyLumpSum:
		// supported fields
	default:
		return fmt.Errorf("optimizer field %q is not supported", o.Field)
	}
	if o.TargetPayoffMonths <= 0 {
		return fmt.Errorf("optimizer targetPayoffMonths must be positive, got %d", o.TargetPayoffMonths)
	}
	if o.Min != nil && *o.Min < 0 {
		return fmt.Errorf("optimizer minimum %.2f must not be negative", *o.Min)
	}
	if o.Min != nil && o.Max != nil && *o.Min >= *o.Max {
		return fmt.Errorf("optimizer minimum %.2f must be less than maximum %.2f", *o.Min, *o.Max)
	}

	return nil
}
