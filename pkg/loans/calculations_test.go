package loans

import (
	"errors"
	"math"
	"testing"
)

func TestFixedPayment(t *testing.T) {
	tests := []struct {
		name              string
		principal         float64
		annualRatePercent float64
		termYears         int
		expectedRange     []float64 // [min, max] expected range
	}{
		{
			name:              "Standard 30-year mortgage",
			principal:         240000,
			annualRatePercent: 6.0,
			termYears:         30,
			expectedRange:     []float64{1438, 1440}, // Around $1438.92
		},
		{
			name:              "5-year car loan",
			principal:         20000,
			annualRatePercent: 4.0,
			termYears:         5,
			expectedRange:     []float64{368, 369}, // Around $368.33
		},
		{
			name:              "20-year loan at 8 percent",
			principal:         500000,
			annualRatePercent: 8.0,
			termYears:         20,
			expectedRange:     []float64{4182.0, 4183.0}, // Around $4182.20
		},
		{
			name:              "High interest loan",
			principal:         10000,
			annualRatePercent: 18.0,
			termYears:         3,
			expectedRange:     []float64{361, 362}, // Around $361.52
		},
		{
			name:              "Maximum rate",
			principal:         1000,
			annualRatePercent: 100.0,
			termYears:         1,
			expectedRange:     []float64{140, 141}, // Around $140.10
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FixedPayment(tt.principal, tt.annualRatePercent, tt.termYears)
			if err != nil {
				t.Fatalf("FixedPayment() error = %v", err)
			}

			if result < tt.expectedRange[0] || result > tt.expectedRange[1] {
				t.Errorf("FixedPayment() = %.2f, expected range [%.2f, %.2f]",
					result, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestFixedPaymentZeroRate(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		termYears int
		expected  float64
	}{
		{"Even split", 120000, 10, 1000},
		{"Fractional split", 10000, 3, 10000.0 / 36},
		{"One year", 1200, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FixedPayment(tt.principal, 0, tt.termYears)
			if err != nil {
				t.Fatalf("FixedPayment() error = %v", err)
			}
			if math.IsNaN(result) || math.IsInf(result, 0) {
				t.Fatalf("FixedPayment() = %v, expected a finite payment", result)
			}
			if result != tt.expected {
				t.Errorf("FixedPayment() = %v, expected exactly %v", result, tt.expected)
			}
		})
	}
}

func TestFixedPaymentInvalidInput(t *testing.T) {
	tests := []struct {
		name              string
		principal         float64
		annualRatePercent float64
		termYears         int
		field             string
	}{
		{"Zero principal", 0, 5, 30, "principal"},
		{"Negative principal", -1, 5, 30, "principal"},
		{"NaN principal", math.NaN(), 5, 30, "principal"},
		{"Zero term", 1000, 5, 0, "termYears"},
		{"Negative term", 1000, 5, -3, "termYears"},
		{"Term above one hundred years", 1000, 5, 101, "termYears"},
		{"Term that overflows the month count", 1000, 5, math.MaxInt/6 + 1, "termYears"},
		{"Negative rate", 1000, -0.5, 30, "annualRate"},
		{"Rate above one hundred", 1000, 100.5, 30, "annualRate"},
		{"Infinite rate", 1000, math.Inf(1), 30, "annualRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FixedPayment(tt.principal, tt.annualRatePercent, tt.termYears)
			if err == nil {
				t.Fatal("FixedPayment() expected error but got none")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("FixedPayment() error = %v, expected ErrInvalidInput", err)
			}
			var inputErr *InvalidInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("FixedPayment() error type = %T, expected *InvalidInputError", err)
			}
			if inputErr.Field != tt.field {
				t.Errorf("InvalidInputError.Field = %s, expected %s", inputErr.Field, tt.field)
			}
		})
	}
}

func TestInterestPayment(t *testing.T) {
	tests := []struct {
		name           string
		openingBalance float64
		monthlyRate    float64
		expected       float64
	}{
		{
			name:           "Standard mortgage interest",
			openingBalance: 200000,
			monthlyRate:    MonthlyRate(6.0),
			expected:       1000.0, // 200000 * 0.06 / 12
		},
		{
			name:           "Car loan interest",
			openingBalance: 15000,
			monthlyRate:    MonthlyRate(4.5),
			expected:       56.25, // 15000 * 0.045 / 12
		},
		{
			name:           "Zero interest",
			openingBalance: 10000,
			monthlyRate:    0,
			expected:       0.0,
		},
		{
			name:           "Paid off balance accrues nothing",
			openingBalance: 0,
			monthlyRate:    MonthlyRate(24.0),
			expected:       0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InterestPayment(tt.openingBalance, tt.monthlyRate)

			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("InterestPayment() = %.2f, expected %.2f", result, tt.expected)
			}
		})
	}
}

func TestTotalPayments(t *testing.T) {
	if got := TotalPayments(20); got != 240 {
		t.Errorf("TotalPayments(20) = %d, expected 240", got)
	}
	if got := TotalPayments(1); got != 12 {
		t.Errorf("TotalPayments(1) = %d, expected 12", got)
	}
}
