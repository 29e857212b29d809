package loans

import (
	"fmt"
	"iter"
	"slices"

	"github.com/iwvelando/loan-simulator/pkg/mathutil"
	"go.uber.org/zap"
)

// MonthlyLedgerEntry is one month of one scenario's amortization ledger.
// PrincipalPaid is the sum of ScheduledPrincipal, ExtraPrincipal and LumpSum.
type MonthlyLedgerEntry struct {
	MonthIndex         int     `json:"monthIndex"`
	OpeningBalance     float64 `json:"openingBalance"`
	InterestAccrued    float64 `json:"interestAccrued"`
	PrincipalPaid      float64 `json:"principalPaid"`
	ClosingBalance     float64 `json:"closingBalance"`
	ScheduledPrincipal float64 `json:"scheduledPrincipal"`
	ExtraPrincipal     float64 `json:"extraPrincipal"`
	LumpSum            float64 `json:"lumpSum"`
}

// Payment returns the cash paid that month: interest plus all principal.
func (e MonthlyLedgerEntry) Payment() float64 {
	return e.InterestAccrued + e.PrincipalPaid
}

// Simulator walks a loan balance month by month.
type Simulator struct {
	logger *zap.Logger
}

// NewSimulator creates a new simulator instance
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger}
}

// Simulate returns the ledger as a lazy sequence starting at month 1. The
// sequence ends after totalPayments months or in the month the balance reaches
// zero, whichever comes first. Every range over the sequence starts again from
// principal. A nil policy is the standard schedule.
func (s *Simulator) Simulate(principal, monthlyRate float64, totalPayments int, basePayment float64,
	policy *ExtraPaymentPolicy) iter.Seq[MonthlyLedgerEntry] {
	return func(yield func(MonthlyLedgerEntry) bool) {
		balance := principal
		for month := 1; month <= totalPayments && balance > 0; month++ {
			entry := s.nextEntry(month, balance, monthlyRate, basePayment, policy)
			if !yield(entry) {
				return
			}
			balance = entry.ClosingBalance
		}
	}
}

// Schedule collects the full ledger produced by Simulate.
func (s *Simulator) Schedule(principal, monthlyRate float64, totalPayments int, basePayment float64,
	policy *ExtraPaymentPolicy) []MonthlyLedgerEntry {
	return slices.Collect(s.Simulate(principal, monthlyRate, totalPayments, basePayment, policy))
}

func (s *Simulator) nextEntry(month int, opening, monthlyRate, basePayment float64,
	policy *ExtraPaymentPolicy) MonthlyLedgerEntry {
	entry := MonthlyLedgerEntry{MonthIndex: month, OpeningBalance: opening}
	if opening <= 0 {
		return entry
	}

	entry.InterestAccrued = InterestPayment(opening, monthlyRate)

	extraMonthly := 0.0
	if policy != nil {
		extraMonthly = policy.MonthlyExtra()
	}

	// A payment that does not cover the interest leaves the balance where it
	// was; it never grows.
	regular := mathutil.Clamp(basePayment+extraMonthly-entry.InterestAccrued, 0, opening)
	entry.ScheduledPrincipal = mathutil.Clamp(basePayment-entry.InterestAccrued, 0, regular)
	entry.ExtraPrincipal = regular - entry.ScheduledPrincipal

	if policy != nil {
		if lump := policy.LumpSumFor(month); lump > 0 {
			entry.LumpSum = mathutil.Clamp(lump, 0, opening-regular)
			s.logger.Debug(fmt.Sprintf("month %d: applying lump sum %.2f", month, entry.LumpSum),
				zap.String("op", "loans.Simulate"),
				zap.Float64("requested", lump),
			)
		}
	}

	entry.PrincipalPaid = regular + entry.LumpSum
	entry.ClosingBalance = opening - entry.PrincipalPaid
	if mathutil.IsSettled(entry.ClosingBalance) {
		// We will get machine error otherwise so just settle the residual.
		entry.ScheduledPrincipal += entry.ClosingBalance
		entry.PrincipalPaid = opening
		entry.ClosingBalance = 0
	}

	return entry
}
