// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures the result of a single optimization directive.
type Summary struct {
	Scope              string   `json:"scope"`
	TargetName         string   `json:"targetName"`
	Field              string   `json:"field"`
	Original           float64  `json:"original"`
	Value              float64  `json:"value"`
	TargetPayoffMonths int      `json:"targetPayoffMonths"`
	PayoffMonth        int      `json:"payoffMonth"`
	InterestSaved      float64  `json:"interestSaved"`
	Iterations         int      `json:"iterations"`
	Converged          bool     `json:"converged"`
	Notes              []string `json:"notes,omitempty"`
	OriginalDisplay    string   `json:"originalDisplay,omitempty"`
	ValueDisplay       string   `json:"valueDisplay,omitempty"`
}

// Headroom returns how many months earlier than the target the optimized
// value pays the loan off. It is negative when the target was missed.
func (s Summary) Headroom() int {
	return s.TargetPayoffMonths - s.PayoffMonth
}
