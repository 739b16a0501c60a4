package strategy

// Strategy selects how positive and negative examples are combined into a ranking.
type Strategy string

// Recommendation strategies.
const (
	// AverageVector searches with one synthetic vector built from example means.
	AverageVector Strategy = "average_vector"
	// BestScore rates every candidate against each example individually.
	BestScore Strategy = "best_score"
)

// Default is used when a request names no strategy.
const Default = AverageVector

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == AverageVector || s == BestScore
}

// NegativeOnlyFallback reports whether requests with only negative examples are
// answered by searching with the negated negative mean instead of the index's own
// recommendation. Only AverageVector needs it: an average over zero positives is undefined.
func (s Strategy) NegativeOnlyFallback() bool {
	return s == AverageVector
}
