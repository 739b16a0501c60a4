package strategy

import "testing"

func TestStrategy_IsValid(t *testing.T) {
	tests := []struct {
		s    Strategy
		want bool
	}{
		{AverageVector, true},
		{BestScore, true},
		{"", false},
		{"discovery", false},
	}
	for _, tt := range tests {
		if got := tt.s.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestStrategy_NegativeOnlyFallback(t *testing.T) {
	if !AverageVector.NegativeOnlyFallback() {
		t.Error("average_vector must use the negative-only fallback")
	}
	if BestScore.NegativeOnlyFallback() {
		t.Error("best_score must handle negative-only requests natively")
	}
}

func TestDefault(t *testing.T) {
	if Default != AverageVector {
		t.Errorf("Default = %q, want %q", Default, AverageVector)
	}
}
