package request

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

func TestSearch_Validate(t *testing.T) {
	ok := Search{Vector: []float32{1}, Limit: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noVec := Search{Limit: 1}
	if err := noVec.Validate(); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("missing vector: got %v", err)
	}

	noLimit := Search{Vector: []float32{1}}
	if err := noLimit.Validate(); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Errorf("zero limit: got %v", err)
	}
}

func TestRecommend_Validate(t *testing.T) {
	pos := []point.Example{point.FromID(point.NumID(1))}
	neg := []point.Example{point.FromID(point.NumID(2))}

	tests := []struct {
		name    string
		req     Recommend
		wantErr error
	}{
		{"average with positives", Recommend{Positive: pos, Negative: neg, Strategy: strategy.AverageVector, Limit: 3}, nil},
		{"best score negative only", Recommend{Negative: neg, Strategy: strategy.BestScore, Limit: 3}, nil},
		{"average negative only", Recommend{Negative: neg, Strategy: strategy.AverageVector, Limit: 3}, domain.ErrInvalidQuery},
		{"no examples", Recommend{Strategy: strategy.BestScore, Limit: 3}, domain.ErrInvalidQuery},
		{"bad strategy", Recommend{Positive: pos, Strategy: "nope", Limit: 3}, domain.ErrInvalidQuery},
		{"zero limit", Recommend{Positive: pos, Strategy: strategy.BestScore}, domain.ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRecommend_ExampleIDs(t *testing.T) {
	r := Recommend{
		Positive: []point.Example{point.FromID(point.NumID(1)), point.FromVector([]float32{1})},
		Negative: []point.Example{point.FromID(point.StrID("x"))},
	}
	ids := r.ExampleIDs()
	if len(ids) != 2 || ids[0] != point.NumID(1) || ids[1] != point.StrID("x") {
		t.Errorf("ExampleIDs = %v", ids)
	}
}

func TestGroup_Enabled(t *testing.T) {
	if (Group{}).Enabled() {
		t.Error("zero group should be disabled")
	}
	if (Group{By: "cafe.slug"}).Enabled() {
		t.Error("group without size should be disabled")
	}
	if !(Group{By: "cafe.slug", Size: 1}).Enabled() {
		t.Error("group with key and size should be enabled")
	}
}
