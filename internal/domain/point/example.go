package point

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Example is a positive or negative recommendation signal: a stored item id or a raw vector.
type Example struct {
	id     ID
	vector []float32
}

// FromID creates an example that refers to a stored item.
func FromID(id ID) Example { return Example{id: id} }

// FromVector creates an example carrying a raw vector.
func FromVector(v []float32) Example { return Example{vector: v} }

// IsVector reports whether the example carries a raw vector.
func (e Example) IsVector() bool { return e.vector != nil }

// ID returns the referenced item id (zero for vector examples).
func (e Example) ID() ID { return e.id }

// Vector returns the raw vector (nil for id examples).
func (e Example) Vector() []float32 { return e.vector }

// CloneExamples copies examples together with their raw vectors.
func CloneExamples(examples []Example) []Example {
	if examples == nil {
		return nil
	}
	out := make([]Example, len(examples))
	for i, e := range examples {
		out[i] = Example{id: e.id, vector: slices.Clone(e.vector)}
	}
	return out
}

// MarshalJSON encodes the example as an id or a number array.
func (e Example) MarshalJSON() ([]byte, error) {
	if e.IsVector() {
		return json.Marshal(e.vector)
	}
	return e.id.MarshalJSON()
}

// UnmarshalJSON accepts an id (number or string) or an array of numbers.
func (e *Example) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var v []float32
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("decode vector example: %w", err)
		}
		if len(v) == 0 {
			return fmt.Errorf("vector example must not be empty")
		}
		*e = FromVector(v)
		return nil
	}
	var id ID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	*e = FromID(id)
	return nil
}

// Split separates id examples from raw vector examples, keeping their order.
func Split(examples []Example) (ids []ID, vectors [][]float32) {
	for _, e := range examples {
		if e.IsVector() {
			vectors = append(vectors, e.vector)
		} else {
			ids = append(ids, e.id)
		}
	}
	return ids, vectors
}

// IDs returns the ids referenced by id examples.
func IDs(examples []Example) []ID {
	ids, _ := Split(examples)
	return ids
}
