package point

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a stored item. It is either an unsigned integer or a string
// (usually a UUID). Comparable, so it can be used as a map key.
type ID struct {
	num     uint64
	str     string
	numeric bool
}

// NumID creates a numeric id.
func NumID(n uint64) ID { return ID{num: n, numeric: true} }

// StrID creates a string id without normalization.
func StrID(s string) ID { return ID{str: s} }

// ParseID normalizes a textual id: canonical unsigned decimals become numeric ids,
// everything else stays a string id.
func ParseID(s string) ID {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil && strconv.FormatUint(n, 10) == s {
		return NumID(n)
	}
	return StrID(s)
}

// IsNum reports whether the id is numeric.
func (id ID) IsNum() bool { return id.numeric }

// Num returns the numeric value (0 for string ids).
func (id ID) Num() uint64 { return id.num }

// IsZero reports whether the id was never set.
func (id ID) IsZero() bool { return !id.numeric && id.str == "" }

// String renders the id as text.
func (id ID) String() string {
	if id.numeric {
		return strconv.FormatUint(id.num, 10)
	}
	return id.str
}

// MarshalJSON encodes numeric ids as JSON numbers and string ids as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(strconv.FormatUint(id.num, 10)), nil
	}
	return json.Marshal(id.str)
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		if s == "" {
			return fmt.Errorf("id must not be empty")
		}
		*id = ParseID(s)
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an unsigned integer or a string, got %s", b)
	}
	*id = NumID(n)
	return nil
}
