package memory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kailas-cloud/discovery/internal/domain/point"
)

// maxLineSize bounds one fixture line; a 512-dim vector with payload fits well below it.
const maxLineSize = 4 << 20

type fixtureLine struct {
	ID      point.ID      `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload point.Payload `json:"payload"`
}

// ReadFixture parses JSON Lines of {"id", "vector", "payload"}. Blank lines are skipped.
func ReadFixture(r io.Reader) ([]point.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var out []point.Record
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fl fixtureLine
		if err := json.Unmarshal(line, &fl); err != nil {
			return nil, fmt.Errorf("fixture line %d: %w", n, err)
		}
		if fl.ID.IsZero() {
			return nil, fmt.Errorf("fixture line %d: missing id", n)
		}
		if len(fl.Vector) == 0 {
			return nil, fmt.Errorf("fixture line %d: missing vector", n)
		}
		out = append(out, point.Record{ID: fl.ID, Vector: fl.Vector, Payload: fl.Payload})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return out, nil
}

// LoadFixture reads a JSON Lines fixture file.
func LoadFixture(path string) ([]point.Record, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	return ReadFixture(f)
}
