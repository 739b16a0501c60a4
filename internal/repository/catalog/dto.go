package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/point"
)

// recordToHash flattens a record into hash fields. The location and group key
// are copied out of the payload so the FT index can see them.
func recordToHash(rec point.Record, cfg Config) (map[string]string, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	fields := map[string]string{
		fieldVector:  db.VectorToBytes(rec.Vector),
		fieldPayload: string(payload),
	}
	if lat, lon, ok := rec.Payload.GeoPoint(cfg.LocationKey); ok {
		fields[db.FieldName(cfg.LocationKey)] = formatCoord(lon) + "," + formatCoord(lat)
	}
	if cfg.GroupKey != "" {
		if key, ok := rec.Payload.GroupKey(cfg.GroupKey); ok {
			fields[db.FieldName(cfg.GroupKey)] = key
		}
	}
	return fields, nil
}

func hashToRecord(id point.ID, h map[string]string, withVector bool) (point.Record, error) {
	rec := point.Record{ID: id}
	payload, err := decodePayload(h[fieldPayload])
	if err != nil {
		return point.Record{}, err
	}
	rec.Payload = payload
	if withVector {
		v, err := db.BytesToVector(h[fieldVector])
		if err != nil {
			return point.Record{}, fmt.Errorf("decode vector: %w", err)
		}
		rec.Vector = v
	}
	return rec, nil
}

// entryToPoint converts a KNN hit. Entries that cannot be decoded are reported, not skipped.
func (r *Repo) entryToPoint(e db.SearchEntry, withVector bool) (point.ScoredPoint, error) {
	id := point.ParseID(strings.TrimPrefix(e.Key, r.prefix))
	rec, err := hashToRecord(id, e.Fields, withVector)
	if err != nil {
		return point.ScoredPoint{}, fmt.Errorf("hit %s: %w", e.Key, err)
	}
	return point.ScoredPoint{ID: id, Score: e.Score, Vector: rec.Vector, Payload: rec.Payload}, nil
}

func decodePayload(s string) (point.Payload, error) {
	if s == "" {
		return point.Payload{}, nil
	}
	var p point.Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
