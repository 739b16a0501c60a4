package catalog

import (
	"github.com/kailas-cloud/discovery/internal/db"
)

// Hash fields of a catalog item.
const (
	fieldVector  = "vector"
	fieldPayload = "payload"
	fieldScore   = "__vector_score"
)

// schema describes the catalog index: the location as GEO, the group key
// as TAG and the embedding as an HNSW cosine vector.
func schema(name, prefix string, cfg Config) *db.Schema {
	fields := []db.Field{db.GeoField(db.FieldName(cfg.LocationKey))}
	if cfg.GroupKey != "" {
		fields = append(fields, db.TagField(db.FieldName(cfg.GroupKey)))
	}
	fields = append(fields, db.HNSWField(fieldVector, db.HNSW{
		Dim:            cfg.Dimension,
		Distance:       db.Cosine,
		M:              cfg.HNSW.M,
		EFConstruction: cfg.HNSW.EFConstruct,
	}))
	return &db.Schema{Name: name, Prefix: prefix, Fields: fields}
}
