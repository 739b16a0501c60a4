package db

import (
	"errors"
	"fmt"
	"strconv"
)

// FieldKind is the FT attribute type of a schema field.
type FieldKind string

// Supported field kinds.
const (
	KindTag    FieldKind = "TAG"
	KindGeo    FieldKind = "GEO"
	KindVector FieldKind = "VECTOR"
)

// Distance is the vector similarity metric.
type Distance string

// Supported distances.
const (
	Cosine Distance = "COSINE"
	L2     Distance = "L2"
	IP     Distance = "IP"
)

// HNSW parameters. Zero M or EFConstruction keeps the server default.
type HNSW struct {
	Dim            int
	Distance       Distance
	M              int
	EFConstruction int
}

// Field is a single hash attribute indexed by FT.CREATE.
type Field struct {
	Name string
	Kind FieldKind
	HNSW *HNSW // set for KindVector only
}

// TagField indexes an exact-match attribute.
func TagField(name string) Field { return Field{Name: name, Kind: KindTag} }

// GeoField indexes a "lon,lat" attribute.
func GeoField(name string) Field { return Field{Name: name, Kind: KindGeo} }

// HNSWField indexes a FLOAT32 vector attribute with an HNSW graph.
func HNSWField(name string, p HNSW) Field {
	if p.Distance == "" {
		p.Distance = Cosine
	}
	return Field{Name: name, Kind: KindVector, HNSW: &p}
}

// Schema describes an FT index over hashes sharing a key prefix.
type Schema struct {
	Name   string
	Prefix string
	Fields []Field
}

// Validate reports the first structural problem of the schema.
func (s *Schema) Validate() error {
	if !IsValidIdentifier(s.Name) {
		return fmt.Errorf("index name %q: must match [a-zA-Z0-9_:-]+", s.Name)
	}
	if len(s.Fields) == 0 {
		return errors.New("schema has no fields")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("field name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case KindTag, KindGeo:
		case KindVector:
			if f.HNSW == nil || f.HNSW.Dim <= 0 {
				return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
			}
		default:
			return fmt.Errorf("field %q: unsupported kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments that follow the command name.
func (s *Schema) Args() ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	args := []string{s.Name, "ON", "HASH"}
	if s.Prefix != "" {
		args = append(args, "PREFIX", "1", s.Prefix)
	}
	args = append(args, "SCHEMA")

	for _, f := range s.Fields {
		args = append(args, f.Name, string(f.Kind))
		if f.Kind != KindVector {
			continue
		}
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.HNSW.Dim),
			"DISTANCE_METRIC", string(f.HNSW.Distance),
		}
		if f.HNSW.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.HNSW.M))
		}
		if f.HNSW.EFConstruction > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.HNSW.EFConstruction))
		}
		args = append(args, "HNSW", strconv.Itoa(len(attrs)))
		args = append(args, attrs...)
	}
	return args, nil
}

// FieldName turns a dotted payload path into an attribute name.
// "cafe.location" -> "cafe_location".
func FieldName(path string) string {
	out := []byte(path)
	for i, c := range out {
		if !isWordByte(c) {
			out[i] = '_'
		}
	}
	return string(out)
}

// IsValidIdentifier reports whether s is a non-empty [a-zA-Z0-9_:-]+ string.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; !isWordByte(c) && c != ':' && c != '-' {
			return false
		}
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
