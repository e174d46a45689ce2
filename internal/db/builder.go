package db

import (
	"strconv"
	"strings"
)

// IndexBuilder is a fluent builder for JSON FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index over JSON documents.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{
		def: IndexDefinition{
			Name:        name,
			StorageType: StorageJSON,
		},
	}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Language sets the default stemming language of TEXT fields.
func (b *IndexBuilder) Language(lang string) *IndexBuilder {
	b.def.Language = lang
	return b
}

// Tag adds a TAG field at path, exposed as alias.
func (b *IndexBuilder) Tag(path, alias string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:  path,
		Alias: alias,
		Type:  IndexFieldTag,
	})
	return b
}

// Text adds a stemmed TEXT field at path, exposed as alias.
func (b *IndexBuilder) Text(path, alias string, weight float64) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:       path,
		Alias:      alias,
		Type:       IndexFieldText,
		TextWeight: weight,
	})
	return b
}

// TextNoStem adds a TEXT field whose terms are indexed verbatim.
func (b *IndexBuilder) TextNoStem(path, alias string, weight float64) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:       path,
		Alias:      alias,
		Type:       IndexFieldText,
		TextWeight: weight,
		TextNoStem: true,
	})
	return b
}

// VectorHNSW adds a FLOAT32 VECTOR field with HNSW algorithm.
func (b *IndexBuilder) VectorHNSW(path, alias string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:              path,
		Alias:             alias,
		Type:              IndexFieldVector,
		VectorAlgo:        VectorHNSW,
		VectorDim:         dim,
		VectorDistance:    distance,
		VectorM:           m,
		VectorEFConstruct: efConstruct,
	})
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name}
	if idx.StorageType != "" {
		parts = append(parts, "ON", string(idx.StorageType))
	}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		parts = append(parts, idx.Prefixes...)
	}
	if idx.Language != "" {
		parts = append(parts, "LANGUAGE", idx.Language)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldText:
			parts = append(parts, "TEXT")
			if f.TextNoStem {
				parts = append(parts, "NOSTEM")
			}
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo), "DIM", strconv.Itoa(f.VectorDim))
		}
	}
	return strings.Join(parts, " ")
}
