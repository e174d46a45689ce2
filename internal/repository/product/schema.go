package product

import (
	"github.com/kailas-cloud/catalogindex/internal/db"
	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// JSON paths of the indexed document, mirroring domain.EnrichedRecord.
const (
	pathGUID      = "$.guid"
	pathChannel   = "$.channel"
	pathEmbedding = "$.embedding"
)

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// FieldAlias is the schema alias of a localized text field ("name_fr").
func FieldAlias(field domain.TextField, loc domain.Locale) string {
	return string(field) + "_" + string(loc)
}

func textPath(field domain.TextField, loc domain.Locale) string {
	return "$.fields." + string(field) + "." + string(loc)
}

// buildIndex declares one TEXT sub-field per field and locale, the GUID and
// channel tags, and the fused vector. The French locale is stemmed by the
// index language; the others are indexed verbatim.
func buildIndex(cfg *Config) (*db.IndexDefinition, error) {
	b := db.NewIndex(cfg.Index).
		Prefix(cfg.Prefix).
		Language(cfg.Language).
		Tag(pathGUID, "guid").
		Tag(pathChannel, "channel")

	for _, field := range domain.Fields {
		weight := cfg.Weights[field]
		for _, loc := range domain.Locales {
			if loc == domain.LocaleFR {
				b.Text(textPath(field, loc), FieldAlias(field, loc), weight)
			} else {
				b.TextNoStem(textPath(field, loc), FieldAlias(field, loc), weight)
			}
		}
	}

	b.VectorHNSW(pathEmbedding, "embedding", cfg.Dimensions, db.DistanceCosine, cfg.HNSW.M, cfg.HNSW.EFConstruct)
	return b.Build()
}
