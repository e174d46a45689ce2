package domain

// Locale is a catalog language code.
type Locale string

// Supported catalog locales.
const (
	LocaleFR Locale = "fr"
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
	LocaleGE Locale = "ge"
)

// Locales lists every locale indexed as a lexical sub-field.
var Locales = []Locale{LocaleFR, LocaleEN, LocaleES, LocaleGE}

// TextField is a textual record field.
type TextField string

// Embedded record fields.
const (
	FieldName        TextField = "name"
	FieldDescription TextField = "description"
)

// Fields lists the textual fields in embedding order.
var Fields = []TextField{FieldName, FieldDescription}

// LocalizedText maps a locale to its text.
type LocalizedText map[Locale]string

// Record is a raw catalog entry. Immutable once read.
type Record struct {
	GUID    string
	Channel string
	Fields  map[TextField]LocalizedText
}

// Text returns the text of a field in a locale, "" when absent.
func (r *Record) Text(field TextField, loc Locale) string {
	return r.Fields[field][loc]
}

// NormalizedRecord has every locale value replaced by a cleaned token string.
// Locales whose source was empty are absent.
type NormalizedRecord struct {
	GUID    string                      `json:"guid"`
	Channel string                      `json:"channel,omitempty"`
	Fields  map[TextField]LocalizedText `json:"fields"`
}

// Text returns the normalized text of a field in a locale, "" when absent.
func (r *NormalizedRecord) Text(field TextField, loc Locale) string {
	return r.Fields[field][loc]
}

// Embedding is a fixed-length vector. Nil is the explicit "none" marker.
type Embedding []float32

// IsNone reports whether the embedding is the "none" marker.
func (e Embedding) IsNone() bool { return e == nil }

// EnrichedRecord is ready for indexing.
type EnrichedRecord struct {
	NormalizedRecord
	Embedding Embedding `json:"embedding,omitempty"`
}
