// Package engine defines the search engine collaborator used by index handles
// and provides its bleve-backed implementation.
//
// The engine owns ranking, tokenization and the on-disk index format. Callers
// serialize mutation themselves: an Index is safe for concurrent readers, but
// writers must be exclusive with each other and with readers.
package engine

// FieldType is the value type of a schema field.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldString    FieldType = "string"
	FieldI64       FieldType = "i64"
	FieldU64       FieldType = "u64"
	FieldF64       FieldType = "f64"
	FieldBool      FieldType = "bool"
	FieldTimestamp FieldType = "timestamp"
	FieldPoint     FieldType = "point"
)

// Numeric reports whether values of this type are indexed as numbers.
func (t FieldType) Numeric() bool {
	switch t {
	case FieldI64, FieldU64, FieldF64, FieldTimestamp:
		return true
	}
	return false
}

// SchemaField describes one document field.
type SchemaField struct {
	Field   string    `json:"field"`
	Type    FieldType `json:"field_type"`
	Stored  bool      `json:"stored"`
	Indexed bool      `json:"indexed"`
	Facet   bool      `json:"facet,omitempty"`
	Boost   float64   `json:"boost,omitempty"`
}

// Similarity selects the scoring model.
type Similarity string

const (
	SimilarityBM25           Similarity = "bm25"
	SimilarityBM25F          Similarity = "bm25f"
	SimilarityBM25FProximity Similarity = "bm25f_proximity"
	SimilarityTFIDF          Similarity = "tfidf"
)

// Tokenizer selects how text fields and queries are split into terms.
type Tokenizer string

const (
	TokenizerUnicodeAlphanumeric       Tokenizer = "unicode_alphanumeric"
	TokenizerUnicodeAlphanumericFolded Tokenizer = "unicode_alphanumeric_folded"
	TokenizerASCIIAlphabetic           Tokenizer = "ascii_alphabetic"
	TokenizerWhitespace                Tokenizer = "whitespace"
	TokenizerCode                      Tokenizer = "code"
)

// AccessType is how the index files are accessed.
type AccessType string

const (
	AccessMmap AccessType = "mmap"
	AccessRAM  AccessType = "ram"
)

// Meta is the immutable identity of an index.
type Meta struct {
	ID         uint64     `json:"id"`
	Name       string     `json:"name"`
	Similarity Similarity `json:"similarity"`
	Tokenizer  Tokenizer  `json:"tokenizer"`
	AccessType AccessType `json:"access_type"`
}

func (m Meta) withDefaults() Meta {
	if m.Similarity == "" {
		m.Similarity = SimilarityBM25FProximity
	}
	if m.Tokenizer == "" {
		m.Tokenizer = TokenizerUnicodeAlphanumeric
	}
	if m.AccessType == "" {
		m.AccessType = AccessMmap
	}
	return m
}

// Document is a field name to value mapping.
type Document map[string]any

// IDDocument pairs a document with the id it replaces.
type IDDocument struct {
	ID       uint64   `json:"id"`
	Document Document `json:"document"`
}

// Synonym groups equivalent terms. When Multiway is false only the first
// term expands to the others.
type Synonym struct {
	Terms    []string `json:"terms"`
	Multiway bool     `json:"multiway"`
}

// QueryType combines the query terms.
type QueryType string

const (
	QueryUnion        QueryType = "union"
	QueryIntersection QueryType = "intersection"
	QueryPhrase       QueryType = "phrase"
	QueryNot          QueryType = "not"
)

// ResultType selects what a search computes.
type ResultType string

const (
	ResultCount     ResultType = "count"
	ResultTopK      ResultType = "topk"
	ResultTopKCount ResultType = "topk_count"
)

// NumericRange is a named half-open bucket [Min, Max). Nil bounds are open.
type NumericRange struct {
	Name string   `json:"name"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// QueryFacet requests facet counts for a field.
type QueryFacet struct {
	Field  string         `json:"field"`
	Prefix string         `json:"prefix,omitempty"`
	Length int            `json:"length,omitempty"`
	Ranges []NumericRange `json:"ranges,omitempty"`
}

// FacetFilter restricts results by facet field. String fields match any of
// Values; numeric fields match [Min, Max).
type FacetFilter struct {
	Field  string   `json:"field"`
	Values []string `json:"values,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ResultSort orders results by a facet field instead of score.
type ResultSort struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Highlight requests a snippet of Field with the query terms marked.
type Highlight struct {
	Field           string `json:"field"`
	Name            string `json:"name,omitempty"`
	FragmentNumber  int    `json:"fragment_number,omitempty"`
	FragmentSize    int    `json:"fragment_size,omitempty"`
	HighlightMarkup bool   `json:"highlight_markup"`
}

// DistanceUnit is kilometers or miles.
type DistanceUnit string

const (
	Kilometers DistanceUnit = "kilometers"
	Miles      DistanceUnit = "miles"
)

// DistanceField adds the distance between a point field and Base to hydrated
// documents under the name Distance.
type DistanceField struct {
	Field    string       `json:"field"`
	Distance string       `json:"distance"`
	Base     [2]float64   `json:"base"`
	Unit     DistanceUnit `json:"unit,omitempty"`
}

// Query is a fully resolved search.
type Query struct {
	Text         string
	Type         QueryType
	Offset       int
	Length       int
	ResultType   ResultType
	Realtime     bool
	FieldFilter  []string
	Facets       []QueryFacet
	FacetFilters []FacetFilter
	Sort         []ResultSort
}

// Hit is one ranked match.
type Hit struct {
	DocID uint64
	Score float64
}

// FacetValue is one bucket of a facet.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facet holds the buckets computed for one field.
type Facet struct {
	Field  string       `json:"field"`
	Total  int          `json:"total"`
	Values []FacetValue `json:"values"`
}

// Results is the raw outcome of a search before hydration.
type Results struct {
	Hits       []Hit
	Total      uint64
	QueryTerms []string
	Facets     map[string]Facet
}

// DocumentOptions shapes a hydrated document.
type DocumentOptions struct {
	Fields         []string
	DistanceFields []DistanceField
	Highlights     []Highlight
	QueryTerms     []string
}

// MinMax is the value range of a numeric facet field.
type MinMax struct {
	Min any `json:"min"`
	Max any `json:"max"`
}
