package engine

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/letter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	// sourceField keeps the JSON of the accepted document for hydration.
	sourceField = "$source"
	// seqField holds the document id as a number for visibility filtering.
	seqField = "$seq"

	analyzerName = "seekhost_text"
)

// ValidateSchema checks field names, types and facet flags.
func ValidateSchema(schema []SchemaField) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]struct{}, len(schema))
	for i, f := range schema {
		if f.Field == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if strings.HasPrefix(f.Field, "$") || strings.HasPrefix(f.Field, "_") || strings.Contains(f.Field, ".") {
			return fmt.Errorf("schema field %q: names must not start with '$' or '_' or contain '.'", f.Field)
		}
		if _, dup := seen[f.Field]; dup {
			return fmt.Errorf("schema field %q is defined twice", f.Field)
		}
		seen[f.Field] = struct{}{}

		switch f.Type {
		case FieldText, FieldString, FieldBool, FieldPoint:
		case FieldI64, FieldU64, FieldF64, FieldTimestamp:
		default:
			return fmt.Errorf("schema field %q: unknown type %q", f.Field, f.Type)
		}
		if f.Facet && f.Type != FieldString && !f.Type.Numeric() {
			return fmt.Errorf("schema field %q: facets need a string or numeric type", f.Field)
		}
		if f.Boost < 0 {
			return fmt.Errorf("schema field %q: negative boost", f.Field)
		}
	}
	return nil
}

// validateMeta rejects unknown similarity and tokenizer names.
func validateMeta(meta Meta) error {
	switch meta.Similarity {
	case SimilarityBM25, SimilarityBM25F, SimilarityBM25FProximity, SimilarityTFIDF:
	default:
		return fmt.Errorf("unknown similarity %q", meta.Similarity)
	}
	switch meta.Tokenizer {
	case TokenizerUnicodeAlphanumeric, TokenizerUnicodeAlphanumericFolded,
		TokenizerASCIIAlphabetic, TokenizerWhitespace, TokenizerCode:
	default:
		return fmt.Errorf("unknown tokenizer %q", meta.Tokenizer)
	}
	switch meta.AccessType {
	case AccessMmap, AccessRAM:
	default:
		return fmt.Errorf("unknown access type %q", meta.AccessType)
	}
	return nil
}

// buildMapping translates meta and schema into a static bleve mapping.
// Fields outside the schema are ignored at index time.
func buildMapping(meta Meta, schema []SchemaField) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(analyzerName, analyzerConfig(meta.Tokenizer)); err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName
	im.ScoringModel = scoringModel(meta.Similarity)

	dm := bleve.NewDocumentStaticMapping()
	for _, f := range schema {
		dm.AddFieldMappingsAt(f.Field, fieldMapping(f))
	}

	src := bleve.NewTextFieldMapping()
	src.Analyzer = keyword.Name
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.IncludeTermVectors = false
	dm.AddFieldMappingsAt(sourceField, src)

	seq := bleve.NewNumericFieldMapping()
	seq.Store = false
	seq.IncludeInAll = false
	seq.DocValues = true
	dm.AddFieldMappingsAt(seqField, seq)

	im.DefaultMapping = dm
	return im, nil
}

func analyzerConfig(t Tokenizer) map[string]interface{} {
	cfg := map[string]interface{}{
		"type":          custom.Name,
		"token_filters": []string{lowercase.Name},
	}
	switch t {
	case TokenizerUnicodeAlphanumericFolded:
		cfg["tokenizer"] = unicode.Name
		cfg["char_filters"] = []string{asciifolding.Name}
	case TokenizerASCIIAlphabetic:
		cfg["tokenizer"] = letter.Name
	case TokenizerWhitespace:
		cfg["tokenizer"] = whitespace.Name
	case TokenizerCode:
		cfg["tokenizer"] = CodeTokenizerName
	default:
		cfg["tokenizer"] = unicode.Name
	}
	return cfg
}

// scoringModel maps every bm25 variant to bleve's bm25 model. Field weights
// are applied as query boosts instead of a separate bm25f model.
func scoringModel(s Similarity) string {
	if s == SimilarityTFIDF {
		return "tfidf"
	}
	return "bm25"
}

func fieldMapping(f SchemaField) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch f.Type {
	case FieldText:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.Store = f.Stored
		fm.IncludeTermVectors = true
		fm.Index = f.Indexed
		fm.DocValues = false
	case FieldString:
		fm = bleve.NewKeywordFieldMapping()
		fm.Store = false
		fm.Index = f.Indexed || f.Facet
		fm.DocValues = f.Facet
	case FieldBool:
		fm = bleve.NewBooleanFieldMapping()
		fm.Store = false
		fm.Index = f.Indexed || f.Facet
	case FieldPoint:
		fm = bleve.NewGeoPointFieldMapping()
		fm.Store = false
	default:
		fm = bleve.NewNumericFieldMapping()
		fm.Store = false
		fm.Index = true
		fm.DocValues = true
	}
	fm.IncludeInAll = false
	return fm
}
