package mcp

import (
	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	IndexID  uint64   `json:"index_id" jsonschema:"id of the index to search, see list_indices"`
	Query    string   `json:"query" jsonschema:"the search query; empty matches every document"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset   int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Fields   []string `json:"fields,omitempty" jsonschema:"stored fields to return, default all"`
	Realtime bool     `json:"realtime,omitempty" jsonschema:"include documents that are not yet committed"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query      string            `json:"query" jsonschema:"the query as executed"`
	Count      int               `json:"count" jsonschema:"number of results returned"`
	CountTotal uint64            `json:"count_total" jsonschema:"number of matching documents"`
	QueryTerms []string          `json:"query_terms,omitempty" jsonschema:"terms after synonym expansion"`
	Results    []engine.Document `json:"results" jsonschema:"hydrated documents in rank order"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	IndexID    uint64   `json:"index_id" jsonschema:"id of the index"`
	DocumentID uint64   `json:"document_id" jsonschema:"id of the document"`
	Fields     []string `json:"fields,omitempty" jsonschema:"stored fields to return, default all"`
}

// DocumentOutput wraps one stored document.
type DocumentOutput struct {
	DocumentID uint64          `json:"document_id"`
	Document   engine.Document `json:"document"`
}

// IndexStatsInput defines the input schema for the index_stats tool.
type IndexStatsInput struct {
	IndexID uint64 `json:"index_id" jsonschema:"id of the index"`
}

// ListIndicesInput defines the input schema for the list_indices tool (no parameters).
type ListIndicesInput struct{}

// ListIndicesOutput lists every index of the account.
type ListIndicesOutput struct {
	Indices []index.Stats `json:"indices"`
}

func (in SearchInput) request() index.SearchRequest {
	return index.SearchRequest{
		Query:    in.Query,
		Offset:   in.Offset,
		Length:   clampLimit(in.Limit, defaultLimit, 1, maxLimit),
		Fields:   in.Fields,
		Realtime: in.Realtime,
	}
}

func toSearchOutput(res *index.SearchResult) SearchOutput {
	out := SearchOutput{
		Query:      res.Query,
		Count:      res.Count,
		CountTotal: res.CountTotal,
		QueryTerms: res.QueryTerms,
		Results:    res.Results,
	}
	if out.Results == nil {
		out.Results = []engine.Document{}
	}
	return out
}
