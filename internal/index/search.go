package index

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/seekhost/internal/engine"
)

// DefaultLength is used when a request asks for no results.
const DefaultLength = 10

// Synthetic fields added to every hydrated hit.
const (
	FieldID    = "_id"
	FieldScore = "_score"
)

// SearchRequest describes one search.
type SearchRequest struct {
	Query          string                 `json:"query"`
	QueryType      engine.QueryType       `json:"query_type_default,omitempty"`
	Offset         int                    `json:"offset"`
	Length         int                    `json:"length"`
	ResultType     engine.ResultType      `json:"result_type,omitempty"`
	Realtime       bool                   `json:"realtime,omitempty"`
	FieldFilter    []string               `json:"field_filter,omitempty"`
	Fields         []string               `json:"fields,omitempty"`
	DistanceFields []engine.DistanceField `json:"distance_fields,omitempty"`
	QueryFacets    []engine.QueryFacet    `json:"query_facets,omitempty"`
	FacetFilter    []engine.FacetFilter   `json:"facet_filter,omitempty"`
	ResultSort     []engine.ResultSort    `json:"result_sort,omitempty"`
	Highlights     []engine.Highlight     `json:"highlights,omitempty"`
}

func (r SearchRequest) engineQuery(defaultLength int) engine.Query {
	qt := r.QueryType
	if qt == "" {
		qt = engine.QueryIntersection
	}
	rt := r.ResultType
	if rt == "" {
		rt = engine.ResultTopKCount
	}
	length := r.Length
	if length <= 0 {
		length = defaultLength
	}
	return engine.Query{
		Text:         r.Query,
		Type:         qt,
		Offset:       r.Offset,
		Length:       length,
		ResultType:   rt,
		Realtime:     r.Realtime,
		FieldFilter:  r.FieldFilter,
		Facets:       r.QueryFacets,
		FacetFilters: r.FacetFilter,
		Sort:         r.ResultSort,
	}
}

// SearchResult is the response of Search. Count is the number of returned
// results; CountTotal the number of matches.
type SearchResult struct {
	Time        int64                   `json:"time"`
	Query       string                  `json:"query"`
	Offset      int                     `json:"offset"`
	Length      int                     `json:"length"`
	Count       int                     `json:"count"`
	CountTotal  uint64                  `json:"count_total"`
	QueryTerms  []string                `json:"query_terms"`
	Results     []engine.Document       `json:"results"`
	Facets      map[string]engine.Facet `json:"facets"`
	Suggestions []string                `json:"suggestions"`
}

// GetDocumentRequest shapes a single hydrated document.
type GetDocumentRequest struct {
	QueryTerms     []string               `json:"query_terms,omitempty"`
	Highlights     []engine.Highlight     `json:"highlights,omitempty"`
	Fields         []string               `json:"fields,omitempty"`
	DistanceFields []engine.DistanceField `json:"distance_fields,omitempty"`
}

func (r GetDocumentRequest) options() engine.DocumentOptions {
	return engine.DocumentOptions{
		Fields:         r.Fields,
		DistanceFields: r.DistanceFields,
		Highlights:     r.Highlights,
		QueryTerms:     r.QueryTerms,
	}
}

// Search ranks under shared access, then hydrates each hit in rank order.
// Hydration takes shared access per hit, so a document deleted in between is
// dropped from the page without failing the search.
func (h *Handle) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()
	q := req.engineQuery(h.length)

	var raw *engine.Results
	var stored bool
	err := h.read(func(idx engine.Index) error {
		var err error
		raw, err = idx.Search(ctx, q)
		stored = idx.HasStoredFields()
		return engineError("search", err)
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start).Nanoseconds()
	h.queries.Add(1)

	var results []engine.Document
	if stored {
		results = h.hydrate(ctx, raw.Hits, engine.DocumentOptions{
			Fields:         req.Fields,
			DistanceFields: req.DistanceFields,
			Highlights:     req.Highlights,
			QueryTerms:     raw.QueryTerms,
		})
	} else {
		results = make([]engine.Document, 0, len(raw.Hits))
		for _, hit := range raw.Hits {
			results = append(results, engine.Document{FieldID: hit.DocID, FieldScore: hit.Score})
		}
	}

	slog.Debug("search_complete",
		slog.Uint64("index_id", h.meta.ID),
		slog.Int("results", len(results)),
		slog.Uint64("total", raw.Total),
		slog.Int64("time_ns", elapsed))

	return &SearchResult{
		Time:        elapsed,
		Query:       req.Query,
		Offset:      req.Offset,
		Length:      q.Length,
		Count:       len(results),
		CountTotal:  raw.Total,
		QueryTerms:  raw.QueryTerms,
		Results:     results,
		Facets:      raw.Facets,
		Suggestions: []string{},
	}, nil
}

// hydrate loads hits on a bounded worker pool. Each worker writes its own
// rank slot; failed slots stay nil and are skipped.
func (h *Handle) hydrate(ctx context.Context, hits []engine.Hit, opts engine.DocumentOptions) []engine.Document {
	slots := make([]engine.Document, len(hits))

	var g errgroup.Group
	g.SetLimit(h.workers)
	for i, hit := range hits {
		g.Go(func() error {
			doc, ok := h.document(ctx, hit.DocID, opts)
			if !ok {
				slog.Debug("hydration_skipped", slog.Uint64("index_id", h.meta.ID), slog.Uint64("doc_id", hit.DocID))
				return nil
			}
			doc[FieldID] = hit.DocID
			doc[FieldScore] = hit.Score
			slots[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]engine.Document, 0, len(hits))
	for _, doc := range slots {
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

// GetDocument hydrates one document. It reports false when the index keeps
// no stored fields, is closed, or id does not resolve.
func (h *Handle) GetDocument(ctx context.Context, id uint64, req GetDocumentRequest) (engine.Document, bool) {
	return h.document(ctx, id, req.options())
}

// document returns a private copy so callers may add fields to it.
func (h *Handle) document(ctx context.Context, id uint64, opts engine.DocumentOptions) (engine.Document, bool) {
	cacheable := h.docs != nil && len(opts.Highlights) == 0 && len(opts.DistanceFields) == 0
	key := cacheKey{id: id}.withFields(opts.Fields)

	var doc engine.Document
	err := h.read(func(idx engine.Index) error {
		if !idx.HasStoredFields() {
			return engine.ErrDocumentNotFound
		}
		if cacheable {
			if cached, ok := h.docs.Get(key); ok {
				doc = cached
				return nil
			}
		}
		var err error
		doc, err = idx.GetDocument(ctx, id, opts)
		if err == nil && cacheable {
			h.docs.Add(key, doc)
		}
		return err
	})
	if err != nil {
		return nil, false
	}

	out := make(engine.Document, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}
