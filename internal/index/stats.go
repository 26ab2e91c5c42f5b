package index

import (
	"context"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/pkg/version"
)

// Stats describes an index.
type Stats struct {
	ID              uint64                   `json:"id"`
	Name            string                   `json:"name"`
	Similarity      engine.Similarity        `json:"similarity"`
	Tokenizer       engine.Tokenizer         `json:"tokenizer"`
	Schema          []engine.SchemaField     `json:"schema"`
	IndexedDocCount uint64                   `json:"indexed_doc_count"`
	OperationsCount uint64                   `json:"operations_count"`
	QueryCount      uint64                   `json:"query_count"`
	Version         string                   `json:"version"`
	FacetsMinMax    map[string]engine.MinMax `json:"facets_minmax"`
}

// Stats reports counters and schema under shared access.
func (h *Handle) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ID:              h.meta.ID,
		Name:            h.meta.Name,
		Similarity:      h.meta.Similarity,
		Tokenizer:       h.meta.Tokenizer,
		OperationsCount: h.operations.Load(),
		QueryCount:      h.queries.Load(),
		Version:         version.Version,
	}
	err := h.read(func(idx engine.Index) error {
		st.Schema = idx.Schema()
		n, err := idx.DocCount()
		if err != nil {
			return engineError("count documents", err)
		}
		st.IndexedDocCount = n
		mm, err := idx.FacetsMinMax(ctx)
		if err != nil {
			return engineError("facet ranges", err)
		}
		st.FacetsMinMax = mm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DocCount returns the number of accepted documents.
func (h *Handle) DocCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := h.read(func(idx engine.Index) error {
		var err error
		n, err = idx.DocCount()
		return engineError("count documents", err)
	})
	return n, err
}
