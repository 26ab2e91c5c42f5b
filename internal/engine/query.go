package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// prefixFacetScan is how many terms are fetched before a prefix filter is applied.
const prefixFacetScan = 1000

// Search runs q and returns ranked ids with totals and facets.
func (b *bleveIndex) Search(ctx context.Context, q Query) (*Results, error) {
	if b.closed {
		return nil, ErrClosed
	}

	groups := b.resolveTerms(q.Text)
	bq, err := b.buildQuery(q, groups)
	if err != nil {
		return nil, err
	}

	size := q.Length
	if q.ResultType == ResultCount || size < 0 {
		size = 0
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	req := bleve.NewSearchRequestOptions(bq, size, offset, false)

	if len(q.Sort) > 0 {
		order := make([]string, 0, len(q.Sort)+1)
		for _, s := range q.Sort {
			if _, ok := b.fields[s.Field]; !ok {
				return nil, fmt.Errorf("unknown sort field %q", s.Field)
			}
			if s.Order == SortDesc {
				order = append(order, "-"+s.Field)
			} else {
				order = append(order, s.Field)
			}
		}
		req.SortBy(append(order, "-_score"))
	}

	for _, f := range q.Facets {
		fr, err := b.facetRequest(f)
		if err != nil {
			return nil, err
		}
		req.AddFacet(f.Field, fr)
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := &Results{
		Hits:       make([]Hit, 0, len(res.Hits)),
		Total:      res.Total,
		QueryTerms: flattenTerms(groups),
		Facets:     map[string]Facet{},
	}
	for _, h := range res.Hits {
		id, err := parseDocKey(h.ID)
		if err != nil {
			continue
		}
		out.Hits = append(out.Hits, Hit{DocID: id, Score: h.Score})
	}
	for _, f := range q.Facets {
		if fr, ok := res.Facets[f.Field]; ok {
			out.Facets[f.Field] = convertFacet(f, fr)
		}
	}
	return out, nil
}

// resolveTerms analyzes text with the index analyzer and expands each term by
// the synonym table. Each group holds one query term followed by its expansions.
func (b *bleveIndex) resolveTerms(text string) [][]string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	analyzer := b.index.Mapping().AnalyzerNamed(analyzerName)
	if analyzer == nil {
		return nil
	}

	seen := map[string]struct{}{}
	var groups [][]string
	for _, tok := range analyzer.Analyze([]byte(text)) {
		term := string(tok.Term)
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		group := []string{term}
		for _, syn := range b.expansions[term] {
			if syn != term {
				group = append(group, syn)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func flattenTerms(groups [][]string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, g := range groups {
		for _, t := range g {
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}

// searchFields returns the indexed text fields, restricted by filter when set.
func (b *bleveIndex) searchFields(filter []string) []SchemaField {
	var allow map[string]struct{}
	if len(filter) > 0 {
		allow = make(map[string]struct{}, len(filter))
		for _, f := range filter {
			allow[f] = struct{}{}
		}
	}
	var out []SchemaField
	for _, f := range b.schema {
		if f.Type != FieldText || !f.Indexed {
			continue
		}
		if allow != nil {
			if _, ok := allow[f.Field]; !ok {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// termGroupQuery matches any term of the group in any of the fields.
func termGroupQuery(group []string, fields []SchemaField) query.Query {
	qs := make([]query.Query, 0, len(group)*len(fields))
	for _, term := range group {
		for _, f := range fields {
			tq := bleve.NewTermQuery(term)
			tq.SetField(f.Field)
			if f.Boost > 0 {
				tq.SetBoost(f.Boost)
			}
			qs = append(qs, tq)
		}
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func (b *bleveIndex) buildQuery(q Query, groups [][]string) (query.Query, error) {
	fields := b.searchFields(q.FieldFilter)

	var main query.Query
	switch {
	case len(groups) == 0:
		main = bleve.NewMatchAllQuery()
	case len(fields) == 0:
		main = bleve.NewMatchNoneQuery()
	default:
		switch q.Type {
		case QueryUnion:
			qs := make([]query.Query, 0, len(groups))
			for _, g := range groups {
				qs = append(qs, termGroupQuery(g, fields))
			}
			main = bleve.NewDisjunctionQuery(qs...)
		case QueryPhrase:
			terms := make([]string, 0, len(groups))
			for _, g := range groups {
				terms = append(terms, g[0])
			}
			qs := make([]query.Query, 0, len(fields))
			for _, f := range fields {
				qs = append(qs, bleve.NewPhraseQuery(terms, f.Field))
			}
			main = bleve.NewDisjunctionQuery(qs...)
		case QueryNot:
			qs := make([]query.Query, 0, len(groups))
			for _, g := range groups {
				qs = append(qs, termGroupQuery(g, fields))
			}
			bq := bleve.NewBooleanQuery()
			bq.AddMust(bleve.NewMatchAllQuery())
			bq.AddMustNot(qs...)
			main = bq
		case QueryIntersection, "":
			qs := make([]query.Query, 0, len(groups))
			for _, g := range groups {
				qs = append(qs, termGroupQuery(g, fields))
			}
			main = bleve.NewConjunctionQuery(qs...)
		default:
			return nil, fmt.Errorf("unknown query type %q", q.Type)
		}
	}

	filters, err := b.filterQueries(q)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return main, nil
	}
	return bleve.NewConjunctionQuery(append([]query.Query{main}, filters...)...), nil
}

// filterQueries restricts by facet filters and, for non-realtime searches,
// hides documents accepted after the last commit.
func (b *bleveIndex) filterQueries(q Query) ([]query.Query, error) {
	var out []query.Query
	if !q.Realtime {
		maxSeq := float64(b.watermark)
		exclusive := false
		rq := bleve.NewNumericRangeInclusiveQuery(nil, &maxSeq, nil, &exclusive)
		rq.SetField(seqField)
		out = append(out, rq)
	}

	for _, ff := range q.FacetFilters {
		f, ok := b.fields[ff.Field]
		if !ok {
			return nil, fmt.Errorf("unknown facet filter field %q", ff.Field)
		}
		switch {
		case len(ff.Values) == 0 && ff.Min == nil && ff.Max == nil:
			continue
		case f.Type == FieldString:
			qs := make([]query.Query, 0, len(ff.Values))
			for _, v := range ff.Values {
				tq := bleve.NewTermQuery(v)
				tq.SetField(f.Field)
				qs = append(qs, tq)
			}
			out = append(out, bleve.NewDisjunctionQuery(qs...))
		case f.Type == FieldBool:
			qs := make([]query.Query, 0, len(ff.Values))
			for _, v := range ff.Values {
				bq := bleve.NewBoolFieldQuery(v == "true")
				bq.SetField(f.Field)
				qs = append(qs, bq)
			}
			out = append(out, bleve.NewDisjunctionQuery(qs...))
		case f.Type.Numeric():
			inclusive, exclusive := true, false
			rq := bleve.NewNumericRangeInclusiveQuery(ff.Min, ff.Max, &inclusive, &exclusive)
			rq.SetField(f.Field)
			out = append(out, rq)
		default:
			return nil, fmt.Errorf("field %q cannot be used as a facet filter", ff.Field)
		}
	}
	return out, nil
}

func (b *bleveIndex) facetRequest(f QueryFacet) (*bleve.FacetRequest, error) {
	sf, ok := b.fields[f.Field]
	if !ok || !sf.Facet {
		return nil, fmt.Errorf("field %q is not a facet field", f.Field)
	}
	size := f.Length
	if size <= 0 {
		size = 32
	}
	if f.Prefix != "" {
		size = prefixFacetScan
	}
	fr := bleve.NewFacetRequest(f.Field, size)
	if sf.Type.Numeric() {
		for _, r := range f.Ranges {
			fr.AddNumericRange(r.Name, r.Min, r.Max)
		}
	}
	return fr, nil
}

func convertFacet(f QueryFacet, fr *search.FacetResult) Facet {
	out := Facet{Field: f.Field, Total: fr.Total, Values: []FacetValue{}}
	if fr.Terms != nil {
		for _, t := range fr.Terms.Terms() {
			if f.Prefix != "" && !strings.HasPrefix(t.Term, f.Prefix) {
				continue
			}
			out.Values = append(out.Values, FacetValue{Value: t.Term, Count: t.Count})
		}
	}
	for _, r := range fr.NumericRanges {
		out.Values = append(out.Values, FacetValue{Value: r.Name, Count: r.Count})
	}
	sort.SliceStable(out.Values, func(i, j int) bool { return out.Values[i].Count > out.Values[j].Count })
	if f.Length > 0 && len(out.Values) > f.Length {
		out.Values = out.Values[:f.Length]
	}
	return out
}
