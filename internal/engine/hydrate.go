package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/geo"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	defaultFragmentNumber = 1
	defaultFragmentSize   = 200
	kmPerMile             = 1.609344

	markOpen  = "<mark>"
	markClose = "</mark>"
)

var markupRegex = regexp.MustCompile(`</?mark>`)

// GetDocument returns the stored fields of id, shaped by opts.
func (b *bleveIndex) GetDocument(ctx context.Context, id uint64, opts DocumentOptions) (Document, error) {
	if b.closed {
		return nil, ErrClosed
	}
	full, err := b.source(ctx, id)
	if err != nil {
		return nil, err
	}

	var allow map[string]struct{}
	if len(opts.Fields) > 0 {
		allow = make(map[string]struct{}, len(opts.Fields))
		for _, f := range opts.Fields {
			allow[f] = struct{}{}
		}
	}

	doc := make(Document, len(full))
	for name, v := range full {
		if f, ok := b.fields[name]; !ok || !f.Stored {
			continue
		}
		if allow != nil {
			if _, ok := allow[name]; !ok {
				continue
			}
		}
		doc[name] = v
	}

	for _, df := range opts.DistanceFields {
		v, ok := full[df.Field]
		if !ok {
			continue
		}
		lat, lon, err := toPoint(v)
		if err != nil {
			continue
		}
		km := geo.Haversin(lon, lat, df.Base[1], df.Base[0])
		if df.Unit == Miles {
			doc[df.Distance] = km / kmPerMile
		} else {
			doc[df.Distance] = km
		}
	}

	if len(opts.Highlights) > 0 && len(opts.QueryTerms) > 0 {
		snippets, err := b.highlight(ctx, id, opts.Highlights, opts.QueryTerms)
		if err != nil {
			return nil, err
		}
		for name, s := range snippets {
			doc[name] = s
		}
	}
	return doc, nil
}

// source loads the accepted document JSON kept for id.
func (b *bleveIndex) source(ctx context.Context, id uint64) (Document, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docKey(id)}))
	req.Fields = []string{sourceField}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, ErrDocumentNotFound
	}
	raw, ok := res.Hits[0].Fields[sourceField].(string)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document %d: %w", id, err)
	}
	return doc, nil
}

// highlight marks terms in the requested fields of one document using bleve's
// html highlighter. Fields without a matching term are left out.
func (b *bleveIndex) highlight(ctx context.Context, id uint64, hs []Highlight, terms []string) (map[string]string, error) {
	var termQueries []query.Query
	for _, h := range hs {
		if f, ok := b.fields[h.Field]; !ok || f.Type != FieldText || !f.Stored {
			continue
		}
		for _, t := range terms {
			tq := bleve.NewTermQuery(t)
			tq.SetField(h.Field)
			termQueries = append(termQueries, tq)
		}
	}
	if len(termQueries) == 0 {
		return nil, nil
	}

	q := bleve.NewConjunctionQuery(
		bleve.NewDocIDQuery([]string{docKey(id)}),
		bleve.NewDisjunctionQuery(termQueries...),
	)
	req := bleve.NewSearchRequest(q)
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	for _, h := range hs {
		req.Highlight.AddField(h.Field)
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("highlight: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(hs))
	for _, h := range hs {
		frags := res.Hits[0].Fragments[h.Field]
		if len(frags) == 0 {
			continue
		}
		name := h.Name
		if name == "" {
			name = h.Field
		}
		out[name] = formatFragments(frags, h)
	}
	return out, nil
}

func formatFragments(frags []string, h Highlight) string {
	n := h.FragmentNumber
	if n <= 0 {
		n = defaultFragmentNumber
	}
	size := h.FragmentSize
	if size <= 0 {
		size = defaultFragmentSize
	}
	if len(frags) > n {
		frags = frags[:n]
	}

	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		f = trimFragment(strings.TrimSpace(f), size)
		if !h.HighlightMarkup {
			f = markupRegex.ReplaceAllString(f, "")
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ... ")
}

// trimFragment cuts a fragment to about size visible runes, starting a little
// before the first mark and never splitting a mark tag.
func trimFragment(frag string, size int) string {
	visible := markupRegex.ReplaceAllString(frag, "")
	if len([]rune(visible)) <= size {
		return frag
	}

	start := strings.Index(frag, markOpen)
	if start < 0 {
		start = 0
	}
	lead := size / 4
	runes := []rune(frag[:start])
	if len(runes) > lead {
		start = len(string(runes[:len(runes)-lead]))
	} else {
		start = 0
	}

	var sb strings.Builder
	count := 0
	rest := frag[start:]
	for len(rest) > 0 && count < size {
		if strings.HasPrefix(rest, markOpen) {
			sb.WriteString(markOpen)
			rest = rest[len(markOpen):]
			continue
		}
		if strings.HasPrefix(rest, markClose) {
			sb.WriteString(markClose)
			rest = rest[len(markClose):]
			continue
		}
		r := []rune(rest)[0]
		sb.WriteRune(r)
		rest = rest[len(string(r)):]
		count++
	}
	out := sb.String()
	if strings.Count(out, markOpen) > strings.Count(out, markClose) {
		out += markClose
	}
	return out
}

// FacetsMinMax returns the smallest and largest value of every numeric facet field.
func (b *bleveIndex) FacetsMinMax(ctx context.Context) (map[string]MinMax, error) {
	if b.closed {
		return nil, ErrClosed
	}
	out := map[string]MinMax{}
	for _, f := range b.schema {
		if !f.Facet || !f.Type.Numeric() {
			continue
		}
		minV, err := b.extreme(ctx, f.Field, f.Field)
		if err != nil {
			return nil, err
		}
		maxV, err := b.extreme(ctx, f.Field, "-"+f.Field)
		if err != nil {
			return nil, err
		}
		if minV != nil && maxV != nil {
			out[f.Field] = MinMax{Min: minV, Max: maxV}
		}
	}
	return out, nil
}

func (b *bleveIndex) extreme(ctx context.Context, field, order string) (any, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	req.SortBy([]string{order})
	req.Fields = []string{sourceField}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("facet range of %s: %w", field, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	raw, _ := res.Hits[0].Fields[sourceField].(string)
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, nil
	}
	return doc[field], nil
}
