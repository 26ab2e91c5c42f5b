package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
	"github.com/Aman-CERP/seekhost/internal/output"
)

func newSearchCmd() *cobra.Command {
	var (
		req        index.SearchRequest
		queryType  string
		facets     []string
		filters    []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <index-id> <query...>",
		Short: "Search an index",
		Long: `Search an index with a free-text query.

Terms may be prefixed with + (required), - (excluded) or field: to
restrict them. Quoted terms are matched as a phrase.

Examples:
  seekhost search 0 "rust async"
  seekhost search 0 +title:go channels --limit 5
  seekhost search 0 dune --facet genre --filter genre=scifi`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "index id")
			if err != nil {
				return err
			}
			req.Query = strings.Join(args[1:], " ")
			req.QueryType = engine.QueryType(queryType)
			for _, f := range facets {
				req.QueryFacets = append(req.QueryFacets, engine.QueryFacet{Field: f})
			}
			filter, err := parseFacetFilters(filters)
			if err != nil {
				return err
			}
			req.FacetFilter = filter

			client, key, err := accountClient()
			if err != nil {
				return err
			}
			res, err := client.Search(cmd.Context(), key, id, req)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(res)
			}
			printSearchResult(out, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&req.Length, "limit", "n", index.DefaultLength, "Maximum number of results")
	cmd.Flags().IntVar(&req.Offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&req.Realtime, "realtime", false, "Include uncommitted documents")
	cmd.Flags().StringSliceVar(&req.Fields, "fields", nil, "Stored fields to return (default all)")
	cmd.Flags().StringVar(&queryType, "query-type", "", "Default combination: union, intersection, phrase or not")
	cmd.Flags().StringSliceVar(&facets, "facet", nil, "Facet field to count")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Facet filter as field=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// parseFacetFilters groups field=value pairs by field.
func parseFacetFilters(pairs []string) ([]engine.FacetFilter, error) {
	var filters []engine.FacetFilter
	pos := make(map[string]int)
	for _, p := range pairs {
		field, value, ok := strings.Cut(p, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: expected field=value", p)
		}
		if i, seen := pos[field]; seen {
			filters[i].Values = append(filters[i].Values, value)
			continue
		}
		pos[field] = len(filters)
		filters = append(filters, engine.FacetFilter{Field: field, Values: []string{value}})
	}
	return filters, nil
}

func printSearchResult(out *output.Writer, res *index.SearchResult) {
	if res.Count == 0 {
		out.Statusf("", "No results for %q", res.Query)
		for _, s := range res.Suggestions {
			out.Statusf("", "Did you mean %q?", s)
		}
		return
	}

	out.Statusf("", "%d of %d results (%.1fms)", res.Count, res.CountTotal, float64(res.Time)/1e6)
	out.Newline()
	for i, doc := range res.Results {
		score, _ := doc[index.FieldScore].(float64)
		out.Header(fmt.Sprintf("%d. document %v (score %.2f)", res.Offset+i+1, doc[index.FieldID], score))
		for _, k := range sortedFields(doc) {
			out.KeyValue(k, doc[k])
		}
		out.Newline()
	}

	if len(res.Facets) > 0 {
		names := make([]string, 0, len(res.Facets))
		for name := range res.Facets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f := res.Facets[name]
			rows := make([][]string, 0, len(f.Values))
			for _, v := range f.Values {
				rows = append(rows, []string{v.Value, fmt.Sprint(v.Count)})
			}
			out.Header("Facet " + name)
			out.Table([]string{"VALUE", "COUNT"}, rows)
		}
	}
}

// sortedFields lists stored fields without the synthetic id and score.
func sortedFields(doc engine.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		if k == index.FieldID || k == index.FieldScore {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
