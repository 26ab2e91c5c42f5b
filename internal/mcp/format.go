package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
)

const (
	defaultLimit = 10
	maxLimit     = 50

	// maxFieldChars truncates long field values in markdown output.
	maxFieldChars = 300
)

// FormatSearchResults formats a result page as markdown.
func FormatSearchResults(indexID uint64, res *index.SearchResult) string {
	if res == nil {
		return fmt.Sprintf("No results in index %d", indexID)
	}
	if len(res.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\" in index %d", res.Query, indexID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", res.Query)
	fmt.Fprintf(&sb, "Showing %d of %d match", res.Count, res.CountTotal)
	if res.CountTotal != 1 {
		sb.WriteString("es")
	}
	if len(res.QueryTerms) > 0 {
		fmt.Fprintf(&sb, " (terms: %s)", strings.Join(res.QueryTerms, ", "))
	}
	sb.WriteString("\n\n")

	for i, doc := range res.Results {
		formatResult(&sb, res.Offset+i+1, doc)
	}
	return sb.String()
}

// FormatDocument formats one stored document as markdown.
func FormatDocument(indexID, docID uint64, doc engine.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Document %d in index %d\n\n", docID, indexID)
	formatFields(&sb, doc)
	return sb.String()
}

// FormatIndexList formats the account's indices as a markdown table.
func FormatIndexList(indices []index.Stats) string {
	if len(indices) == 0 {
		return "No indices. Create one with 'seekhost index create'."
	}

	var sb strings.Builder
	sb.WriteString("| id | name | documents | similarity | tokenizer |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, st := range indices {
		fmt.Fprintf(&sb, "| %d | %s | %d | %s | %s |\n",
			st.ID, st.Name, st.IndexedDocCount, st.Similarity, st.Tokenizer)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, doc engine.Document) {
	fmt.Fprintf(sb, "### %d. document %v", num, doc[index.FieldID])
	if score, ok := doc[index.FieldScore].(float64); ok {
		fmt.Fprintf(sb, " (score: %.2f)", score)
	}
	sb.WriteString("\n\n")
	formatFields(sb, doc)
}

// formatFields writes fields in name order, skipping the _id and _score
// annotations.
func formatFields(sb *strings.Builder, doc engine.Document) {
	names := make([]string, 0, len(doc))
	for name := range doc {
		if name == index.FieldID || name == index.FieldScore {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(sb, "- **%s:** %s\n", name, truncate(fmt.Sprint(doc[name]), maxFieldChars))
	}
	sb.WriteString("\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
