package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/seekhost/internal/engine"
	"github.com/Aman-CERP/seekhost/internal/index"
)

func TestFormatSearchResults_NumbersFromOffset(t *testing.T) {
	res := &index.SearchResult{
		Query:      "dune",
		Offset:     10,
		Count:      1,
		CountTotal: 11,
		QueryTerms: []string{"dune", "arrakis"},
		Results:    []engine.Document{{"_id": uint64(4), "title": "Dune"}},
	}

	text := FormatSearchResults(0, res)

	assert.Contains(t, text, "### 11. document 4\n")
	assert.Contains(t, text, "(terms: dune, arrakis)")
}

func TestFormatSearchResults_SingularMatch(t *testing.T) {
	res := &index.SearchResult{Query: "emma", Count: 1, CountTotal: 1, Results: []engine.Document{{"_id": 0}}}

	assert.Contains(t, FormatSearchResults(0, res), "Showing 1 of 1 match\n")
}

func TestFormatSearchResults_Nil(t *testing.T) {
	assert.Equal(t, "No results in index 5", FormatSearchResults(5, nil))
}

func TestFormatDocument_TruncatesLongFields(t *testing.T) {
	doc := engine.Document{"body": strings.Repeat("a", maxFieldChars+50)}

	text := FormatDocument(1, 2, doc)

	assert.Contains(t, text, strings.Repeat("a", maxFieldChars-3)+"...")
	assert.NotContains(t, text, strings.Repeat("a", maxFieldChars+1))
}

func TestFormatIndexList_Empty(t *testing.T) {
	assert.Contains(t, FormatIndexList(nil), "No indices")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-5, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(51, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
}
