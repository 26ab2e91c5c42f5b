package engine

import (
	"regexp"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// CodeTokenizerName is the registry name of the identifier-splitting tokenizer.
const CodeTokenizerName = "seekhost_code"

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
}

// wordRegex matches alphanumeric runs including underscores.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// span is a byte range of the input.
type span struct{ start, end int }

// SplitCode returns the byte ranges of the sub-words of text. Words are split
// on snake_case underscores and camelCase or PascalCase boundaries; acronyms
// stay together ("parseHTTPRequest" -> parse, HTTP, Request). Single-rune
// fragments are dropped.
func SplitCode(text string) []span {
	var spans []span
	for _, w := range wordRegex.FindAllStringIndex(text, -1) {
		partStart := w[0]
		for i := w[0]; i <= w[1]; i++ {
			if i == w[1] || text[i] == '_' {
				spans = appendCamel(spans, text, partStart, i)
				partStart = i + 1
			}
		}
	}
	return spans
}

// appendCamel splits text[start:end] on case boundaries.
func appendCamel(spans []span, text string, start, end int) []span {
	if start >= end {
		return spans
	}
	runes := []rune(text[start:end])
	offsets := make([]int, len(runes)+1)
	off := start
	for i, r := range runes {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[len(runes)] = end

	cur := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevIsLower := unicode.IsLower(runes[i-1])
		nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevIsLower || nextIsLower {
			spans = keepSpan(spans, runes[cur:i], offsets[cur], offsets[i])
			cur = i
		}
	}
	return keepSpan(spans, runes[cur:], offsets[cur], end)
}

func keepSpan(spans []span, runes []rune, start, end int) []span {
	if len(runes) < 2 {
		return spans
	}
	return append(spans, span{start: start, end: end})
}

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

// codeTokenizer implements analysis.Tokenizer on top of SplitCode. Terms keep
// their original case; the analyzer lowercases them.
type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	spans := SplitCode(text)

	result := make(analysis.TokenStream, 0, len(spans))
	for i, s := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(text[s.start:s.end]),
			Start:    s.start,
			End:      s.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}
