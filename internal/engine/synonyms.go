package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

func validateSynonyms(synonyms []Synonym) error {
	for i, s := range synonyms {
		n := 0
		for _, t := range s.Terms {
			if strings.TrimSpace(t) != "" {
				n++
			}
		}
		if n < 2 {
			return fmt.Errorf("synonym %d needs at least two terms", i)
		}
	}
	return nil
}

func (b *bleveIndex) Synonyms() []Synonym {
	out := make([]Synonym, len(b.synonyms))
	copy(out, b.synonyms)
	return out
}

// SetSynonyms replaces the synonym table and returns its size.
func (b *bleveIndex) SetSynonyms(synonyms []Synonym) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if err := validateSynonyms(synonyms); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(synonyms)
	if err != nil {
		return 0, fmt.Errorf("encode synonyms: %w", err)
	}
	if err := b.index.SetInternal([]byte(keySynonyms), raw); err != nil {
		return 0, fmt.Errorf("write synonyms: %w", err)
	}
	b.applySynonyms(synonyms)
	return len(b.synonyms), nil
}

// AddSynonyms appends to the synonym table and returns its new size.
func (b *bleveIndex) AddSynonyms(synonyms []Synonym) (int, error) {
	merged := make([]Synonym, 0, len(b.synonyms)+len(synonyms))
	merged = append(merged, b.synonyms...)
	merged = append(merged, synonyms...)
	return b.SetSynonyms(merged)
}

// applySynonyms rebuilds the term expansion table.
func (b *bleveIndex) applySynonyms(synonyms []Synonym) {
	b.synonyms = synonyms
	b.expansions = make(map[string][]string)
	for _, s := range synonyms {
		terms := make([]string, 0, len(s.Terms))
		for _, t := range s.Terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) < 2 {
			continue
		}
		sources := terms[:1]
		if s.Multiway {
			sources = terms
		}
		for _, src := range sources {
			for _, t := range terms {
				if t != src {
					b.expansions[src] = appendUnique(b.expansions[src], t)
				}
			}
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
