package graph

import (
	"regexp"
	"strings"
)

// nonTokenChar matches any character that is not a word character
// ([A-Za-z0-9_]), whitespace, or a hyphen. Tokenize replaces each of these
// with a space before splitting, so "docker-compose" stays one
// token while "api/v2" splits into "api" and "v2".
var nonTokenChar = regexp.MustCompile(`[^\w\s-]`)

// minTokenLength is the inclusive lower bound below which tokens are
// discarded (tokens of length <= 2 are dropped).
const minTokenLength = 3

// Tokenize lowercases s, folds punctuation (other than hyphens) to spaces,
// splits on whitespace, and discards short tokens. It is deterministic and
// used both to build the inverted index and, token-by-token, as the query
// side of a search.
func Tokenize(s string) []string {
	lowered := strings.ToLower(s)
	folded := nonTokenChar.ReplaceAllString(lowered, " ")
	fields := strings.Fields(folded)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// indexedText is the concatenation of an entity's name, type, and every
// observation — the text the inverted index (and the scoring term-frequency
// count) is computed against.
func indexedText(e *Entity) string {
	parts := make([]string, 0, len(e.Observations)+2)
	parts = append(parts, e.Name, e.EntityType)
	parts = append(parts, e.Observations...)
	return strings.Join(parts, " ")
}

// Rebuild clears and repopulates the name map and inverted index from the
// current entity/relation slices. It must be called after every load and
// after every successful save — there is no incremental index maintenance.
func (s *State) Rebuild() {
	s.NameIndex = make(map[string]*Entity, len(s.Entities))
	s.InvertedIndex = make(map[string]map[string]struct{})

	for _, e := range s.Entities {
		s.NameIndex[e.Name] = e

		for _, tok := range Tokenize(indexedText(e)) {
			names, ok := s.InvertedIndex[tok]
			if !ok {
				names = make(map[string]struct{})
				s.InvertedIndex[tok] = names
			}
			names[e.Name] = struct{}{}
		}
	}
}
