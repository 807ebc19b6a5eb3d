package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
)

const thirtyDaysMs = int64(30 * 24 * time.Hour / time.Millisecond)

// scoredCandidate is one entity's score against one query term.
type scoredCandidate struct {
	name  string
	score float64
}

// lowerIndexedText is the same concatenation the Indexer builds, lowercased
// once per entity per search call for substring counting (spec §4.5's "tf"
// is a substring count, not a token-boundary match — see spec §9).
func lowerIndexedText(e *graph.Entity) string {
	parts := make([]string, 0, len(e.Observations)+2)
	parts = append(parts, e.Name, e.EntityType)
	parts = append(parts, e.Observations...)
	return strings.ToLower(strings.Join(parts, " "))
}

func substringCount(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	count := 0
	for {
		idx := strings.Index(haystack, needle)
		if idx < 0 {
			break
		}
		count++
		haystack = haystack[idx+len(needle):]
	}
	return count
}

// score implements spec §4.5 exactly: sublinear TF * importance * recency.
func score(text string, term string, obsCount, degree int, updatedAt *int64, nowMs int64) float64 {
	f := substringCount(text, term)
	tf := 1 + math.Log(1+float64(f))
	importance := math.Log(float64(obsCount)+1) * (1 + math.Log(1+float64(degree)))

	recency := 1.0
	if updatedAt != nil {
		age := float64(nowMs - *updatedAt)
		recency = math.Exp(-age / float64(thirtyDaysMs))
	}

	return tf * importance * recency
}

// selectEntries implements spec §4.6: per term, rank candidates, discard
// below the relative threshold, then walk the remainder claiming up to
// TopPerToken entities not already claimed by an earlier term. Terms are
// processed in query order.
func (e *Engine) selectEntries(st *graph.State, terms []string, nowMs int64) []string {
	deg := st.DegreeMap()
	claimed := make(map[string]struct{})
	entries := make([]string, 0, len(terms))

	for _, term := range terms {
		names := st.InvertedIndex[term]
		if len(names) == 0 {
			continue
		}

		candidates := make([]scoredCandidate, 0, len(names))
		for name := range names {
			ent := st.FindEntity(name)
			if ent == nil {
				continue
			}
			text := lowerIndexedText(ent)
			s := score(text, term, len(ent.Observations), deg[name], ent.UpdatedAt, nowMs)
			candidates = append(candidates, scoredCandidate{name: name, score: s})
		}
		if len(candidates) == 0 {
			continue
		}

		sortCandidatesDesc(candidates)

		best := candidates[0].score
		threshold := best * e.cfg.MinRelativeScore

		taken := 0
		for _, c := range candidates {
			if taken >= e.cfg.TopPerToken {
				break
			}
			if c.score < threshold {
				break
			}
			if _, already := claimed[c.name]; already {
				continue
			}
			claimed[c.name] = struct{}{}
			entries = append(entries, c.name)
			taken++
		}
	}

	return entries
}

// sortCandidatesDesc sorts by score descending, breaking ties by name for
// determinism (spec §4.7 leaves tie-breaks unspecified as long as they're
// consistent).
func sortCandidatesDesc(candidates []scoredCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			a, b := candidates[j-1], candidates[j]
			if a.score > b.score || (a.score == b.score && a.name <= b.name) {
				break
			}
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}
}

// SearchNodes implements the full context-search pipeline of spec §4.5-§4.9:
// score, select entries, connect them via pairwise shortest paths, cap the
// node set, and filter relations to those fully within the result.
func (e *Engine) SearchNodes(_ context.Context, query string) (*graph.State, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}

	terms := graph.Tokenize(query)
	entries := e.selectEntries(st, terms, nowMs())

	result := graph.New()
	if len(entries) == 0 {
		return result, nil
	}

	deg := st.DegreeMap()
	connected := connectedSet(entries, st.Relations, deg, e.cfg.MaxPathLength)
	nodeSet := finalNodeSet(entries, connected, e.cfg.MaxTotalNodes)

	inResult := make(map[string]struct{}, len(nodeSet))
	for _, n := range nodeSet {
		inResult[n] = struct{}{}
		if ent := st.FindEntity(n); ent != nil {
			result.Entities = append(result.Entities, ent)
		}
	}

	for _, r := range st.Relations {
		_, fromIn := inResult[r.From]
		_, toIn := inResult[r.To]
		if fromIn && toIn {
			result.Relations = append(result.Relations, r)
		}
	}

	result.Rebuild()
	return result, nil
}
