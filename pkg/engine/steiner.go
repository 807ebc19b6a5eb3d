package engine

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
)

// relationPairs converts relations to the undirected (from,to) pairs that
// shortestPath's adjacency builder expects.
func relationPairs(relations []graph.Relation) [][2]string {
	pairs := make([][2]string, len(relations))
	for i, r := range relations {
		pairs[i] = [2]string{r.From, r.To}
	}
	return pairs
}

// connectedSet implements spec §4.8: for every unordered pair of distinct
// entries, compute the §4.7 shortest path and union every node it touches
// into C. Pairs are independent — the graph snapshot is read-only for the
// duration of a single search — so they are computed concurrently via
// errgroup.
//
// Returns C as entries-first, then newly-discovered intermediates in pair
// enumeration order ((entries[0],entries[1]), (entries[0],entries[2]), ...).
// Each goroutine stores its path at its pair's index and the paths are
// merged after Wait, so the order never depends on goroutine completion
// order.
func connectedSet(entries []string, relations []graph.Relation, deg map[string]int, maxHops int) []string {
	if len(entries) <= 1 {
		return append([]string{}, entries...)
	}

	pairs := relationPairs(relations)

	type pairResult struct {
		index int
		path  []string
		ok    bool
	}

	var jobs [][2]string
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			jobs = append(jobs, [2]string{entries[i], entries[j]})
		}
	}

	results := make([]pairResult, len(jobs))

	var g errgroup.Group
	var mu sync.Mutex
	for idx, job := range jobs {
		idx, job := idx, job
		g.Go(func() error {
			path, ok := shortestPath(pairs, deg, job[0], job[1], maxHops)
			mu.Lock()
			results[idx] = pairResult{index: idx, path: path, ok: ok}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // shortestPath never returns an error; nothing to propagate

	seen := make(map[string]struct{}, len(entries))
	ordered := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			ordered = append(ordered, e)
		}
	}

	for _, res := range results {
		if !res.ok {
			continue
		}
		for _, n := range res.path {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				ordered = append(ordered, n)
			}
		}
	}

	return ordered
}

// finalNodeSet implements spec §4.9's cap/truncation rule: entries are
// never truncated, even past maxTotalNodes; intermediates fill the
// remaining budget in the stable order connectedSet produced them.
func finalNodeSet(entries, connected []string, maxTotalNodes int) []string {
	if len(connected) <= maxTotalNodes {
		return connected
	}

	entrySet := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		entrySet[e] = struct{}{}
	}

	result := append([]string{}, entries...)
	budget := maxTotalNodes - len(entries)
	if budget <= 0 {
		return result
	}

	for _, n := range connected {
		if budget == 0 {
			break
		}
		if _, isEntry := entrySet[n]; isEntry {
			continue
		}
		result = append(result, n)
		budget--
	}
	return result
}
