package engine

import (
	"container/heap"
	"math"
)

// edgeCost is cost(v) = 1 + ln(1+deg(v)) from spec §4.7 — the cost of
// entering node v, independent of where the edge came from.
func edgeCost(deg int) float64 {
	return 1 + math.Log(1+float64(deg))
}

// adjacency builds an undirected neighbor list from the relation set:
// relations are traversable in either direction for reachability purposes
// (spec §4.7).
func adjacency(relations [][2]string) map[string][]string {
	adj := make(map[string][]string)
	for _, r := range relations {
		a, b := r[0], r[1]
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	return adj
}

type pqItem struct {
	node string
	dist float64
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// shortestPath runs Dijkstra from s to t over the undirected adjacency
// derived from relations, with edge-entry costs from deg, and a hop cap.
// Returns (path, true) on success, or (nil, false) if t is unreachable or
// the shortest reconstructed path exceeds maxHops edges (spec §4.7).
func shortestPath(relations [][2]string, deg map[string]int, s, t string, maxHops int) ([]string, bool) {
	if s == t {
		return []string{s}, true
	}

	adj := adjacency(relations)

	dist := map[string]float64{s: 0}
	parent := map[string]string{}
	hops := map[string]int{s: 0}
	visited := map[string]bool{}

	pq := &priorityQueue{{node: s, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if cur.node == t {
			return reconstructPath(parent, s, t, hops[t], maxHops)
		}

		for _, v := range adj[cur.node] {
			if visited[v] {
				continue
			}
			cand := cur.dist + edgeCost(deg[v])
			if existing, ok := dist[v]; !ok || cand < existing {
				dist[v] = cand
				parent[v] = cur.node
				hops[v] = hops[cur.node] + 1
				heap.Push(pq, &pqItem{node: v, dist: cand})
			}
		}
	}

	return nil, false
}

func reconstructPath(parent map[string]string, s, t string, hopCount, maxHops int) ([]string, bool) {
	if hopCount > maxHops {
		return nil, false
	}
	path := make([]string, 0, hopCount+1)
	cur := t
	for cur != s {
		path = append(path, cur)
		p, ok := parent[cur]
		if !ok {
			return nil, false
		}
		cur = p
	}
	path = append(path, s)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}
