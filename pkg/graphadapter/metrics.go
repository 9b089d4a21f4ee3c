package graphadapter

import "github.com/kgstore/kgstore/pkg/engine"

// maxComponentSearchDepth bounds the BFS used to find connected
// components and shortest-path distances: an acknowledged approximation
// for large graphs (spec §4.1/§9), not an exhaustive traversal.
const maxComponentSearchDepth = 3

// GraphMetrics mirrors get_graph_metrics' output (spec §4.1). Optional
// fields are -1 when includeOptional is false, or when they could not be
// computed — an optional metric never fails the whole call.
type GraphMetrics struct {
	NumNodes       int64
	NumEdges       int64
	MeanDegree     *float64 // nil when NumNodes == 0
	EdgeDensity    float64  // 0 when NumNodes <= 1
	ComponentCount int
	ComponentSizes []int

	SelfLoopCount            int64
	Diameter                 int
	AvgShortestPathLength    float64
	AvgClusteringCoefficient float64
}

// GetGraphMetrics computes the mandatory metrics (node/edge count, mean
// degree, edge density, connected components) always, and the optional
// ones (self-loops, diameter, average shortest path, average clustering
// coefficient) only when includeOptional is true.
func (a *Adapter) GetGraphMetrics(includeOptional bool) (GraphMetrics, error) {
	var m GraphMetrics
	err := a.withLock(func(eng engine.Engine) error {
		nodes, nerr := eng.AllNodes()
		if nerr != nil {
			return nerr
		}
		edges, eerr := eng.AllEdges()
		if eerr != nil {
			return eerr
		}

		m.NumNodes = int64(len(nodes))
		m.NumEdges = int64(len(edges))

		if m.NumNodes > 0 {
			degree := 2 * float64(m.NumEdges) / float64(m.NumNodes)
			m.MeanDegree = &degree
		}
		if m.NumNodes > 1 {
			n := float64(m.NumNodes)
			m.EdgeDensity = float64(m.NumEdges) / (n * (n - 1))
		}

		adj := buildUndirectedAdjacency(nodes, edges)
		m.ComponentSizes = boundedComponentSizes(nodes, adj, maxComponentSearchDepth)
		m.ComponentCount = len(m.ComponentSizes)

		if !includeOptional {
			m.SelfLoopCount = -1
			m.Diameter = -1
			m.AvgShortestPathLength = -1
			m.AvgClusteringCoefficient = -1
			return nil
		}

		m.SelfLoopCount = countSelfLoops(edges)

		if diameter, avgPath, ok := boundedDistanceMetrics(nodes, adj, maxComponentSearchDepth); ok {
			m.Diameter = diameter
			m.AvgShortestPathLength = avgPath
		} else {
			m.Diameter = -1
			m.AvgShortestPathLength = -1
		}

		if coeff, ok := avgClusteringCoefficient(nodes, adj); ok {
			m.AvgClusteringCoefficient = coeff
		} else {
			m.AvgClusteringCoefficient = -1
		}
		return nil
	})
	return m, err
}

func countSelfLoops(edges []*engine.Edge) int64 {
	var n int64
	for _, e := range edges {
		if e.Source == e.Target {
			n++
		}
	}
	return n
}

// buildUndirectedAdjacency returns an adjacency list over every node id
// present, ignoring edge direction and relationship label: the
// degree/density/component definitions in spec §4.1 treat the graph as
// undirected.
func buildUndirectedAdjacency(nodes []*engine.Node, edges []*engine.Edge) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(nodes))
	for _, n := range nodes {
		adj[n.ID] = make(map[string]bool)
	}
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if adj[e.Source] == nil {
			adj[e.Source] = make(map[string]bool)
		}
		if adj[e.Target] == nil {
			adj[e.Target] = make(map[string]bool)
		}
		adj[e.Source][e.Target] = true
		adj[e.Target][e.Source] = true
	}
	return adj
}

// boundedComponentSizes groups nodes into components using a bounded-
// depth BFS from each unvisited node.
func boundedComponentSizes(nodes []*engine.Node, adj map[string]map[string]bool, maxDepth int) []int {
	visited := make(map[string]bool, len(nodes))
	var sizes []int
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		reached := boundedBFS(n.ID, adj, maxDepth)
		for id := range reached {
			visited[id] = true
		}
		sizes = append(sizes, len(reached))
	}
	return sizes
}

func boundedBFS(start string, adj map[string]map[string]bool, maxDepth int) map[string]bool {
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for neighbor := range adj[id] {
				if !visited[neighbor] {
					visited[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return visited
}

// boundedDistanceMetrics computes diameter and average shortest path
// length using the same bounded-depth BFS as component search. Returns
// ok=false when fewer than two nodes are reachable from one another
// within the bound.
func boundedDistanceMetrics(nodes []*engine.Node, adj map[string]map[string]bool, maxDepth int) (diameter int, avgPath float64, ok bool) {
	if len(nodes) < 2 {
		return 0, 0, false
	}
	var total, pairs int
	for _, n := range nodes {
		dist := boundedBFSDistances(n.ID, adj, maxDepth)
		for _, d := range dist {
			if d == 0 {
				continue
			}
			total += d
			pairs++
			if d > diameter {
				diameter = d
			}
		}
	}
	if pairs == 0 {
		return 0, 0, false
	}
	return diameter, float64(total) / float64(pairs), true
}

func boundedBFSDistances(start string, adj map[string]map[string]bool, maxDepth int) map[string]int {
	dist := map[string]int{start: 0}
	frontier := []string{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for neighbor := range adj[id] {
				if _, seen := dist[neighbor]; !seen {
					dist[neighbor] = depth + 1
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return dist
}

// avgClusteringCoefficient computes the mean local clustering coefficient
// over every node with degree >= 2 (lower-degree nodes don't contribute).
// Returns ok=false if no node qualifies.
func avgClusteringCoefficient(nodes []*engine.Node, adj map[string]map[string]bool) (float64, bool) {
	var total float64
	var counted int
	for _, n := range nodes {
		neighbors := adj[n.ID]
		k := len(neighbors)
		if k < 2 {
			continue
		}
		ids := make([]string, 0, k)
		for id := range neighbors {
			ids = append(ids, id)
		}
		var links int
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if adj[ids[i]][ids[j]] {
					links++
				}
			}
		}
		possible := k * (k - 1) / 2
		total += float64(links) / float64(possible)
		counted++
	}
	if counted == 0 {
		return 0, false
	}
	return total / float64(counted), true
}
