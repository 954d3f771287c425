package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/lumo/internal/ir"
)

// CycleWarning describes a loop in a document's link topology.
//
// Loops are warnings, not errors: the router skips the re-entering branch
// at run time. They are still worth flagging because the skipped branch
// means some node never sees its own output come back.
type CycleWarning struct {
	Path    []int64 `json:"path"`    // node ids: [a, b, a]
	Message string  `json:"message"` // human-readable description
	Level   string  `json:"level"`   // "warning"
}

// DetectLinkCycles performs static cycle analysis on a document.
//
// It builds a node-level graph (an edge for every link, from the output's
// node to the input's node), finds strongly connected components with
// Tarjan's algorithm, and reports each SCC with more than one node as a
// warning. Self-loops cannot occur since a link never stays on one node.
//
// A DAG returns an empty list. Results are ordered by the smallest node id
// in each cycle.
func DetectLinkCycles(doc ir.Document) []CycleWarning {
	if len(doc.Links) == 0 {
		return []CycleWarning{}
	}

	graph := buildLinkGraph(doc)
	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return cmp.Compare(slices.Min(a.Path), slices.Min(b.Path))
	})
	return warnings
}

// dependencyGraph maps node id -> node ids its outputs feed, sorted.
type dependencyGraph map[int64][]int64

func buildLinkGraph(doc ir.Document) dependencyGraph {
	graph := make(dependencyGraph)
	for _, n := range doc.Nodes {
		graph[n.ID] = []int64{}
	}
	for _, l := range doc.Links {
		from, to := l.From.Node, l.To.Node
		if from == to || slices.Contains(graph[from], to) {
			continue
		}
		graph[from] = append(graph[from], to)
	}
	for id := range graph {
		slices.Sort(graph[id])
	}
	return graph
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in ascending id order so results are deterministic.
func tarjanSCC(graph dependencyGraph) [][]int64 {
	var (
		index   = 0
		stack   []int64
		indices = make(map[int64]int)
		lowlink = make(map[int64]int)
		onStack = make(map[int64]bool)
		sccs    [][]int64
	)

	var strongConnect func(int64)
	strongConnect = func(v int64) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []int64
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]int64, 0, len(graph))
	for id := range graph {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)
	for _, id := range nodes {
		if _, visited := indices[id]; !visited {
			strongConnect(id)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []int64, graph dependencyGraph) CycleWarning {
	path := reconstructCyclePath(scc, graph)
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("link cycle between nodes: %s", strings.Join(parts, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its smallest node
// until it returns to the start.
func reconstructCyclePath(scc []int64, graph dependencyGraph) []int64 {
	if len(scc) == 0 {
		return []int64{}
	}

	inSCC := make(map[int64]bool, len(scc))
	for _, id := range scc {
		inSCC[id] = true
	}

	start := slices.Min(scc)
	current := start
	path := []int64{current}
	visited := make(map[int64]bool)

	for {
		visited[current] = true

		next, found := int64(0), false
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next, found = neighbor, true
				break
			}
		}
		if !found {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
