package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relstore/internal/model"
)

// CycleInfo reports a group of models that reach each other through
// relations. Cycles are normal for bidirectional relations; the report
// exists so schema walks can be checked for termination.
type CycleInfo struct {
	Path    []string `json:"path"` // ["users", "posts", "users"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles finds the strongly connected components of the relation
// graph of reg. MorphTo relations have no static target and add no edges.
// A registry with no cycles returns an empty list.
func AnalyzeCycles(reg *model.Registry) []CycleInfo {
	graph := buildRelationGraph(reg)

	var infos []CycleInfo
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			infos = append(infos, sccToInfo(scc, graph))
		}
	}
	slices.SortFunc(infos, func(a, b CycleInfo) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return infos
}

// relationGraph maps entity → entities its relations reach.
type relationGraph map[string][]string

func buildRelationGraph(reg *model.Registry) relationGraph {
	graph := make(relationGraph)
	for _, m := range reg.Models() {
		entity := m.Entity()
		if graph[entity] == nil {
			graph[entity] = []string{}
		}
		for _, def := range m.Relations() {
			rel, ok := def.Attribute.(model.Relation)
			if !ok {
				continue
			}
			for _, target := range model.Targets(rel) {
				if !slices.Contains(graph[entity], target) {
					graph[entity] = append(graph[entity], target)
				}
			}
		}
		slices.Sort(graph[entity])
	}
	return graph
}

func hasSelfLoop(node string, graph relationGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are stable.
func tarjanSCC(graph relationGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
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

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToInfo(scc []string, graph relationGraph) CycleInfo {
	if len(scc) == 1 {
		entity := scc[0]
		return CycleInfo{
			Path:    []string{entity, entity},
			Message: fmt.Sprintf("self-referencing model: %s → %s", entity, entity),
			Level:   "info",
		}
	}

	path := cyclePath(scc, graph)
	return CycleInfo{
		Path:    path,
		Message: fmt.Sprintf("relation cycle: %s", strings.Join(path, " → ")),
		Level:   "info",
	}
}

// cyclePath walks edges inside the SCC from its first member until the
// walk returns to the start or runs out of unvisited members.
func cyclePath(scc []string, graph relationGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			if slices.Contains(graph[current], start) {
				path = append(path, start)
			}
			break
		}

		path = append(path, next)
		current = next
	}

	return path
}
