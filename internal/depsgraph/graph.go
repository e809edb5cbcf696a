// Package depsgraph computes a dependency-respecting apply order over a
// set of resources, used by the Sync Reconciler (C9) to decide what order
// to create/update declared resources in. The Kahn's-algorithm
// topological sort plus three-colour cycle detection is lifted directly
// from the teacher's internal/deps/graph.go, which orders containers by
// label-declared and network-namespace dependencies before restarting
// them; here the graph nodes are declared resources (by id) and edges are
// the server_id/repo_id/builder_id references one resource's config
// points at another resource by.
package depsgraph

import (
	"fmt"
	"sort"
)

// Node is the minimal shape depsgraph needs to build an apply-order
// graph: an id, plus the ids of resources it depends on.
type Node struct {
	Id        string
	DependsOn []string
}

// Graph is a directed graph of resource dependencies.
type Graph struct {
	adj map[string][]string // id -> ids it depends on
	all map[string]bool
}

// Build constructs a Graph from a resource's declared dependency edges,
// keeping only edges that point at another node actually present in the
// set (a dangling repo_id/server_id reference is not this package's
// concern — internal/sync surfaces that as a validation error instead).
func Build(nodes []Node) *Graph {
	g := &Graph{adj: make(map[string][]string), all: make(map[string]bool)}
	for _, n := range nodes {
		g.all[n.Id] = true
	}
	for _, n := range nodes {
		var deps []string
		for _, d := range n.DependsOn {
			if g.all[d] {
				deps = append(deps, d)
			}
		}
		if len(deps) > 0 {
			g.adj[n.Id] = deps
		}
	}
	return g
}

// Sort returns node ids in topological order (dependencies first) via
// Kahn's algorithm. Returns a partial result plus an error if a cycle is
// present — callers fall back to applying the partial order and logging
// the remainder as unresolved, per spec §4.9 "errors per entry are
// collected ... the overall sync completes best-effort".
func (g *Graph) Sort() ([]string, error) {
	inDegree := make(map[string]int)
	reverse := make(map[string][]string)

	for id := range g.all {
		inDegree[id] = 0
	}
	for id, deps := range g.adj {
		for _, dep := range deps {
			inDegree[id]++
			reverse[dep] = append(reverse[dep], id)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		dependents := reverse[node]
		sort.Strings(dependents)
		for _, dep := range dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(g.all) {
		return result, fmt.Errorf("dependency cycle detected: resolved %d of %d resources", len(result), len(g.all))
	}
	return result, nil
}

// DetectCycles reports each cycle found via three-colour DFS, for
// surfacing as a per-entry sync error rather than aborting the whole run.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = 0
		grey  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = grey
		for _, dep := range g.adj[node] {
			if color[dep] == grey {
				cycle := []string{dep, node}
				cur := node
				for cur != dep {
					cur = parent[cur]
					if cur == "" || cur == dep {
						break
					}
					cycle = append(cycle, cur)
				}
				cycles = append(cycles, cycle)
			} else if color[dep] == white {
				parent[dep] = node
				dfs(dep)
			}
		}
		color[node] = black
	}

	for id := range g.all {
		if color[id] == white {
			dfs(id)
		}
	}
	return cycles
}

// Dependents returns the ids that depend on id.
func (g *Graph) Dependents(id string) []string {
	var result []string
	for node, deps := range g.adj {
		for _, d := range deps {
			if d == id {
				result = append(result, node)
				break
			}
		}
	}
	sort.Strings(result)
	return result
}

// Dependencies returns what id depends on.
func (g *Graph) Dependencies(id string) []string {
	deps := g.adj[id]
	if deps == nil {
		return nil
	}
	out := make([]string, len(deps))
	copy(out, deps)
	sort.Strings(out)
	return out
}
