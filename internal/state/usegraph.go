package state

import "sort"

// useGraph models the `use:` reference edges between probe keys and named
// config names, adapted from the container dependency graph's cycle
// detection so that a chain of `use` references (not just a single
// self-reference) is rejected rather than silently accepted.
type useGraph struct {
	adj map[string]string // identifier -> what it uses, if anything
	all map[string]bool
}

func buildUseGraph(incoming *DeclaredState) *useGraph {
	g := &useGraph{adj: map[string]string{}, all: map[string]bool{}}
	for _, p := range incoming.Probes {
		g.all[p.Key] = true
	}
	for _, c := range incoming.Configs {
		g.all[c.Name] = true
	}
	for _, p := range incoming.Probes {
		if p.Enabled && p.Use != "" {
			g.adj[p.Key] = p.Use
		}
	}
	for _, c := range incoming.Configs {
		if c.Use != "" {
			g.adj[c.Name] = c.Use
		}
	}
	return g
}

// detectCycle returns the identifiers forming a `use` reference cycle, or
// nil if the graph is acyclic. Three-colour DFS, same shape as a directed
// dependency graph's cycle check.
func (g *useGraph) detectCycle() []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var names []string
	for n := range g.all {
		names = append(names, n)
	}
	sort.Strings(names)

	var cycle []string
	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		color[node] = grey
		path = append(path, node)
		if next, ok := g.adj[node]; ok && g.all[next] {
			if color[next] == grey {
				cycle = append(append([]string{}, path...), next)
				return true
			}
			if color[next] == white {
				if dfs(next, path) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, n := range names {
		if color[n] == white {
			if dfs(n, nil) {
				return cycle
			}
		}
	}
	return nil
}
