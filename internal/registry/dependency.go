package registry

import "sort"

// Graph records which component tags each component's template uses.
type Graph struct {
	edges map[string][]string
}

// NewGraph creates an empty dependency graph
func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// Add records that component uses each of deps. Self references are ignored.
func (g *Graph) Add(component string, deps ...string) {
	if _, ok := g.edges[component]; !ok {
		g.edges[component] = nil
	}
	for _, dep := range deps {
		if dep == component || contains(g.edges[component], dep) {
			continue
		}
		g.edges[component] = append(g.edges[component], dep)
	}
}

// Dependencies returns the tags component uses
func (g *Graph) Dependencies(component string) []string {
	out := make([]string, len(g.edges[component]))
	copy(out, g.edges[component])
	return out
}

// Dependents returns the components that use the given component, sorted.
func (g *Graph) Dependents(component string) []string {
	var dependents []string
	for name, deps := range g.edges {
		if contains(deps, component) {
			dependents = append(dependents, name)
		}
	}
	sort.Strings(dependents)
	return dependents
}

// DetectCycles returns every dependency cycle found, each closed by repeating
// its first tag. A component that renders itself, directly or through others,
// would mount forever.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string

	names := make([]string, 0, len(g.edges))
	for name := range g.edges {
		names = append(names, name)
	}
	sort.Strings(names)

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, name := range names {
		if !visited[name] {
			if cycle := g.detectCycleDFS(name, visited, recStack, nil); cycle != nil {
				cycles = append(cycles, cycle)
			}
		}
	}
	return cycles
}

// detectCycleDFS performs DFS to detect cycles
func (g *Graph) detectCycleDFS(component string, visited, recStack map[string]bool, path []string) []string {
	visited[component] = true
	recStack[component] = true
	path = append(path, component)

	for _, dep := range g.edges[component] {
		if !visited[dep] {
			if cycle := g.detectCycleDFS(dep, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dep] {
			// Found cycle - extract the cycle from path
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i+1)
					copy(cycle, path[i:])
					cycle[len(cycle)-1] = dep
					return cycle
				}
			}
		}
	}

	recStack[component] = false
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
