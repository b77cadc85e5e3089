package graph

// Warnf is a side channel for non-fatal diagnostics raised during graph
// emission.
type Warnf func(format string, args ...any)

type nodePair struct {
	from string
	to   string
}

func (p nodePair) unordered() nodePair {
	if p.from > p.to {
		return nodePair{from: p.to, to: p.from}
	}
	return p
}

// edgeTracker records emitted directed edges and flags edges that close a
// cycle. Both the tag implies relation and the citation relation are
// conceptually acyclic but can become cyclic through bad data entry, so the
// tracker warns instead of letting a traversal run unbounded.
type edgeTracker struct {
	emitted   map[nodePair]bool
	adjacency map[string][]string
	warned    map[nodePair]bool
	warnf     Warnf
}

func newEdgeTracker(warnf Warnf) *edgeTracker {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	return &edgeTracker{
		emitted:   make(map[nodePair]bool),
		adjacency: make(map[string][]string),
		warned:    make(map[nodePair]bool),
		warnf:     warnf,
	}
}

// Add registers the directed edge from -> to. It reports whether the edge
// is new; a duplicate edge is not emitted twice. If the edge closes a cycle
// over the already emitted edges, a warning is raised once per node pair,
// but the edge still counts as emitted.
func (t *edgeTracker) Add(from, to string) bool {
	edge := nodePair{from: from, to: to}
	if t.emitted[edge] {
		return false
	}

	if from == to || t.reaches(to, from) {
		key := edge.unordered()
		if !t.warned[key] {
			t.warned[key] = true
			t.warnf("cycle detected: %q -> %q closes a cycle", from, to)
		}
	}

	t.emitted[edge] = true
	t.adjacency[from] = append(t.adjacency[from], to)
	return true
}

// reaches reports whether to is reachable from from over the emitted edges.
func (t *edgeTracker) reaches(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range t.adjacency[current] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
