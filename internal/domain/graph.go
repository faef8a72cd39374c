package domain

// IsAcyclic reports whether the directed edges (parent, child) form a
// DAG (spec.md invariant 4: "the closure of control hierarchy is
// acyclic"). Used both by the control structure agent (to reject an
// edge that would close a cycle before it's ever persisted) and by the
// Validator (to re-check the committed hierarchy).
func IsAcyclic(edges [][2]string) bool {
	adj := make(map[string][]string, len(edges))
	nodes := make(map[string]bool, len(edges)*2)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		nodes[e[0]] = true
		nodes[e[1]] = true
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))

	var visit func(n string) bool
	visit = func(n string) bool {
		switch state[n] {
		case visiting:
			return false // back-edge: cycle
		case done:
			return true
		}
		state[n] = visiting
		for _, next := range adj[n] {
			if !visit(next) {
				return false
			}
		}
		state[n] = done
		return true
	}

	for n := range nodes {
		if state[n] == unvisited {
			if !visit(n) {
				return false
			}
		}
	}
	return true
}
